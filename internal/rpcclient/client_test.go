package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeBridge answers JSON-RPC requests from a method table and records the
// decoded request bodies.
type fakeBridge struct {
	results map[string]string
	seen    []map[string]any
}

func (f *fakeBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.seen = append(f.seen, req)

	method, _ := req["method"].(string)
	w.Header().Set("Content-Type", "application/json")
	result, ok := f.results[method]
	if !ok {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found","data":"` + method + `"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
}

func newFake(t *testing.T, results map[string]string) (*Client, *fakeBridge) {
	t.Helper()
	fake := &fakeBridge{results: results}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return New(ts.URL+"/", WithHTTPClient(ts.Client())), fake
}

func TestCall_SendsPositionalParams(t *testing.T) {
	c, fake := newFake(t, map[string]string{"get_object": `{"success":true,"data":{"Name":"Box"},"error":null}`})

	env, err := c.CallEnvelope(context.Background(), "get_object", "Part", "Box")
	if err != nil {
		t.Fatalf("CallEnvelope() error = %v", err)
	}
	if !env.Success || env.Data.(map[string]any)["Name"] != "Box" {
		t.Errorf("envelope = %+v", env)
	}

	req := fake.seen[0]
	if req["jsonrpc"] != "2.0" || req["method"] != "get_object" {
		t.Errorf("request = %v", req)
	}
	params, _ := req["params"].([]any)
	if len(params) != 2 || params[0] != "Part" || params[1] != "Box" {
		t.Errorf("params = %v", req["params"])
	}
}

func TestCall_NoParamsIsEmptyArray(t *testing.T) {
	c, fake := newFake(t, map[string]string{"ping": "true"})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if params, ok := fake.seen[0]["params"].([]any); !ok || len(params) != 0 {
		t.Errorf("params = %#v, want []", fake.seen[0]["params"])
	}
}

func TestCall_IDsIncrease(t *testing.T) {
	c, fake := newFake(t, map[string]string{"ping": "true"})
	for i := 0; i < 2; i++ {
		if _, err := c.Call(context.Background(), "ping"); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
	}
	if fake.seen[0]["id"] == fake.seen[1]["id"] {
		t.Errorf("ids = %v, %v", fake.seen[0]["id"], fake.seen[1]["id"])
	}
}

func TestCall_RPCError(t *testing.T) {
	c, _ := newFake(t, nil)

	_, err := c.Call(context.Background(), "execute_code", "print(1)")
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *Error", err)
	}
	if rpcErr.Code != -32601 || rpcErr.Error() != `rpc error -32601: method not found ("execute_code")` {
		t.Errorf("error = %v", rpcErr)
	}
}

func TestCallEnvelope_FailureIsNotAnError(t *testing.T) {
	c, _ := newFake(t, map[string]string{"get_objects": `{"success":false,"data":null,"error":"Nope not found"}`})

	env, err := c.CallEnvelope(context.Background(), "get_objects", "Nope")
	if err != nil {
		t.Fatalf("CallEnvelope() error = %v", err)
	}
	if env.Success || env.Message() != "Nope not found" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestScreenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(png))

	c, fake := newFake(t, map[string]string{"get_active_screenshot": string(encoded)})
	got, ok, err := c.Screenshot(context.Background(), "Top", 320, 240)
	if err != nil || !ok {
		t.Fatalf("Screenshot() = ok:%v err:%v", ok, err)
	}
	if !bytes.Equal(got, png) {
		t.Errorf("png = %v", got)
	}
	if params, _ := fake.seen[0]["params"].([]any); len(params) != 3 || params[0] != "Top" {
		t.Errorf("params = %v", fake.seen[0]["params"])
	}

	c, _ = newFake(t, map[string]string{"get_active_screenshot": "null"})
	if _, _, err := c.Screenshot(context.Background(), "Top", -1, 10); err == nil {
		t.Error("negative width accepted")
	}
}

func TestScreenshot_OneDimensionKeepsPositions(t *testing.T) {
	tests := []struct {
		name          string
		view          string
		width, height int
		want          []any
	}{
		{"defaults", "", 0, 0, []any{}},
		{"view only", "Front", 0, 0, []any{"Front"}},
		{"width only", "Top", 320, 0, []any{"Top", float64(320), float64(0)}},
		{"height only", "", 0, 240, []any{"", float64(0), float64(240)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newFake(t, map[string]string{"get_active_screenshot": "null"})
			if _, _, err := c.Screenshot(context.Background(), tt.view, tt.width, tt.height); err != nil {
				t.Fatalf("Screenshot() error = %v", err)
			}
			got, _ := fake.seen[0]["params"].([]any)
			if len(got) != len(tt.want) {
				t.Fatalf("params = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("params[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
	c, _ := newFake(t, map[string]string{"get_active_screenshot": "null"})
	if _, ok, err := c.Screenshot(context.Background(), "", 0, 0); ok || err != nil {
		t.Errorf("Screenshot() with no document = ok:%v err:%v", ok, err)
	}
}

func TestCall_HTTPStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"rate_limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Call(context.Background(), "ping")
	if err == nil {
		t.Fatal("Call() succeeded on HTTP 429")
	}
}

func TestCall_DroppedConnection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := http.NewResponseController(w).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer ts.Close()

	_, err := New(ts.URL).Call(context.Background(), "ping")
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("Call() error = %v, want ErrNoResponse", err)
	}
}

func TestNew_DefaultURL(t *testing.T) {
	if got := New("").endpoint; got != DefaultURL+"/rpc" {
		t.Errorf("endpoint = %q", got)
	}
}
