package access

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid []string
		wantProbs int
		wantErr   error
	}{
		{"single address", "127.0.0.1", []string{"127.0.0.1"}, 0, nil},
		{"mixed list", "127.0.0.1, 192.168.1.0/24 ,::1", []string{"127.0.0.1", "192.168.1.0/24", "::1"}, 0, nil},
		{"host bits tolerated", "192.168.1.7/24", []string{"192.168.1.7/24"}, 0, nil},
		{"invalid entry skipped", "127.0.0.1, 300.1.1.1, nonsense", []string{"127.0.0.1"}, 2, nil},
		{"blank", "   ", nil, 0, ErrEmptyAllowList},
		{"leading comma", ",127.0.0.1", nil, 0, ErrMalformedAllowList},
		{"double comma", "127.0.0.1,,10.0.0.1", nil, 0, ErrMalformedAllowList},
		{"missing separator", "127.0.0.1 10.0.0.1", nil, 0, ErrMalformedAllowList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, problems, err := Validate(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if len(valid) != len(tt.wantValid) {
				t.Fatalf("valid = %v, want %v", valid, tt.wantValid)
			}
			for i := range valid {
				if valid[i] != tt.wantValid[i] {
					t.Errorf("valid[%d] = %q, want %q", i, valid[i], tt.wantValid[i])
				}
			}
			if len(problems) != tt.wantProbs {
				t.Errorf("problems = %v, want %d", problems, tt.wantProbs)
			}
		})
	}
}

func TestList_AllowsRemote(t *testing.T) {
	list, warnings := Parse("127.0.0.1, 192.168.1.0/24, 2001:db8::/32, bogus")
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one for the bogus entry", warnings)
	}
	if list.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", list.Len())
	}

	tests := []struct {
		remote string
		want   bool
	}{
		{"127.0.0.1:50000", true},
		{"192.168.1.42:1234", true},
		{"192.168.2.1:1234", false},
		{"10.0.0.5:9999", false},
		{"[::ffff:127.0.0.1]:80", true},
		{"[2001:db8::1]:80", true},
		{"[fe80::1%eth0]:80", false},
		{"192.168.1.9", true},
		{"not-an-address:80", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			if got := list.AllowsRemote(tt.remote); got != tt.want {
				t.Errorf("AllowsRemote(%q) = %v, want %v", tt.remote, got, tt.want)
			}
		})
	}
}

func TestList_EmptyDeniesEveryone(t *testing.T) {
	list, _ := Parse("")
	if list.Contains(netip.MustParseAddr("127.0.0.1")) {
		t.Error("empty list allowed loopback")
	}
}

func TestNormalize(t *testing.T) {
	got, problems, err := Normalize("10.0.0.1,  10.0.1.0/24,bad")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != "10.0.0.1, 10.0.1.0/24" {
		t.Errorf("Normalize() = %q", got)
	}
	if len(problems) != 1 {
		t.Errorf("problems = %v", problems)
	}

	if _, _, err := Normalize("bad, worse"); err == nil {
		t.Error("Normalize() with no valid entries should fail")
	}
}

func TestFilter_SetStringSwapsLiveList(t *testing.T) {
	f := NewFilter("127.0.0.1", nil)
	if f.Allow("10.0.0.5:1") {
		t.Fatal("10.0.0.5 allowed before swap")
	}
	f.SetString("10.0.0.0/8")
	if !f.Allow("10.0.0.5:1") {
		t.Error("10.0.0.5 denied after swap")
	}
	if f.Allow("127.0.0.1:1") {
		t.Error("loopback still allowed after swap")
	}
	if f.Rejected() != 2 {
		t.Errorf("Rejected() = %d, want 2", f.Rejected())
	}
}

func TestListener_ClosesRejectedPeers(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	filter := NewFilter("10.0.0.0/8", nil)
	ln := NewListener(inner, filter)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", inner.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) && !isReset(err) {
		t.Errorf("Read() error = %v, want connection closed", err)
	}

	select {
	case c := <-accepted:
		c.Close()
		t.Error("rejected peer was returned from Accept")
	default:
	}
	if filter.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", filter.Rejected())
	}
}

func TestListener_AcceptsAllowedPeers(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ln := NewListener(inner, NewFilter("127.0.0.1", nil))
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", inner.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("allowed peer not accepted")
	}
}

func isReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
