package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/cadbridge/internal/operations"
)

// JSON-RPC 2.0 error codes.
const (
	rpcCodeParseError     = -32700
	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
	rpcCodeInternalError  = -32603
)

// maxRPCBodyBytes bounds a single JSON-RPC request.
const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// rpcResponse carries the result pre-encoded so that a null result is still
// written on success.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)

	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.As(err, &typeErr):
			writeRPCError(w, nil, rpcCodeInvalidRequest, "invalid request", nil)
		default:
			writeRPCError(w, nil, rpcCodeParseError, "parse error", nil)
		}
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCError(w, req.ID, rpcCodeInvalidRequest, "invalid request", nil)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, rpcCodeInvalidRequest, "invalid request", nil)
		return
	}

	params, err := decodeParams(req.Params)
	if err != nil {
		writeRPCError(w, req.ID, rpcCodeInvalidParams, "invalid params", err.Error())
		return
	}

	started := time.Now()
	result, err := s.registry.Call(r.Context(), req.Method, params)
	elapsed := time.Since(started)

	code := 0
	switch {
	case errors.Is(err, operations.ErrMethodNotFound):
		code = rpcCodeMethodNotFound
		writeRPCError(w, req.ID, code, "method not found", req.Method)
	case errors.Is(err, operations.ErrInvalidParams):
		code = rpcCodeInvalidParams
		writeRPCError(w, req.ID, code, "invalid params", err.Error())
	case err != nil:
		code = rpcCodeInternalError
		writeRPCError(w, req.ID, code, "internal error", nil)
	default:
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			s.logger.Error("encoding rpc result", "method", req.Method, "error", mErr)
			code = rpcCodeInternalError
			writeRPCError(w, req.ID, code, "internal error", nil)
			break
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: raw})
	}

	if s.metrics != nil {
		s.metrics.observeRPC(req.Method, code, elapsed)
	}
	s.logger.Debug("rpc call",
		"method", req.Method,
		"rpc_code", code,
		"latency_ms", elapsed.Milliseconds(),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
}

// decodeParams accepts a positional array or no params at all.
func decodeParams(raw json.RawMessage) (operations.Params, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var params []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return nil, errors.New("params must be a positional array")
	}
	return params, nil
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(resp)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}
