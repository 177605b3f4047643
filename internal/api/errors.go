package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every failed admin REST or websocket upgrade
// response. JSON-RPC failures use rpcError instead.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCodes maps the statuses the admin surface emits to stable codes.
var errorCodes = map[int]string{
	http.StatusBadRequest:            "bad_request",
	http.StatusUnauthorized:          "unauthorised",
	http.StatusForbidden:             "forbidden",
	http.StatusRequestEntityTooLarge: "body_too_large",
	http.StatusUnprocessableEntity:   "invalid_allow_list",
	http.StatusTooManyRequests:       "rate_limited",
	http.StatusServiceUnavailable:    "unavailable",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // peer may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

// writeError sends an Error whose code is derived from status. Statuses
// without a mapping, and every 5xx other than 503, report internal_error.
func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := errorCodes[status]
	if !ok {
		code = "internal_error"
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}
