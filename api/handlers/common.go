// Package handlers implements the HTTP surface named in the spec's
// external-interfaces section: GET /health, GET /version, POST
// /search, POST /ingest, POST /consolidate. Adapted from the teacher's
// api/handlers/common.go response envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/types"
)

// Response is the HTTP surface's uniform envelope.
type Response struct {
	Status    string      `json:"status"` // ok | error
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
}

const protocolVersion = "1"

// WriteJSON writes status with data JSON-encoded.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 ok envelope.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{Status: "ok", Data: data, Version: protocolVersion, Timestamp: time.Now().UTC()})
}

// WriteError writes an error envelope derived from a types.Error,
// choosing the HTTP status from the error's taxonomy kind.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = types.HTTPStatusFor(err.Code)
	}
	if logger != nil {
		logger.Error("api error", zap.String("code", string(err.Code)), zap.String("message", err.Message), zap.Int("status", status))
	}
	WriteJSON(w, status, Response{Status: "error", Error: string(err.Code) + ": " + err.Message, Version: protocolVersion, Timestamp: time.Now().UTC()})
}

// WriteErrorMessage constructs and writes a types.Error in one call.
func WriteErrorMessage(w http.ResponseWriter, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message), logger)
}

// DecodeJSONBody decodes r's JSON body into dst, writing a BadRequest
// envelope and returning a non-nil error on failure.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrBadRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrBadRequest, "invalid JSON body").WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// AsTypedError converts any error into a *types.Error, wrapping it as
// Internal if it isn't already typed.
func AsTypedError(err error) *types.Error {
	if te, ok := err.(*types.Error); ok {
		return te
	}
	return types.NewError(types.ErrInternal, err.Error()).WithCause(err)
}
