package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"roomsplit/internal/core"
	"roomsplit/internal/log"
)

// JSONResponse provides a fluent API for building JSON responses.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponse) Data(v any) *JSONResponse {
	b.data = v
	return b
}

// Write sends the response. A nil body with 200 becomes 204.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil {
		if b.statusCode == http.StatusOK {
			b.statusCode = http.StatusNoContent
		}
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.data); err != nil {
		slog.Warn("Failed to encode response", log.FieldComponent, log.ComponentHTTP, log.FieldError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	NewJSONResponse().Status(status).Data(v).Write(w)
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// requestError rejects a malformed request before it reaches a service.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

// statusFor maps service errors onto HTTP status codes. The message is
// safe to show to the user.
func statusFor(err error) (int, errorBody) {
	var (
		reqErr  *requestError
		valErr  *core.ValidationError
		catErr  *core.CategorizationError
		stErr   *core.StorageError
		perErr  *core.PersistenceError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, errorBody{Error: reqErr.msg}
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"}
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, errorBody{Error: valErr.Message, Field: valErr.Field}
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: core.ErrInvalidCredentials.Error()}
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "you do not have access to this expense"}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, core.ErrNotInRoom):
		return http.StatusConflict, errorBody{Error: "join or create a room first"}
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: core.ErrEmailTaken.Error(), Field: "email"}
	case errors.As(err, &catErr):
		return http.StatusBadGateway, errorBody{Error: catErr.Error()}
	case errors.As(err, &stErr):
		return http.StatusBadGateway, errorBody{Error: stErr.Error()}
	case errors.As(err, &perErr):
		return http.StatusInternalServerError, errorBody{Error: perErr.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if status >= 500 {
		logger.ErrorContext(ctx, "Request failed", log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	} else {
		logger.DebugContext(ctx, "Request rejected", log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	}
	NewJSONResponse().Status(status).Data(body).Write(w)
}
