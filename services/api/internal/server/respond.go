package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookreview/internal/apperr"
	"bookreview/internal/util"
	"bookreview/pkg/pagination"
	"bookreview/services/api/internal/app"
)

// envelope is the success body shared by every resource route.
type envelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       any              `json:"data,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

func writePage[T any](w http.ResponseWriter, page app.Page[T]) {
	meta := page.Pagination
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: page.Items, Pagination: &meta})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeAppError maps use-case errors onto responses. Anything that is not an
// *apperr.Error is logged and hidden behind a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		writeJSON(w, e.Kind.HTTPStatus(), errorBody{Error: e.Message, Details: e.Details})
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads a JSON object body into dst. It writes the error response
// itself and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
	default:
		writeError(w, http.StatusBadRequest, "invalid JSON body")
	}
	return false
}

// queryInt reads an optional positive integer query parameter. Malformed
// values are collected into details under the parameter name.
func queryInt(r *http.Request, name string, fallback int, details map[string]string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		details[name] = "must be an integer"
		return fallback
	}
	return v
}

// pageParams reads page and limit, defaulting to page 1 of 10.
func pageParams(r *http.Request) (app.PageParams, error) {
	details := map[string]string{}
	pp := app.DefaultPageParams()
	pp.Page = queryInt(r, "page", pp.Page, details)
	pp.Limit = queryInt(r, "limit", pp.Limit, details)
	if len(details) > 0 {
		return pp, apperr.Validation("Validation failed", details)
	}
	return pp, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
