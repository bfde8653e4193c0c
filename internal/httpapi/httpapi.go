// Package httpapi has JSON read/write helpers shared by all HTTP handlers.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// A single validator instance is used, because it caches struct parsing.
// Field names in validation errors come from json tags so clients see wire names.
func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Response is the error envelope returned for non-2xx responses.
type Response struct {
	Message string  `json:"message"`
	Errors  []Error `json:"errors,omitempty"`
}

// Error is a validation error scoped to a single request field.
type Error struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Write outputs a standardized JSON format to an HTTP response body.
func Write(rw http.ResponseWriter, status int, response interface{}) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(response); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}

// Read decodes JSON from the HTTP request into the value provided and validates
// it with go-validator struct tags. Returns false after writing an error
// response; handlers must return immediately in that case.
func Read(rw http.ResponseWriter, r *http.Request, value interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(value)
	if err != nil {
		Write(rw, http.StatusBadRequest, Response{
			Message: fmt.Sprintf("read body: %s", err.Error()),
		})
		return false
	}
	err = validate.Struct(value)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]Error, 0, len(validationErrors))
		for _, validationError := range validationErrors {
			apiErrors = append(apiErrors, Error{
				Field:  validationError.Field(),
				Detail: fmt.Sprintf("Validation failed for tag %q with value: \"%v\"", validationError.Tag(), validationError.Value()),
			})
		}
		Write(rw, http.StatusBadRequest, Response{
			Message: "Validation failed",
			Errors:  apiErrors,
		})
		return false
	}
	if err != nil {
		Write(rw, http.StatusInternalServerError, Response{
			Message: fmt.Sprintf("validation: %s", err.Error()),
		})
		return false
	}
	return true
}

// Unauthorized writes a 401 envelope.
func Unauthorized(rw http.ResponseWriter) {
	Write(rw, http.StatusUnauthorized, Response{Message: "missing or invalid authorization"})
}

// Forbidden writes a 403 envelope with the given message.
func Forbidden(rw http.ResponseWriter, message string) {
	Write(rw, http.StatusForbidden, Response{Message: message})
}

// InternalError writes a 500 envelope. The underlying error is logged by the
// caller, never echoed to the client.
func InternalError(rw http.ResponseWriter) {
	Write(rw, http.StatusInternalServerError, Response{Message: "internal server error"})
}

// ServiceUnavailable writes a retryable 503 envelope.
func ServiceUnavailable(rw http.ResponseWriter) {
	Write(rw, http.StatusServiceUnavailable, Response{Message: "service unavailable, retry later"})
}
