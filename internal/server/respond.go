package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/Skryldev/voiceclip/application/edit"
	"github.com/Skryldev/voiceclip/application/playback"
	"github.com/Skryldev/voiceclip/application/record"
	"github.com/Skryldev/voiceclip/application/usecase"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError is one failed request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

type errorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and returns false on failure. An empty body is
// treated as an empty object.
func decodeAndValidate[T any](w http.ResponseWriter, r *http.Request, dst *T) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: string(pkgerrors.ErrCodeValidation)})
		return false
	}

	if err := validate.Struct(dst); err != nil {
		resp := errorResponse{Error: "validation failed", Code: string(pkgerrors.ErrCodeValidation)}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				resp.Fields = append(resp.Fields, FieldError{
					Field:   fe.Field(),
					Message: formatValidationMessage(fe),
					Value:   fe.Value(),
				})
			}
		} else {
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.ErrCodeValidation:
		return http.StatusBadRequest
	case pkgerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case pkgerrors.ErrCodeTransition:
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, usecase.ErrNoEditSession),
		errors.Is(err, edit.ErrSessionClosed),
		errors.Is(err, edit.ErrNothingStaged),
		errors.Is(err, playback.ErrNoStream),
		errors.Is(err, record.ErrNotRecording),
		errors.Is(err, record.ErrAlreadyRecording):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(pkgerrors.CodeOf(err))})
}
