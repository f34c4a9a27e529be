package v1

import (
    "errors"
    "net/http"

    "github.com/go-playground/validator/v10"

    "github.com/tinoosan/fundledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error     string       `json:"error"`
    Code      string       `json:"code,omitempty"`
    Field     string       `json:"field,omitempty"`
    Retryable bool         `json:"retryable,omitempty"`
    Fields    []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
    Field string `json:"field"`
    Rule  string `json:"rule"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }

// writeServiceError maps domain errors onto status codes. Unknown errors are
// logged and hidden behind a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
    code := errs.Code(err)
    var ve *errs.ValidationError
    switch {
    case errors.As(err, &ve):
        toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Error(), Code: code, Field: ve.Field})
    case errors.Is(err, errs.ErrConcurrentModification):
        s.metrics.conflicts.WithLabelValues(code).Inc()
        w.Header().Set("Retry-After", "1")
        toJSON(w, http.StatusConflict, errorResponse{Error: "the record was changed by another request; retry", Code: code, Retryable: true})
    case errors.Is(err, errs.ErrNotFoundOrVoided), errors.Is(err, errs.ErrNotFound):
        writeErr(w, http.StatusNotFound, err.Error(), code)
    case errors.Is(err, errs.ErrInvalid):
        writeErr(w, http.StatusUnprocessableEntity, err.Error(), code)
    case errors.Is(err, errs.ErrInvalidStatusTransition), errors.Is(err, errs.ErrAlreadyVoided),
        errors.Is(err, errs.ErrAlreadyReconciled), errors.Is(err, errs.ErrCannotCancelPaidBill),
        errors.Is(err, errs.ErrConflict):
        s.metrics.conflicts.WithLabelValues(code).Inc()
        writeErr(w, http.StatusConflict, err.Error(), code)
    default:
        s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
        writeErr(w, http.StatusInternalServerError, "internal error", "internal")
    }
}

// writeValidation reports struct tag failures from the validator.
func writeValidation(w http.ResponseWriter, err error) {
    var ve validator.ValidationErrors
    if !errors.As(err, &ve) { badRequest(w, err.Error()); return }
    out := errorResponse{Error: "request validation failed", Code: errs.Code(errs.ErrInvalid)}
    for _, fe := range ve {
        out.Fields = append(out.Fields, fieldError{Field: fe.Field(), Rule: fe.Tag()})
    }
    if len(out.Fields) > 0 { out.Field = out.Fields[0].Field }
    toJSON(w, http.StatusUnprocessableEntity, out)
}
