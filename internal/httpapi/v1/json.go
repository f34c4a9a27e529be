package v1

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    chi "github.com/go-chi/chi/v5"
    "github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body strictly and runs the struct validation tags.
// It writes the error response itself and reports whether the handler may go on.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
    if !requireJSON(w, r) { return false }
    dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
    dec.DisallowUnknownFields()
    if err := dec.Decode(dst); err != nil {
        var tooLarge *http.MaxBytesError
        if errors.As(err, &tooLarge) {
            writeErr(w, http.StatusRequestEntityTooLarge, "request body too large", "too_large")
            return false
        }
        badRequest(w, "invalid JSON: "+err.Error())
        return false
    }
    if dec.More() { badRequest(w, "invalid JSON: trailing data"); return false }
    if err := s.validate.Struct(dst); err != nil { writeValidation(w, err); return false }
    return true
}

// decodeOptional accepts an empty body for endpoints whose payload is optional.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
    if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" { return true }
    body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    if err != nil { badRequest(w, "invalid body"); return false }
    if len(strings.TrimSpace(string(body))) == 0 { return true }
    r.Body = io.NopCloser(strings.NewReader(string(body)))
    return s.decodeBody(w, r, dst, maxBodyBytes)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
    return uuid.Parse(chi.URLParam(r, name))
}

// ifMatch reads an optional If-Match header carrying a version id, quoted or not.
func ifMatch(r *http.Request) (*uuid.UUID, error) {
    raw := strings.TrimSpace(r.Header.Get("If-Match"))
    if raw == "" { return nil, nil }
    raw = strings.TrimPrefix(raw, "W/")
    id, err := uuid.Parse(strings.Trim(raw, `"`))
    if err != nil { return nil, fmt.Errorf("invalid If-Match: %w", err) }
    return &id, nil
}

func setETag(w http.ResponseWriter, versionID uuid.UUID) {
    w.Header().Set("ETag", `"`+versionID.String()+`"`)
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
    raw := strings.TrimSpace(r.URL.Query().Get(key))
    if raw == "" { return nil, nil }
    if t, err := time.Parse(time.RFC3339Nano, raw); err == nil { t = t.UTC(); return &t, nil }
    t, err := time.Parse(time.DateOnly, raw)
    if err != nil { return nil, fmt.Errorf("invalid %s", key) }
    return &t, nil
}

func queryUUID(r *http.Request, key string) (*uuid.UUID, error) {
    raw := strings.TrimSpace(r.URL.Query().Get(key))
    if raw == "" { return nil, nil }
    id, err := uuid.Parse(raw)
    if err != nil { return nil, fmt.Errorf("invalid %s", key) }
    return &id, nil
}

// page reads limit and offset; limit defaults to 50 and is capped at 500.
func page(r *http.Request) (limit, offset int, err error) {
    q := r.URL.Query()
    limit = 50
    if raw := q.Get("limit"); raw != "" {
        if limit, err = strconv.Atoi(raw); err != nil || limit < 1 { return 0, 0, errors.New("invalid limit") }
        if limit > 500 { limit = 500 }
    }
    if raw := q.Get("offset"); raw != "" {
        if offset, err = strconv.Atoi(raw); err != nil || offset < 0 { return 0, 0, errors.New("invalid offset") }
    }
    return limit, offset, nil
}
