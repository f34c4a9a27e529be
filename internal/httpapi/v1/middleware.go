package v1

import (
    "context"
    "log/slog"
    "net/http"
    "runtime/debug"
    "strings"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/google/uuid"
    "github.com/unrolled/secure"
)

type ctxKey string

const (
    ctxKeyOrg   ctxKey = "org"
    ctxKeyActor ctxKey = "actor"
)

// requestLogger logs each request at INFO when it starts and completes.
func requestLogger(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()
            reqID := chimw.GetReqID(r.Context())
            l.Info("request started", "req_id", reqID, "method", r.Method, "path", r.URL.Path)

            next.ServeHTTP(ww, r)

            l.Info("request complete",
                "req_id", reqID,
                "status", ww.Status(),
                "bytes", ww.BytesWritten(),
                "duration", time.Since(start).String(),
            )
        })
    }
}

// recoverer logs panics as ERROR and returns 500.
func recoverer(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            defer func() {
                if rec := recover(); rec != nil {
                    if rec == http.ErrAbortHandler { panic(rec) }
                    reqID := chimw.GetReqID(r.Context())
                    l.Error("panic", "req_id", reqID, "err", rec, "stack", string(debug.Stack()))
                    writeErr(w, http.StatusInternalServerError, "internal error", "internal")
                }
            }()
            next.ServeHTTP(w, r)
        })
    }
}

// secureHeaders sets the standard response hardening headers.
func secureHeaders(dev bool) func(http.Handler) http.Handler {
    return secure.New(secure.Options{
        FrameDeny:             true,
        ContentTypeNosniff:    true,
        BrowserXssFilter:      true,
        ReferrerPolicy:        "no-referrer",
        ContentSecurityPolicy: "default-src 'none'",
        STSSeconds:            31536000,
        SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
        IsDevelopment:         dev,
    }).Handler
}

// orgScope parses {orgID} once for every org-scoped route.
func orgScope(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
        if err != nil || orgID == uuid.Nil { badRequest(w, "invalid organization id"); return }
        ctx := context.WithValue(r.Context(), ctxKeyOrg, orgID)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

func orgFrom(r *http.Request) uuid.UUID {
    id, _ := r.Context().Value(ctxKeyOrg).(uuid.UUID)
    return id
}

func actorFrom(r *http.Request) string {
    a, _ := r.Context().Value(ctxKeyActor).(string)
    return a
}

// requireJSON ensures the request has Content-Type application/json (optionally with params).
// Writes 415 if not JSON and returns false; otherwise returns true.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
    ct := r.Header.Get("Content-Type")
    mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
    if mime != "application/json" {
        writeErr(w, http.StatusUnsupportedMediaType, "content type must be application/json", "unsupported_media_type")
        return false
    }
    return true
}
