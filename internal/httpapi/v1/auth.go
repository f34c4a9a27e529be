package v1

import (
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"
)

// AuthConfig enables HS256 bearer tokens when Secret is set. Issuer and
// Audience are checked only when non-empty.
type AuthConfig struct {
    Secret   string
    Issuer   string
    Audience string
}

// anonymousActor records writes made without an X-Actor header in header mode.
const anonymousActor = "anonymous"

type jwtClaims struct {
    Issuer    string `json:"iss,omitempty"`
    Subject   string `json:"sub,omitempty"`
    Audience  any    `json:"aud,omitempty"` // string or []string
    ExpiresAt int64  `json:"exp,omitempty"`
    NotBefore int64  `json:"nbf,omitempty"`
    IssuedAt  int64  `json:"iat,omitempty"`
}

// resolveActor stores the caller identity recorded on every version written.
// With a secret it is the token subject, otherwise the X-Actor header.
func (s *Server) resolveActor(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        actor := strings.TrimSpace(r.Header.Get("X-Actor"))
        if s.auth.Secret != "" {
            claims, err := s.auth.authenticate(r, time.Now())
            if err != nil {
                w.Header().Set("WWW-Authenticate", `Bearer realm="fundledger"`)
                writeErr(w, http.StatusUnauthorized, err.Error(), "unauthorized")
                return
            }
            actor = claims.Subject
        }
        if actor == "" { actor = anonymousActor }
        if len(actor) > 255 { badRequest(w, "actor too long"); return }
        next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyActor, actor)))
    })
}

func (a AuthConfig) authenticate(r *http.Request, now time.Time) (jwtClaims, error) {
    tok, ok := parseBearerToken(r)
    if !ok { return jwtClaims{}, errors.New("missing bearer token") }
    claims, err := verifyHS256(tok, a.Secret)
    if err != nil { return jwtClaims{}, err }
    unix := now.Unix()
    if claims.NotBefore != 0 && unix < claims.NotBefore { return jwtClaims{}, errors.New("token not yet valid") }
    if claims.ExpiresAt != 0 && unix >= claims.ExpiresAt { return jwtClaims{}, errors.New("token expired") }
    if a.Issuer != "" && !strings.EqualFold(claims.Issuer, a.Issuer) { return jwtClaims{}, errors.New("unexpected issuer") }
    if a.Audience != "" && !audContains(claims.Audience, a.Audience) { return jwtClaims{}, errors.New("unexpected audience") }
    if strings.TrimSpace(claims.Subject) == "" { return jwtClaims{}, errors.New("token has no subject") }
    return claims, nil
}

func parseBearerToken(r *http.Request) (string, bool) {
    h := r.Header.Get("Authorization")
    if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") { return "", false }
    tok := strings.TrimSpace(h[len("Bearer "):])
    return tok, tok != ""
}

func verifyHS256(token, secret string) (jwtClaims, error) {
    var empty jwtClaims
    parts := strings.Split(token, ".")
    if len(parts) != 3 { return empty, errors.New("invalid token format") }
    headerB, err := base64.RawURLEncoding.DecodeString(parts[0])
    if err != nil { return empty, errors.New("bad header encoding") }
    payloadB, err := base64.RawURLEncoding.DecodeString(parts[1])
    if err != nil { return empty, errors.New("bad payload encoding") }
    sigB, err := base64.RawURLEncoding.DecodeString(parts[2])
    if err != nil { return empty, errors.New("bad signature encoding") }

    var hdr struct{ Alg, Typ string }
    if err := json.Unmarshal(headerB, &hdr); err != nil { return empty, errors.New("bad header json") }
    if !strings.EqualFold(hdr.Alg, "HS256") { return empty, errors.New("unsupported alg") }

    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(parts[0] + "." + parts[1]))
    if !hmac.Equal(sigB, mac.Sum(nil)) { return empty, errors.New("invalid signature") }

    var claims jwtClaims
    if err := json.Unmarshal(payloadB, &claims); err != nil { return empty, errors.New("bad claims json") }
    return claims, nil
}

func audContains(aud any, expected string) bool {
    switch v := aud.(type) {
    case string:
        return strings.EqualFold(v, expected)
    case []any:
        for _, it := range v {
            if s, ok := it.(string); ok && strings.EqualFold(s, expected) { return true }
        }
    }
    return false
}
