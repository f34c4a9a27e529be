package v1

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/tinoosan/fundledger/internal/dictionary"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/balance"
    "github.com/tinoosan/fundledger/internal/statement"
)

const maxStatementBytes = 8 << 20

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
    defer cancel()
    if err := s.store.Ready(ctx); err != nil {
        s.log.Warn("readiness check failed", "err", err)
        w.WriteHeader(http.StatusServiceUnavailable)
        return
    }
    w.WriteHeader(http.StatusOK)
}

// GET /v1/dictionary/chart?type=
func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
    var t *ledger.AccountType
    if ts := r.URL.Query().Get("type"); ts != "" {
        tt := ledger.AccountType(strings.ToUpper(ts))
        if !tt.Valid() { badRequest(w, "invalid type"); return }
        t = &tt
    }
    toJSON(w, http.StatusOK, struct {
        Ranges   []dictionary.CodeRange  `json:"ranges"`
        Accounts []dictionary.AccountDef `json:"accounts"`
    }{Ranges: dictionary.Ranges(), Accounts: dictionary.Chart(t)})
}

// GET /v1/orgs/{orgID}/trial-balance
// Stored balances next to a replay of every live transaction.
func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
    lines, err := balance.TrialBalance(r.Context(), s.store, orgFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    out := toTrialBalance(lines)
    if !out.InSync { s.log.Warn("trial balance drift", "org_id", orgFrom(r)) }
    toJSON(w, http.StatusOK, out)
}

// POST /v1/statements/parse
// Content is the base64 file body; warnings come back alongside the lines.
func (s *Server) parseStatement(w http.ResponseWriter, r *http.Request) {
    var req parseStatementRequest
    if !s.decodeBody(w, r, &req, maxStatementBytes) { return }
    res := statement.Parse(req.Content, req.FileName, req.Mapping)
    toJSON(w, http.StatusOK, res)
}
