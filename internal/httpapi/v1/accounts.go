package v1

import (
    "net/http"

    "github.com/tinoosan/fundledger/internal/dictionary"
    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/account"
)

func (s *Server) toAccountInput(r *http.Request, req postAccountRequest) account.CreateInput {
    typ := req.Type
    if typ == "" {
        if guess, ok := dictionary.SuggestType(req.Code); ok { typ = guess }
    }
    return account.CreateInput{
        OrganizationID:  orgFrom(r),
        Code:            req.Code,
        Name:            req.Name,
        Type:            typ,
        ParentAccountID: req.ParentAccountID,
        Actor:           actorFrom(r),
    }
}

// POST /v1/orgs/{orgID}/accounts
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
    var req postAccountRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    a, err := s.accounts.Create(r.Context(), s.toAccountInput(r, req))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("account", "create")
    setETag(w, a.VersionID)
    toJSON(w, http.StatusCreated, toAccountResponse(a))
}

// POST /v1/orgs/{orgID}/accounts/batch
// Atomic: all-or-nothing. Returns 201 with {accounts:[...]} or 422 with {errors:[...]}.
func (s *Server) postAccountsBatch(w http.ResponseWriter, r *http.Request) {
    var req postAccountsBatchRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    specs := make([]account.CreateInput, 0, len(req.Accounts))
    for _, a := range req.Accounts { specs = append(specs, s.toAccountInput(r, a)) }
    created, itemErrs, err := s.accounts.CreateBatch(r.Context(), orgFrom(r), specs)
    if err != nil { s.writeServiceError(w, r, err); return }
    if len(itemErrs) > 0 {
        type itemError struct {
            Index int    `json:"index"`
            Code  string `json:"code"`
            Error string `json:"error"`
        }
        out := make([]itemError, 0, len(itemErrs))
        for _, ie := range itemErrs { out = append(out, itemError{Index: ie.Index, Code: ie.Code, Error: ie.Err.Error()}) }
        toJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": out})
        return
    }
    out := make([]accountResponse, 0, len(created))
    for _, a := range created { out = append(out, toAccountResponse(a)) }
    s.metrics.mutations.WithLabelValues("account", "create").Add(float64(len(created)))
    toJSON(w, http.StatusCreated, map[string]any{"accounts": out})
}

// GET /v1/orgs/{orgID}/accounts?type=
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
    typ := ledger.AccountType(r.URL.Query().Get("type"))
    if typ != "" && !typ.Valid() { s.writeServiceError(w, r, errs.Invalid("type", "unknown account type %q", typ)); return }
    list, err := s.accounts.List(r.Context(), orgFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    out := make([]accountResponse, 0, len(list))
    for _, a := range list {
        if typ != "" && a.Type != typ { continue }
        out = append(out, toAccountResponse(a))
    }
    toJSON(w, http.StatusOK, listResponse[accountResponse]{Items: out, Total: len(out)})
}

// GET /v1/orgs/{orgID}/accounts/{id}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid account id"); return }
    a, err := s.accounts.Get(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    setETag(w, a.VersionID)
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

// PATCH /v1/orgs/{orgID}/accounts/{id}
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid account id"); return }
    var req updateAccountRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    a, err := s.accounts.Update(r.Context(), orgFrom(r), id, account.Updates{
        Code:            req.Code,
        Name:            req.Name,
        ParentAccountID: req.ParentAccountID,
        ClearParent:     req.ClearParent,
    }, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("account", "update")
    setETag(w, a.VersionID)
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

// DELETE /v1/orgs/{orgID}/accounts/{id}
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid account id"); return }
    if err := s.accounts.Delete(r.Context(), orgFrom(r), id, actorFrom(r)); err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("account", "delete")
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/orgs/{orgID}/accounts/{id}/history
func (s *Server) accountHistory(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid account id"); return }
    versions, err := s.accounts.History(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    out := make([]accountResponse, 0, len(versions))
    for _, a := range versions { out = append(out, toAccountResponse(a)) }
    toJSON(w, http.StatusOK, listResponse[accountResponse]{Items: out, Total: len(out)})
}
