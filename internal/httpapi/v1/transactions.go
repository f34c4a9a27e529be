package v1

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/transaction"
    "github.com/tinoosan/fundledger/internal/storage"
)

func (s *Server) amount(field string, minorUnits int64) (money.Amount, error) {
    a, err := money.NewAmountFromMinorUnits(s.currency, minorUnits)
    if err != nil { return money.Amount{}, errs.Invalid(field, "%v", err) }
    return a, nil
}

// POST /v1/orgs/{orgID}/transactions
// An Idempotency-Key header makes retries return the transaction the first request posted.
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
    var req postTransactionRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    orgID := orgFrom(r)
    key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
    if key != "" {
        prev, ok, err := s.store.TransactionByIdempotencyKey(r.Context(), orgID, key)
        if err != nil { s.writeServiceError(w, r, err); return }
        if ok {
            w.Header().Set("Idempotent-Replayed", "true")
            setETag(w, prev.VersionID)
            toJSON(w, http.StatusOK, toTransactionResponse(prev))
            return
        }
    }
    amt, err := s.amount("amount_minor", req.AmountMinor)
    if err != nil { s.writeServiceError(w, r, err); return }
    t, err := s.transactions.Create(r.Context(), transaction.CreateInput{
        OrganizationID:  orgID,
        TransactionDate: req.TransactionDate,
        Amount:          amt,
        Type:            req.Type,
        DebitAccountID:  req.DebitAccountID,
        CreditAccountID: req.CreditAccountID,
        Description:     req.Description,
        ContactID:       req.ContactID,
        ReferenceNumber: req.ReferenceNumber,
        Actor:           actorFrom(r),
        IdempotencyKey:  key,
    })
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("transaction", "create")
    setETag(w, t.VersionID)
    toJSON(w, http.StatusCreated, toTransactionResponse(t))
}

// GET /v1/orgs/{orgID}/transactions?from=&to=&account_id=&type=&include_voided=&limit=&offset=
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
    var f storage.TransactionFilter
    var err error
    if f.From, err = queryTime(r, "from"); err != nil { badRequest(w, err.Error()); return }
    if f.To, err = queryTime(r, "to"); err != nil { badRequest(w, err.Error()); return }
    if f.AccountID, err = queryUUID(r, "account_id"); err != nil { badRequest(w, err.Error()); return }
    if f.Limit, f.Offset, err = page(r); err != nil { badRequest(w, err.Error()); return }
    q := r.URL.Query()
    if raw := q.Get("type"); raw != "" {
        f.Type = ledger.TransactionType(strings.ToUpper(raw))
        if !f.Type.Valid() { badRequest(w, "invalid type"); return }
    }
    if raw := q.Get("include_voided"); raw != "" {
        if f.IncludeVoided, err = strconv.ParseBool(raw); err != nil { badRequest(w, "invalid include_voided"); return }
    }
    list, total, err := s.transactions.List(r.Context(), orgFrom(r), f)
    if err != nil { s.writeServiceError(w, r, err); return }
    toJSON(w, http.StatusOK, listResponse[transactionResponse]{Items: toTransactionList(list), Total: total})
}

// GET /v1/orgs/{orgID}/transactions/{id}?as_of=
// as_of reads the version that was current at that system time.
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    asOf, err := queryTime(r, "as_of")
    if err != nil { badRequest(w, err.Error()); return }
    var t ledger.Transaction
    if asOf != nil {
        t, err = s.transactions.GetAsOf(r.Context(), orgFrom(r), id, *asOf)
    } else {
        t, err = s.transactions.Get(r.Context(), orgFrom(r), id)
    }
    if err != nil { s.writeServiceError(w, r, err); return }
    setETag(w, t.VersionID)
    toJSON(w, http.StatusOK, toTransactionResponse(t))
}

// PATCH /v1/orgs/{orgID}/transactions/{id}
// An If-Match header carrying a version id makes the edit conditional on it being current.
func (s *Server) editTransaction(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    expected, err := ifMatch(r)
    if err != nil { badRequest(w, err.Error()); return }
    var req editTransactionRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    u := transaction.Updates{
        TransactionDate:   req.TransactionDate,
        Type:              req.Type,
        DebitAccountID:    req.DebitAccountID,
        CreditAccountID:   req.CreditAccountID,
        Description:       req.Description,
        ContactID:         req.ContactID,
        ClearContact:      req.ClearContact,
        ReferenceNumber:   req.ReferenceNumber,
        ChangeReason:      req.ChangeReason,
        ExpectedVersionID: expected,
    }
    if req.AmountMinor != nil {
        amt, err := s.amount("amount_minor", *req.AmountMinor)
        if err != nil { s.writeServiceError(w, r, err); return }
        u.Amount = &amt
    }
    t, err := s.transactions.Edit(r.Context(), orgFrom(r), id, u, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("transaction", "edit")
    setETag(w, t.VersionID)
    toJSON(w, http.StatusOK, toTransactionResponse(t))
}

// POST /v1/orgs/{orgID}/transactions/{id}/void
func (s *Server) voidTransaction(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    expected, err := ifMatch(r)
    if err != nil { badRequest(w, err.Error()); return }
    var req voidRequest
    if !s.decodeOptional(w, r, &req) { return }
    t, err := s.transactions.Void(r.Context(), orgFrom(r), id, transaction.VoidInput{Reason: req.Reason, ExpectedVersionID: expected}, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("transaction", "void")
    setETag(w, t.VersionID)
    toJSON(w, http.StatusOK, toTransactionResponse(t))
}

// POST /v1/orgs/{orgID}/transactions/{id}/reconcile
func (s *Server) reconcileTransaction(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    var req reconcileRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    t, err := s.transactions.SetReconciled(r.Context(), orgFrom(r), id, *req.Reconciled, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("transaction", "reconcile")
    setETag(w, t.VersionID)
    toJSON(w, http.StatusOK, toTransactionResponse(t))
}

// GET /v1/orgs/{orgID}/transactions/{id}/history
func (s *Server) transactionHistory(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    versions, err := s.transactions.History(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    toJSON(w, http.StatusOK, listResponse[transactionResponse]{Items: toTransactionList(versions), Total: len(versions)})
}
