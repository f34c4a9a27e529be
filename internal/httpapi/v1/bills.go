package v1

import (
    "context"
    "net/http"
    "strings"

    "github.com/google/uuid"

    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/bill"
    "github.com/tinoosan/fundledger/internal/storage"
)

// POST /v1/orgs/{orgID}/bills
func (s *Server) postBill(w http.ResponseWriter, r *http.Request) {
    var req postBillRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    amt, err := s.amount("amount_minor", req.AmountMinor)
    if err != nil { s.writeServiceError(w, r, err); return }
    b, err := s.bills.Create(r.Context(), bill.CreateInput{
        OrganizationID:   orgFrom(r),
        ContactID:        req.ContactID,
        Direction:        req.Direction,
        BillNumber:       req.BillNumber,
        Description:      req.Description,
        Amount:           amt,
        IssueDate:        req.IssueDate,
        DueDate:          req.DueDate,
        AccrualAccountID: req.AccrualAccountID,
        ControlAccountID: req.ControlAccountID,
        AttachmentURL:    req.AttachmentURL,
        Draft:            req.Draft,
        Actor:            actorFrom(r),
    })
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("bill", "create")
    toJSON(w, http.StatusCreated, toBillResponse(b))
}

// GET /v1/orgs/{orgID}/bills?status=&direction=&contact_id=&due_before=&limit=&offset=
func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
    var f storage.BillFilter
    var err error
    q := r.URL.Query()
    if raw := q.Get("status"); raw != "" {
        f.Status = ledger.BillStatus(strings.ToUpper(raw))
        if !f.Status.Valid() { badRequest(w, "invalid status"); return }
    }
    if raw := q.Get("direction"); raw != "" {
        f.Direction = ledger.BillDirection(strings.ToUpper(raw))
        if !f.Direction.Valid() { badRequest(w, "invalid direction"); return }
    }
    if f.ContactID, err = queryUUID(r, "contact_id"); err != nil { badRequest(w, err.Error()); return }
    if f.DueBefore, err = queryTime(r, "due_before"); err != nil { badRequest(w, err.Error()); return }
    if f.Limit, f.Offset, err = page(r); err != nil { badRequest(w, err.Error()); return }
    res, err := s.bills.List(r.Context(), orgFrom(r), f)
    if err != nil { s.writeServiceError(w, r, err); return }
    out := make([]billResponse, 0, len(res.Bills))
    for _, b := range res.Bills { out = append(out, toBillResponse(b)) }
    toJSON(w, http.StatusOK, listResponse[billResponse]{Items: out, Total: res.TotalCount})
}

// GET /v1/orgs/{orgID}/bills/{id}
func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid bill id"); return }
    b, err := s.bills.Get(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    toJSON(w, http.StatusOK, toBillDetail(b))
}

// PATCH /v1/orgs/{orgID}/bills/{id}
func (s *Server) updateBill(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid bill id"); return }
    var req updateBillRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    u := bill.Updates{
        BillNumber:      req.BillNumber,
        Description:     req.Description,
        DueDate:         req.DueDate,
        ClearDueDate:    req.ClearDueDate,
        Status:          req.Status,
        AttachmentURL:   req.AttachmentURL,
        ClearAttachment: req.ClearAttachment,
    }
    if req.AmountMinor != nil {
        amt, err := s.amount("amount_minor", *req.AmountMinor)
        if err != nil { s.writeServiceError(w, r, err); return }
        u.Amount = &amt
    }
    b, err := s.bills.Update(r.Context(), orgFrom(r), id, u, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("bill", "update")
    toJSON(w, http.StatusOK, toBillResponse(b))
}

// POST /v1/orgs/{orgID}/bills/{id}/issue
func (s *Server) issueBill(w http.ResponseWriter, r *http.Request) {
    s.billTransition(w, r, "issue", func(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
        return s.bills.Issue(ctx, orgID, id, actorFrom(r))
    })
}

// POST /v1/orgs/{orgID}/bills/{id}/cancel
func (s *Server) cancelBill(w http.ResponseWriter, r *http.Request) {
    s.billTransition(w, r, "cancel", s.bills.Cancel)
}

// POST /v1/orgs/{orgID}/bills/{id}/recalculate
func (s *Server) recalculateBill(w http.ResponseWriter, r *http.Request) {
    s.billTransition(w, r, "recalculate", s.bills.RecalculateStatus)
}

func (s *Server) billTransition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error)) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid bill id"); return }
    b, err := fn(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("bill", op)
    toJSON(w, http.StatusOK, toBillResponse(b))
}

// POST /v1/orgs/{orgID}/bills/{id}/payments
func (s *Server) postBillPayment(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid bill id"); return }
    var req paymentRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    amt, err := s.amount("amount_minor", req.AmountMinor)
    if err != nil { s.writeServiceError(w, r, err); return }
    b, err := s.bills.RecordPayment(r.Context(), orgFrom(r), id, bill.PaymentInput{
        Amount:          amt,
        Date:            req.Date,
        AccountID:       req.AccountID,
        Description:     req.Description,
        ReferenceNumber: req.ReferenceNumber,
    }, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("bill", "payment")
    toJSON(w, http.StatusCreated, toBillDetail(b))
}

// POST /v1/orgs/{orgID}/bills/{id}/payments/{transactionID}/void
func (s *Server) voidBillPayment(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid bill id"); return }
    txID, err := pathID(r, "transactionID")
    if err != nil { badRequest(w, "invalid transaction id"); return }
    var req voidRequest
    if !s.decodeOptional(w, r, &req) { return }
    b, err := s.bills.VoidPayment(r.Context(), orgFrom(r), id, txID, req.Reason, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("bill", "void_payment")
    toJSON(w, http.StatusOK, toBillDetail(b))
}
