// Package bill implements the bill and pledge lifecycle on top of the
// transaction ledger. A bill owns one accrual transaction and the payment
// links pointing at its payment transactions; amountPaid is always derived
// from the non-voided payments and never edited directly.
//
// Cancelling a bill does not void its accrual. Reversing the accrual is a
// separate ledger action so the two state machines stay independent.
package bill

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/platform/lock"
    "github.com/tinoosan/fundledger/internal/service/transaction"
    "github.com/tinoosan/fundledger/internal/storage"
)

// CreateInput describes a new bill (PAYABLE) or pledge (RECEIVABLE).
type CreateInput struct {
    OrganizationID uuid.UUID
    ContactID      uuid.UUID
    Direction      ledger.BillDirection
    BillNumber     string
    Description    string
    Amount         money.Amount
    IssueDate      time.Time
    DueDate        *time.Time
    // AccrualAccountID is the expense or asset account of a payable, or the revenue account of a receivable.
    AccrualAccountID uuid.UUID
    // ControlAccountID is the accounts payable or accounts receivable account.
    ControlAccountID uuid.UUID
    AttachmentURL    string
    // Draft creates the bill without posting the accrual.
    Draft bool
    Actor string
}

// Updates lists the fields an update may change. Nil fields are left as they are.
type Updates struct {
    BillNumber      *string
    Description     *string
    DueDate         *time.Time
    ClearDueDate    bool
    Amount          *money.Amount
    Status          *ledger.BillStatus
    AttachmentURL   *string
    ClearAttachment bool
}

// PaymentInput describes a payment against a bill.
type PaymentInput struct {
    Amount money.Amount
    Date   time.Time
    // AccountID is the bank or cash account the money moves through.
    AccountID       uuid.UUID
    Description     string
    ReferenceNumber string
}

// Payment is a payment link hydrated with the current version of its transaction.
type Payment struct {
    ledger.BillPayment
    Transaction *ledger.Transaction
}

// BillWithPayments is a bill hydrated with its contact, accrual and payments.
type BillWithPayments struct {
    ledger.Bill
    Contact            *ledger.Contact
    AccrualTransaction *ledger.Transaction
    Payments           []Payment
}

// ListResult is one page of bills and the total matching the filter.
type ListResult struct {
    Bills      []ledger.Bill
    TotalCount int
}

type Service interface {
    Create(ctx context.Context, in CreateInput) (ledger.Bill, error)
    Issue(ctx context.Context, orgID, id uuid.UUID, actor string) (ledger.Bill, error)
    Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Bill, error)
    Cancel(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error)
    RecordPayment(ctx context.Context, orgID, id uuid.UUID, in PaymentInput, actor string) (BillWithPayments, error)
    VoidPayment(ctx context.Context, orgID, id, transactionID uuid.UUID, reason, actor string) (BillWithPayments, error)
    RecalculateStatus(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error)
    Get(ctx context.Context, orgID, id uuid.UUID) (BillWithPayments, error)
    List(ctx context.Context, orgID uuid.UUID, f storage.BillFilter) (ListResult, error)
    MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

type Option func(*service)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

// WithLocker serializes writers per bill.
func WithLocker(l lock.Locker) Option { return func(s *service) { s.locker = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

type service struct {
    store  storage.Store
    now    func() time.Time
    locker lock.Locker
    log    *slog.Logger
}

func New(store storage.Store, opts ...Option) Service {
    s := &service{store: store, now: func() time.Time { return time.Now().UTC() }, locker: lock.Noop{}, log: slog.Default()}
    for _, o := range opts { o(s) }
    return s
}

// RecalculateOnChange returns a transaction hook that re-derives every bill
// paid by a transaction whenever that transaction is edited or voided. An
// edit to a bill's accrual carries the new amount onto the bill; voiding the
// accrual leaves the bill alone, as cancelling a bill leaves the accrual.
func RecalculateOnChange(now func() time.Time) transaction.ChangeHook {
    if now == nil { now = func() time.Time { return time.Now().UTC() } }
    return func(ctx context.Context, tx storage.Tx, _, after ledger.Transaction) error {
        at := now()
        bills, err := tx.BillsByPaymentTransaction(ctx, after.OrganizationID, after.ID)
        if err != nil { return err }
        for _, b := range bills {
            if _, err := recalculate(ctx, tx, b, at); err != nil { return err }
        }
        if after.IsVoided { return nil }
        accruing, err := tx.BillsByAccrualTransaction(ctx, after.OrganizationID, after.ID)
        if err != nil { return err }
        for _, b := range accruing {
            if sameAmount(b.Amount, after.Amount) { continue }
            b.Amount = after.Amount
            next, err := derive(ctx, tx, b, at)
            if err != nil { return err }
            next.UpdatedAt = at.UTC()
            if err := tx.UpdateBill(ctx, next); err != nil { return fmt.Errorf("update bill: %w", err) }
        }
        return nil
    }
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Bill, error) {
    if err := validateCreate(in); err != nil { return ledger.Bill{}, err }
    var out ledger.Bill
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        if _, err := tx.ContactByID(ctx, in.OrganizationID, in.ContactID); err != nil {
            if errors.Is(err, errs.ErrNotFound) { return errs.Invalid("contact_id", "contact not found") }
            return err
        }
        if err := checkControlAccount(ctx, tx, in.OrganizationID, in.Direction, in.ControlAccountID); err != nil { return err }
        zero, err := money.NewAmountFromMinorUnits(in.Amount.Curr().Code(), 0)
        if err != nil { return errs.Invalid("amount", "%v", err) }
        b := ledger.Bill{
            ID:               uuid.New(),
            OrganizationID:   in.OrganizationID,
            ContactID:        in.ContactID,
            Direction:        in.Direction,
            Status:           ledger.BillDraft,
            BillNumber:       strings.TrimSpace(in.BillNumber),
            Description:      strings.TrimSpace(in.Description),
            Amount:           in.Amount,
            AmountPaid:       zero,
            IssueDate:        in.IssueDate.UTC(),
            DueDate:          utcPtr(in.DueDate),
            AccrualAccountID: in.AccrualAccountID,
            ControlAccountID: in.ControlAccountID,
            AttachmentURL:    strings.TrimSpace(in.AttachmentURL),
            CreatedBy:        in.Actor,
            CreatedAt:        at.UTC(),
            UpdatedAt:        at.UTC(),
        }
        if b.BillNumber == "" { b.BillNumber = defaultNumber(b) }
        if !in.Draft {
            if err := postAccrual(ctx, tx, &b, in.Actor, at); err != nil { return err }
        }
        if err := tx.InsertBill(ctx, b); err != nil { return fmt.Errorf("insert bill: %w", err) }
        out = b
        return nil
    })
    if err != nil { return ledger.Bill{}, err }
    s.log.Info("bill created", "org_id", out.OrganizationID, "bill_id", out.ID, "status", out.Status)
    return out, nil
}

func (s *service) Issue(ctx context.Context, orgID, id uuid.UUID, actor string) (ledger.Bill, error) {
    return s.mutate(ctx, orgID, id, "issued", func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error {
        return issue(ctx, tx, b, actor, at)
    })
}

func (s *service) Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Bill, error) {
    return s.mutate(ctx, orgID, id, "updated", func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error {
        if u.BillNumber != nil {
            n := strings.TrimSpace(*u.BillNumber)
            if n == "" { return errs.Invalid("bill_number", "must not be empty") }
            b.BillNumber = n
        }
        if u.Description != nil { b.Description = strings.TrimSpace(*u.Description) }
        if u.ClearDueDate { b.DueDate = nil }
        if u.DueDate != nil { b.DueDate = utcPtr(u.DueDate) }
        if u.ClearAttachment { b.AttachmentURL = "" }
        if u.AttachmentURL != nil { b.AttachmentURL = strings.TrimSpace(*u.AttachmentURL) }
        if u.Amount != nil {
            if err := changeAmount(ctx, tx, b, *u.Amount, actor, at); err != nil { return err }
        }
        if u.Status != nil && *u.Status != b.Status {
            if err := setStatus(ctx, tx, b, *u.Status, actor, at); err != nil { return err }
        }
        return nil
    })
}

func (s *service) Cancel(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
    return s.mutate(ctx, orgID, id, "cancelled", func(_ context.Context, _ storage.Tx, b *ledger.Bill, _ time.Time) error {
        return cancel(b)
    })
}

func (s *service) RecalculateStatus(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
    return s.mutate(ctx, orgID, id, "recalculated", func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error {
        next, err := derive(ctx, tx, *b, at)
        if err != nil { return err }
        *b = next
        return nil
    })
}

func (s *service) RecordPayment(ctx context.Context, orgID, id uuid.UUID, in PaymentInput, actor string) (BillWithPayments, error) {
    _, err := s.mutate(ctx, orgID, id, "payment recorded", func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error {
        if !b.Status.CanTransition(ledger.BillPaid) {
            return fmt.Errorf("bill is %s: %w", b.Status, errs.ErrInvalidStatusTransition)
        }
        if in.AccountID == uuid.Nil { return errs.Invalid("account_id", "required") }
        date := in.Date
        if date.IsZero() { date = at }
        desc := strings.TrimSpace(in.Description)
        if desc == "" { desc = "Payment " + b.BillNumber }
        debit, credit := b.ControlAccountID, in.AccountID
        if b.Direction == ledger.BillReceivable { debit, credit = in.AccountID, b.ControlAccountID }
        contact := b.ContactID
        t, err := transaction.CreateIn(ctx, tx, transaction.CreateInput{
            OrganizationID:  b.OrganizationID,
            TransactionDate: date,
            Amount:          in.Amount,
            Type:            ledger.TransactionTypeTransfer,
            DebitAccountID:  debit,
            CreditAccountID: credit,
            Description:     desc,
            ContactID:       &contact,
            ReferenceNumber: in.ReferenceNumber,
            Actor:           actor,
        }, at)
        if err != nil { return err }
        if err := tx.InsertBillPayment(ctx, ledger.BillPayment{
            ID:             uuid.New(),
            OrganizationID: b.OrganizationID,
            BillID:         b.ID,
            TransactionID:  t.ID,
            CreatedAt:      at.UTC(),
        }); err != nil {
            return fmt.Errorf("insert bill payment: %w", err)
        }
        next, err := derive(ctx, tx, *b, at)
        if err != nil { return err }
        *b = next
        return nil
    })
    if err != nil { return BillWithPayments{}, err }
    return s.Get(ctx, orgID, id)
}

func (s *service) VoidPayment(ctx context.Context, orgID, id, transactionID uuid.UUID, reason, actor string) (BillWithPayments, error) {
    _, err := s.mutate(ctx, orgID, id, "payment voided", func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error {
        links, err := tx.BillPayments(ctx, orgID, b.ID)
        if err != nil { return err }
        linked := false
        for _, l := range links {
            if l.TransactionID == transactionID { linked = true; break }
        }
        if !linked { return errs.ErrNotFound }
        if _, _, err := transaction.VoidIn(ctx, tx, orgID, transactionID, transaction.VoidInput{Reason: reason}, actor, at); err != nil {
            return err
        }
        next, err := derive(ctx, tx, *b, at)
        if err != nil { return err }
        *b = next
        return nil
    })
    if err != nil { return BillWithPayments{}, err }
    return s.Get(ctx, orgID, id)
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (BillWithPayments, error) {
    b, err := s.store.BillByID(ctx, orgID, id)
    if err != nil { return BillWithPayments{}, err }
    links, err := s.store.BillPayments(ctx, orgID, id)
    if err != nil { return BillWithPayments{}, err }

    ids := make([]uuid.UUID, 0, len(links)+1)
    for _, l := range links { ids = append(ids, l.TransactionID) }
    if b.AccrualTransactionID != nil { ids = append(ids, *b.AccrualTransactionID) }
    txns, err := s.store.TransactionsByIDs(ctx, orgID, ids)
    if err != nil { return BillWithPayments{}, err }
    contacts, err := s.store.ContactsByIDs(ctx, orgID, []uuid.UUID{b.ContactID})
    if err != nil { return BillWithPayments{}, err }

    out := BillWithPayments{Bill: b, Payments: make([]Payment, 0, len(links))}
    if c, ok := contacts[b.ContactID]; ok { out.Contact = &c }
    if b.AccrualTransactionID != nil {
        if t, ok := txns[*b.AccrualTransactionID]; ok { out.AccrualTransaction = &t }
    }
    for _, l := range links {
        p := Payment{BillPayment: l}
        if t, ok := txns[l.TransactionID]; ok { p.Transaction = &t }
        out.Payments = append(out.Payments, p)
    }
    return out, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, f storage.BillFilter) (ListResult, error) {
    if orgID == uuid.Nil { return ListResult{}, errs.Invalid("organization_id", "required") }
    if f.Status != "" && !f.Status.Valid() { return ListResult{}, errs.Invalid("status", "unknown status %q", f.Status) }
    if f.Direction != "" && !f.Direction.Valid() { return ListResult{}, errs.Invalid("direction", "unknown direction %q", f.Direction) }
    bills, total, err := s.store.ListBills(ctx, orgID, f)
    if err != nil { return ListResult{}, err }
    return ListResult{Bills: bills, TotalCount: total}, nil
}

// MarkOverdue moves every PENDING or PARTIAL bill whose due date is before
// asOf to OVERDUE and returns how many bills changed. Bills that changed
// state in the meantime are skipped.
func (s *service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
    candidates, err := s.store.OverdueBills(ctx, asOf.UTC())
    if err != nil { return 0, err }
    n := 0
    for _, c := range candidates {
        changed := false
        _, err := s.mutate(ctx, c.OrganizationID, c.ID, "marked overdue", func(_ context.Context, _ storage.Tx, b *ledger.Bill, _ time.Time) error {
            if b.DueDate == nil || !b.DueDate.Before(asOf) { return nil }
            if b.Status != ledger.BillPending && b.Status != ledger.BillPartial { return nil }
            b.Status = ledger.BillOverdue
            changed = true
            return nil
        })
        if err != nil {
            if errs.IsRetryable(err) {
                s.log.Warn("overdue sweep skipped bill", "org_id", c.OrganizationID, "bill_id", c.ID, "err", err)
                continue
            }
            return n, err
        }
        if changed { n++ }
    }
    return n, nil
}

type mutateFn func(ctx context.Context, tx storage.Tx, b *ledger.Bill, at time.Time) error

// mutate loads the bill inside a unit of work under the bill lock, applies fn
// and persists the bill if fn changed it.
func (s *service) mutate(ctx context.Context, orgID, id uuid.UUID, verb string, fn mutateFn) (ledger.Bill, error) {
    release, err := s.locker.Acquire(ctx, lock.LineageKey("bill", orgID, id))
    if err != nil { return ledger.Bill{}, err }
    defer release()

    var out ledger.Bill
    changed := false
    err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        cur, err := tx.BillByID(ctx, orgID, id)
        if err != nil { return err }
        next := cur
        if err := fn(ctx, tx, &next, at); err != nil { return err }
        if same(cur, next) { out = cur; return nil }
        next.UpdatedAt = at.UTC()
        if err := tx.UpdateBill(ctx, next); err != nil { return fmt.Errorf("update bill: %w", err) }
        out, changed = next, true
        return nil
    })
    if err != nil { return ledger.Bill{}, err }
    if changed {
        s.log.Info("bill "+verb, "org_id", orgID, "bill_id", id, "status", out.Status)
    }
    return out, nil
}

// derive recomputes amountPaid from the non-voided payment transactions and
// applies the resulting status when the transition table allows it.
// Calling it again without a payment change returns the same bill.
func derive(ctx context.Context, tx storage.Tx, b ledger.Bill, at time.Time) (ledger.Bill, error) {
    links, err := tx.BillPayments(ctx, b.OrganizationID, b.ID)
    if err != nil { return ledger.Bill{}, err }
    ids := make([]uuid.UUID, 0, len(links))
    for _, l := range links { ids = append(ids, l.TransactionID) }
    txns, err := tx.TransactionsByIDs(ctx, b.OrganizationID, ids)
    if err != nil { return ledger.Bill{}, err }

    paid, err := money.NewAmountFromMinorUnits(b.Amount.Curr().Code(), 0)
    if err != nil { return ledger.Bill{}, err }
    for _, l := range links {
        t, ok := txns[l.TransactionID]
        if !ok || t.IsVoided { continue }
        if paid, err = paid.Add(t.Amount); err != nil { return ledger.Bill{}, errs.Invalid("amount", "payment %s: %v", t.ID, err) }
    }
    b.AmountPaid = paid

    cmp, err := paid.Cmp(b.Amount)
    if err != nil { return ledger.Bill{}, errs.Invalid("amount", "%v", err) }
    target := b.Status
    switch {
    case cmp >= 0:
        target = ledger.BillPaid
    case paid.IsPos():
        target = ledger.BillPartial
    }
    if target != b.Status && b.Status.CanTransition(target) { b.Status = target }
    if b.Status == ledger.BillPaid && b.PaidInFullDate == nil {
        ts := at.UTC()
        b.PaidInFullDate = &ts
    }
    return b, nil
}

// recalculate derives and persists one bill inside an open unit of work.
func recalculate(ctx context.Context, tx storage.Tx, b ledger.Bill, at time.Time) (ledger.Bill, error) {
    next, err := derive(ctx, tx, b, at)
    if err != nil { return ledger.Bill{}, err }
    if same(b, next) { return b, nil }
    next.UpdatedAt = at.UTC()
    if err := tx.UpdateBill(ctx, next); err != nil { return ledger.Bill{}, fmt.Errorf("update bill: %w", err) }
    return next, nil
}

func issue(ctx context.Context, tx storage.Tx, b *ledger.Bill, actor string, at time.Time) error {
    if !b.Status.CanTransition(ledger.BillPending) || b.Status != ledger.BillDraft {
        return fmt.Errorf("cannot issue a %s bill: %w", b.Status, errs.ErrInvalidStatusTransition)
    }
    return postAccrual(ctx, tx, b, actor, at)
}

func cancel(b *ledger.Bill) error {
    switch b.Status {
    case ledger.BillPaid:
        return errs.ErrCannotCancelPaidBill
    case ledger.BillCancelled:
        return fmt.Errorf("bill already cancelled: %w", errs.ErrInvalidStatusTransition)
    }
    if !b.Status.CanTransition(ledger.BillCancelled) {
        return fmt.Errorf("cannot cancel a %s bill: %w", b.Status, errs.ErrInvalidStatusTransition)
    }
    b.Status = ledger.BillCancelled
    return nil
}

// setStatus applies an explicit status change. PAID and PARTIAL are derived
// from payments and cannot be set directly.
func setStatus(ctx context.Context, tx storage.Tx, b *ledger.Bill, next ledger.BillStatus, actor string, at time.Time) error {
    if !next.Valid() { return errs.Invalid("status", "unknown status %q", next) }
    switch next {
    case ledger.BillPending:
        return issue(ctx, tx, b, actor, at)
    case ledger.BillCancelled:
        return cancel(b)
    case ledger.BillPaid, ledger.BillPartial:
        return fmt.Errorf("%s is derived from payments: %w", next, errs.ErrInvalidStatusTransition)
    }
    if !b.Status.CanTransition(next) {
        return fmt.Errorf("%s -> %s: %w", b.Status, next, errs.ErrInvalidStatusTransition)
    }
    b.Status = next
    return nil
}

// changeAmount edits the accrual through the ledger edit protocol so the
// balances move by exactly the old amount out and the new amount in.
func changeAmount(ctx context.Context, tx storage.Tx, b *ledger.Bill, amount money.Amount, actor string, at time.Time) error {
    if b.Status.Terminal() { return fmt.Errorf("cannot change the amount of a %s bill: %w", b.Status, errs.ErrInvalidStatusTransition) }
    if !amount.IsPos() { return errs.Invalid("amount", "must be > 0") }
    if amount.Curr() != b.Amount.Curr() { return errs.Invalid("amount", "currency must be %s", b.Amount.Curr().Code()) }
    if b.AccrualTransactionID != nil {
        _, _, err := transaction.EditIn(ctx, tx, b.OrganizationID, *b.AccrualTransactionID, transaction.Updates{
            Amount:       &amount,
            ChangeReason: "bill amount changed",
        }, actor, at)
        if err != nil { return err }
    }
    b.Amount = amount
    next, err := derive(ctx, tx, *b, at)
    if err != nil { return err }
    *b = next
    return nil
}

// postAccrual records the original obligation and moves the bill to PENDING.
func postAccrual(ctx context.Context, tx storage.Tx, b *ledger.Bill, actor string, at time.Time) error {
    in := transaction.CreateInput{
        OrganizationID:  b.OrganizationID,
        TransactionDate: b.IssueDate,
        Amount:          b.Amount,
        Description:     accrualDescription(*b),
        ContactID:       &b.ContactID,
        ReferenceNumber: b.BillNumber,
        Actor:           actor,
    }
    switch b.Direction {
    case ledger.BillPayable:
        in.Type, in.DebitAccountID, in.CreditAccountID = ledger.TransactionTypeExpense, b.AccrualAccountID, b.ControlAccountID
    default:
        in.Type, in.DebitAccountID, in.CreditAccountID = ledger.TransactionTypeIncome, b.ControlAccountID, b.AccrualAccountID
    }
    t, err := transaction.CreateIn(ctx, tx, in, at)
    if err != nil { return err }
    id := t.ID
    b.AccrualTransactionID = &id
    b.Status = ledger.BillPending
    return nil
}

func checkControlAccount(ctx context.Context, tx storage.Tx, orgID uuid.UUID, dir ledger.BillDirection, id uuid.UUID) error {
    acc, err := tx.AccountByID(ctx, orgID, id)
    if errors.Is(err, errs.ErrNotFound) { return errs.Invalid("control_account_id", "account not found") }
    if err != nil { return err }
    want := ledger.AccountTypeLiability
    if dir == ledger.BillReceivable { want = ledger.AccountTypeAsset }
    if acc.Type != want { return errs.Invalid("control_account_id", "must be a %s account for a %s bill", want, dir) }
    return nil
}

func validateCreate(in CreateInput) error {
    if in.OrganizationID == uuid.Nil { return errs.Invalid("organization_id", "required") }
    if in.ContactID == uuid.Nil { return errs.Invalid("contact_id", "required") }
    if !in.Direction.Valid() { return errs.Invalid("direction", "must be PAYABLE or RECEIVABLE") }
    if !in.Amount.IsPos() { return errs.Invalid("amount", "must be > 0") }
    if in.IssueDate.IsZero() { return errs.Invalid("issue_date", "required") }
    if in.DueDate != nil && in.DueDate.Before(in.IssueDate) { return errs.Invalid("due_date", "must not be before issue_date") }
    if in.AccrualAccountID == uuid.Nil { return errs.Invalid("accrual_account_id", "required") }
    if in.ControlAccountID == uuid.Nil { return errs.Invalid("control_account_id", "required") }
    if in.AccrualAccountID == in.ControlAccountID { return errs.Invalid("control_account_id", "must differ from accrual_account_id") }
    return nil
}

func accrualDescription(b ledger.Bill) string {
    if b.Description != "" { return b.Description }
    if b.Direction == ledger.BillReceivable { return "Pledge " + b.BillNumber }
    return "Bill " + b.BillNumber
}

func defaultNumber(b ledger.Bill) string {
    prefix := "BILL"
    if b.Direction == ledger.BillReceivable { prefix = "PLEDGE" }
    return fmt.Sprintf("%s-%s-%s", prefix, b.IssueDate.Format("20060102"), strings.ToUpper(b.ID.String()[:8]))
}

func utcPtr(t *time.Time) *time.Time {
    if t == nil { return nil }
    u := t.UTC()
    return &u
}

// same reports whether two bills carry identical persisted state.
func same(a, b ledger.Bill) bool {
    if a.Status != b.Status || a.BillNumber != b.BillNumber || a.Description != b.Description || a.AttachmentURL != b.AttachmentURL {
        return false
    }
    if !sameAmount(a.Amount, b.Amount) || !sameAmount(a.AmountPaid, b.AmountPaid) {
        return false
    }
    return sameTime(a.DueDate, b.DueDate) && sameTime(a.PaidInFullDate, b.PaidInFullDate) && sameID(a.AccrualTransactionID, b.AccrualTransactionID)
}

func sameAmount(a, b money.Amount) bool {
    c, err := a.Cmp(b)
    return err == nil && c == 0
}

func sameTime(a, b *time.Time) bool {
    if a == nil || b == nil { return a == b }
    return a.Equal(*b)
}

func sameID(a, b *uuid.UUID) bool {
    if a == nil || b == nil { return a == b }
    return *a == *b
}
