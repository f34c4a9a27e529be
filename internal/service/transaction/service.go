package transaction

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
    "github.com/tinoosan/fundledger/internal/service/balance"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/temporal"
)

const maxDescriptionLen = 500

// CreateInput describes a new transaction.
type CreateInput struct {
    OrganizationID  uuid.UUID
    TransactionDate time.Time
    Amount          money.Amount
    Type            ledger.TransactionType
    DebitAccountID  uuid.UUID
    CreditAccountID uuid.UUID
    Description     string
    ContactID       *uuid.UUID
    ReferenceNumber string
    Actor           string
    // IdempotencyKey, when set, makes a repeated create return the
    // transaction the first request posted.
    IdempotencyKey string
}

// Updates lists the fields an edit may change. Nil fields are left as they are.
type Updates struct {
    TransactionDate *time.Time
    Amount          *money.Amount
    Type            *ledger.TransactionType
    DebitAccountID  *uuid.UUID
    CreditAccountID *uuid.UUID
    Description     *string
    ContactID       *uuid.UUID
    ClearContact    bool
    ReferenceNumber *string
    ChangeReason    string
    // ExpectedVersionID, when set, must match the current version.
    ExpectedVersionID *uuid.UUID
}

// VoidInput carries the reason for a void.
type VoidInput struct {
    Reason            string
    ExpectedVersionID *uuid.UUID
}

// ChangeHook runs inside the unit of work after a new version of an existing
// transaction has been written. Returning an error aborts the whole change.
type ChangeHook func(ctx context.Context, tx storage.Tx, before, after ledger.Transaction) error

// Service exposes the transaction ledger.
type Service interface {
    Create(ctx context.Context, in CreateInput) (ledger.Transaction, error)
    Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Transaction, error)
    GetAsOf(ctx context.Context, orgID, id uuid.UUID, at time.Time) (ledger.Transaction, error)
    List(ctx context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error)
    Edit(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Transaction, error)
    Void(ctx context.Context, orgID, id uuid.UUID, in VoidInput, actor string) (ledger.Transaction, error)
    History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error)
    SetReconciled(ctx context.Context, orgID, id uuid.UUID, reconciled bool, actor string) (ledger.Transaction, error)
}

// Option configures the service.
type Option func(*service)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

// WithLocker serializes writers per lineage.
func WithLocker(l lock.Locker) Option { return func(s *service) { s.locker = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

// WithHook registers a hook run after edits, voids and reconciliation changes.
func WithHook(h ChangeHook) Option { return func(s *service) { s.hooks = append(s.hooks, h) } }

type service struct {
    store  storage.Store
    now    func() time.Time
    locker lock.Locker
    log    *slog.Logger
    hooks  []ChangeHook
}

// New constructs the transaction service.
func New(store storage.Store, opts ...Option) Service {
    s := &service{
        store:  store,
        now:    func() time.Time { return time.Now().UTC() },
        locker: lock.Noop{},
        log:    slog.Default(),
    }
    for _, o := range opts { o(s) }
    return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Transaction, error) {
    var out ledger.Transaction
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        t, err := CreateIn(ctx, tx, in, s.now())
        out = t
        return err
    })
    if err != nil { return ledger.Transaction{}, err }
    s.log.Info("transaction created", "org_id", out.OrganizationID, "transaction_id", out.ID, "version_id", out.VersionID)
    return out, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Transaction, error) {
    if orgID == uuid.Nil || id == uuid.Nil { return ledger.Transaction{}, errs.ErrNotFound }
    return s.store.TransactionByID(ctx, orgID, id)
}

func (s *service) GetAsOf(ctx context.Context, orgID, id uuid.UUID, at time.Time) (ledger.Transaction, error) {
    versions, err := s.store.TransactionVersions(ctx, orgID, id)
    if err != nil { return ledger.Transaction{}, err }
    t, ok := temporal.AsOf(versions, at.UTC())
    if !ok { return ledger.Transaction{}, errs.ErrNotFound }
    return t, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error) {
    if orgID == uuid.Nil { return nil, 0, errs.Invalid("organization_id", "required") }
    if f.Offset < 0 { f.Offset = 0 }
    return s.store.ListTransactions(ctx, orgID, f)
}

func (s *service) History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error) {
    versions, err := s.store.TransactionVersions(ctx, orgID, id)
    if err != nil { return nil, err }
    out := temporal.Chain(versions)
    if out == nil { out = []ledger.Transaction{} }
    return out, nil
}

func (s *service) Edit(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Transaction, error) {
    return s.change(ctx, orgID, id, "edited", func(ctx context.Context, tx storage.Tx, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
        return EditIn(ctx, tx, orgID, id, u, actor, at)
    })
}

func (s *service) Void(ctx context.Context, orgID, id uuid.UUID, in VoidInput, actor string) (ledger.Transaction, error) {
    return s.change(ctx, orgID, id, "voided", func(ctx context.Context, tx storage.Tx, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
        return VoidIn(ctx, tx, orgID, id, in, actor, at)
    })
}

func (s *service) SetReconciled(ctx context.Context, orgID, id uuid.UUID, reconciled bool, actor string) (ledger.Transaction, error) {
    return s.change(ctx, orgID, id, "reconciliation changed", func(ctx context.Context, tx storage.Tx, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
        return ReconcileIn(ctx, tx, orgID, id, reconciled, actor, at)
    })
}

type changeFn func(ctx context.Context, tx storage.Tx, at time.Time) (before, after ledger.Transaction, err error)

// change runs fn under the lineage lock in one unit of work, then the hooks.
func (s *service) change(ctx context.Context, orgID, id uuid.UUID, verb string, fn changeFn) (ledger.Transaction, error) {
    release, err := s.locker.Acquire(ctx, lock.LineageKey("transaction", orgID, id))
    if err != nil { return ledger.Transaction{}, err }
    defer release()

    var out ledger.Transaction
    err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        before, after, err := fn(ctx, tx, s.now())
        if err != nil { return err }
        for _, h := range s.hooks {
            if err := h(ctx, tx, before, after); err != nil { return err }
        }
        out = after
        return nil
    })
    if err != nil {
        if errs.IsRetryable(err) {
            s.log.Warn("transaction change conflict", "org_id", orgID, "transaction_id", id, "err", err)
        }
        return ledger.Transaction{}, err
    }
    s.log.Info("transaction "+verb, "org_id", orgID, "transaction_id", id, "version_id", out.VersionID)
    return out, nil
}

// CreateIn validates and posts a new transaction inside an open unit of work.
func CreateIn(ctx context.Context, tx storage.Tx, in CreateInput, at time.Time) (ledger.Transaction, error) {
    if in.OrganizationID == uuid.Nil { return ledger.Transaction{}, errs.Invalid("organization_id", "required") }
    key := strings.TrimSpace(in.IdempotencyKey)
    if len(key) > 255 { return ledger.Transaction{}, errs.Invalid("idempotency_key", "must be at most 255 characters") }
    if key != "" {
        prev, ok, err := tx.TransactionByIdempotencyKey(ctx, in.OrganizationID, key)
        if err != nil { return ledger.Transaction{}, err }
        if ok { return prev, nil }
    }
    t := ledger.Transaction{
        Version:         temporal.Open(at),
        OrganizationID:  in.OrganizationID,
        TransactionDate: in.TransactionDate.UTC(),
        Amount:          in.Amount,
        Type:            in.Type,
        DebitAccountID:  in.DebitAccountID,
        CreditAccountID: in.CreditAccountID,
        Description:     strings.TrimSpace(in.Description),
        ContactID:       in.ContactID,
        ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
        ChangedBy:       in.Actor,
        CreatedBy:       in.Actor,
    }
    if err := validate(ctx, tx, t, nil); err != nil { return ledger.Transaction{}, err }
    if err := tx.InsertTransactionVersion(ctx, t); err != nil { return ledger.Transaction{}, fmt.Errorf("insert transaction: %w", err) }
    if err := balance.Apply(ctx, tx, t.OrganizationID, t.DebitAccountID, t.CreditAccountID, t.Amount); err != nil {
        return ledger.Transaction{}, err
    }
    if key != "" {
        if err := tx.SaveIdempotencyKey(ctx, t.OrganizationID, key, t.ID); err != nil { return ledger.Transaction{}, err }
    }
    return t, nil
}

// EditIn supersedes the current version of a transaction with one carrying
// the updates. The old effect is reversed with the old accounts and amount
// and the new effect applied with the new ones, so amount changes and
// account reassignment are handled by the same steps.
func EditIn(ctx context.Context, tx storage.Tx, orgID, id uuid.UUID, u Updates, actor string, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
    cur, err := loadMutable(ctx, tx, orgID, id, u.ExpectedVersionID)
    if err != nil { return ledger.Transaction{}, ledger.Transaction{}, err }

    next := temporal.BuildNext(cur, at, func(t *ledger.Transaction) {
        apply(t, u)
        t.ChangedBy = actor
        t.ChangeReason = strings.TrimSpace(u.ChangeReason)
        t.IsVoided = false
    })
    if err := validate(ctx, tx, next, cur.ContactID); err != nil { return ledger.Transaction{}, ledger.Transaction{}, err }

    if err := balance.Reverse(ctx, tx, orgID, cur.DebitAccountID, cur.CreditAccountID, cur.Amount); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    if err := tx.CloseTransactionVersion(ctx, orgID, cur.VersionID, at); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    if err := tx.InsertTransactionVersion(ctx, next); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("insert transaction version: %w", err)
    }
    if err := balance.Apply(ctx, tx, orgID, next.DebitAccountID, next.CreditAccountID, next.Amount); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    return cur, next, nil
}

// VoidIn removes the economic effect of a transaction permanently: balances
// are reversed and the successor version is marked voided.
func VoidIn(ctx context.Context, tx storage.Tx, orgID, id uuid.UUID, in VoidInput, actor string, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
    cur, err := loadMutable(ctx, tx, orgID, id, in.ExpectedVersionID)
    if err != nil { return ledger.Transaction{}, ledger.Transaction{}, err }
    if err := balance.Reverse(ctx, tx, orgID, cur.DebitAccountID, cur.CreditAccountID, cur.Amount); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    if err := tx.CloseTransactionVersion(ctx, orgID, cur.VersionID, at); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    voidedAt := at.UTC()
    next := temporal.BuildNext(cur, at, func(t *ledger.Transaction) {
        t.IsVoided = true
        t.VoidedAt = &voidedAt
        t.VoidedBy = actor
        t.VoidReason = strings.TrimSpace(in.Reason)
        t.ChangedBy = actor
        t.ChangeReason = "void"
    })
    if err := tx.InsertTransactionVersion(ctx, next); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("insert transaction version: %w", err)
    }
    return cur, next, nil
}

// ReconcileIn flips the reconciled flag with a new version. Balances are untouched.
func ReconcileIn(ctx context.Context, tx storage.Tx, orgID, id uuid.UUID, reconciled bool, actor string, at time.Time) (ledger.Transaction, ledger.Transaction, error) {
    cur, err := tx.TransactionByID(ctx, orgID, id)
    if err != nil { return ledger.Transaction{}, ledger.Transaction{}, notFound(err) }
    if cur.IsVoided { return ledger.Transaction{}, ledger.Transaction{}, voided() }
    if cur.Reconciled == reconciled { return cur, cur, nil }
    if err := tx.CloseTransactionVersion(ctx, orgID, cur.VersionID, at); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, err
    }
    next := temporal.BuildNext(cur, at, func(t *ledger.Transaction) {
        t.Reconciled = reconciled
        t.ReconciledAt = nil
        if reconciled {
            ts := at.UTC()
            t.ReconciledAt = &ts
        }
        t.ChangedBy = actor
        t.ChangeReason = "reconciliation"
    })
    if err := tx.InsertTransactionVersion(ctx, next); err != nil {
        return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("insert transaction version: %w", err)
    }
    return cur, next, nil
}

// loadMutable returns the current version if it may be edited or voided.
func loadMutable(ctx context.Context, tx storage.Tx, orgID, id uuid.UUID, expected *uuid.UUID) (ledger.Transaction, error) {
    cur, err := tx.TransactionByID(ctx, orgID, id)
    if err != nil { return ledger.Transaction{}, notFound(err) }
    if cur.IsVoided { return ledger.Transaction{}, voided() }
    if cur.Reconciled { return ledger.Transaction{}, errs.ErrAlreadyReconciled }
    if expected != nil && *expected != cur.VersionID {
        return ledger.Transaction{}, fmt.Errorf("version %s is no longer current: %w", *expected, errs.ErrConcurrentModification)
    }
    return cur, nil
}

func notFound(err error) error {
    if errors.Is(err, errs.ErrNotFound) { return fmt.Errorf("%w: %w", errs.ErrNotFoundOrVoided, errs.ErrNotFound) }
    return err
}

func voided() error { return fmt.Errorf("%w: %w", errs.ErrNotFoundOrVoided, errs.ErrAlreadyVoided) }

func apply(t *ledger.Transaction, u Updates) {
    if u.TransactionDate != nil { t.TransactionDate = u.TransactionDate.UTC() }
    if u.Amount != nil { t.Amount = *u.Amount }
    if u.Type != nil { t.Type = *u.Type }
    if u.DebitAccountID != nil { t.DebitAccountID = *u.DebitAccountID }
    if u.CreditAccountID != nil { t.CreditAccountID = *u.CreditAccountID }
    if u.Description != nil { t.Description = strings.TrimSpace(*u.Description) }
    if u.ClearContact { t.ContactID = nil }
    if u.ContactID != nil { c := *u.ContactID; t.ContactID = &c }
    if u.ReferenceNumber != nil { t.ReferenceNumber = strings.TrimSpace(*u.ReferenceNumber) }
}

// validate checks t before it is written. A contact equal to kept was already
// accepted on an earlier version and is not looked up again, so deleting a
// contact does not freeze the transactions that name it.
func validate(ctx context.Context, tx storage.Tx, t ledger.Transaction, kept *uuid.UUID) error {
    if !t.Type.Valid() { return errs.Invalid("type", "must be one of INCOME, EXPENSE, TRANSFER, CLOSING") }
    if t.TransactionDate.IsZero() { return errs.Invalid("transaction_date", "required") }
    if !t.Amount.IsPos() { return errs.Invalid("amount", "must be > 0") }
    if units, ok := t.Amount.MinorUnits(); !ok || !sameAmount(t.Amount, units) {
        return errs.Invalid("amount", "must not have more than %d fractional digits", t.Amount.Curr().Scale())
    }
    if t.DebitAccountID == uuid.Nil { return errs.Invalid("debit_account_id", "required") }
    if t.CreditAccountID == uuid.Nil { return errs.Invalid("credit_account_id", "required") }
    if t.DebitAccountID == t.CreditAccountID { return errs.Invalid("credit_account_id", "must differ from debit_account_id") }
    if len(t.Description) > maxDescriptionLen { return errs.Invalid("description", "must be at most %d characters", maxDescriptionLen) }
    if t.ContactID != nil && (kept == nil || *kept != *t.ContactID) {
        if _, err := tx.ContactByID(ctx, t.OrganizationID, *t.ContactID); err != nil {
            if errors.Is(err, errs.ErrNotFound) { return errs.Invalid("contact_id", "contact not found") }
            return err
        }
    }
    return nil
}

// sameAmount reports whether a round trip through minor units is lossless.
func sameAmount(a money.Amount, units int64) bool {
    b, err := money.NewAmountFromMinorUnits(a.Curr().Code(), units)
    if err != nil { return false }
    c, err := a.Cmp(b)
    return err == nil && c == 0
}
