// Package account implements the chart of accounts: versioned accounts with a
// per-organization unique code, an optional parent tree and soft deletes.
// Balances are never written here; they belong to the balance calculator.
package account

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "regexp"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/temporal"
)

var codePattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.\-]{0,19}$`)

// maxDepth bounds the parent walk used for cycle detection.
const maxDepth = 64

// ErrCodeExists indicates a current account with the same code already exists in the organization.
var ErrCodeExists = fmt.Errorf("account code already exists: %w", errs.ErrConflict)

// ErrInUse is returned when deleting an account that current transactions still post to.
var ErrInUse = fmt.Errorf("account is referenced by current transactions: %w", errs.ErrConflict)

// CreateInput describes a new account.
type CreateInput struct {
    OrganizationID  uuid.UUID
    Code            string
    Name            string
    Type            ledger.AccountType
    ParentAccountID *uuid.UUID
    Actor           string
}

// Updates lists the descriptive fields that may change. Type is immutable.
type Updates struct {
    Code            *string
    Name            *string
    ParentAccountID *uuid.UUID
    ClearParent     bool
}

// ItemError represents a per-item failure in a batch operation.
type ItemError struct {
    Index int
    Code  string
    Err   error
}

type Service interface {
    Create(ctx context.Context, in CreateInput) (ledger.Account, error)
    CreateBatch(ctx context.Context, orgID uuid.UUID, specs []CreateInput) ([]ledger.Account, []ItemError, error)
    Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Account, error)
    List(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error)
    Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Account, error)
    Delete(ctx context.Context, orgID, id uuid.UUID, actor string) error
    History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Account, error)
}

type Option func(*service)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

type service struct {
    store    storage.Store
    currency string
    now      func() time.Time
    log      *slog.Logger
}

// New constructs the account service. New accounts open with a zero balance in currency.
func New(store storage.Store, currency string, opts ...Option) Service {
    s := &service{store: store, currency: strings.ToUpper(currency), now: func() time.Time { return time.Now().UTC() }, log: slog.Default()}
    for _, o := range opts { o(s) }
    return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Account, error) {
    var out ledger.Account
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        a, err := s.create(ctx, tx, in, s.now())
        out = a
        return err
    })
    if err != nil { return ledger.Account{}, err }
    s.log.Info("account created", "org_id", out.OrganizationID, "account_id", out.ID, "code", out.Code)
    return out, nil
}

// CreateBatch validates all specs and, if valid, creates them all in one unit of work.
// If any item fails validation or conflicts, no account is created and per-item errors are returned.
func (s *service) CreateBatch(ctx context.Context, orgID uuid.UUID, specs []CreateInput) ([]ledger.Account, []ItemError, error) {
    if orgID == uuid.Nil { return nil, nil, errs.Invalid("organization_id", "required") }
    itemErrs := make([]ItemError, 0)
    seen := make(map[string]int, len(specs))
    for i := range specs {
        specs[i].OrganizationID = orgID
        specs[i].Code = strings.TrimSpace(specs[i].Code)
        if err := validateCreate(specs[i]); err != nil {
            itemErrs = append(itemErrs, ItemError{Index: i, Code: errs.Code(err), Err: err})
            continue
        }
        key := strings.ToUpper(specs[i].Code)
        if prev, ok := seen[key]; ok {
            itemErrs = append(itemErrs, ItemError{Index: i, Code: errs.Code(ErrCodeExists), Err: ErrCodeExists})
            itemErrs = append(itemErrs, ItemError{Index: prev, Code: errs.Code(ErrCodeExists), Err: ErrCodeExists})
            continue
        }
        seen[key] = i
    }
    if len(itemErrs) > 0 { return nil, itemErrs, nil }

    created := make([]ledger.Account, 0, len(specs))
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        for i, in := range specs {
            a, err := s.create(ctx, tx, in, at)
            if err != nil {
                // A failed statement poisons a postgres transaction, so stop at the first item.
                if errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrInvalid) {
                    itemErrs = append(itemErrs, ItemError{Index: i, Code: errs.Code(err), Err: err})
                    return errBatchRejected
                }
                return err
            }
            created = append(created, a)
        }
        return nil
    })
    if errors.Is(err, errBatchRejected) { return nil, itemErrs, nil }
    if err != nil { return nil, nil, err }
    return created, nil, nil
}

var errBatchRejected = errors.New("account: batch rejected")

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Account, error) {
    return s.store.AccountByID(ctx, orgID, id)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error) {
    if orgID == uuid.Nil { return nil, errs.Invalid("organization_id", "required") }
    return s.store.ListAccounts(ctx, orgID)
}

func (s *service) History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Account, error) {
    versions, err := s.store.AccountVersions(ctx, orgID, id)
    if err != nil { return nil, err }
    out := temporal.Chain(versions)
    if out == nil { out = []ledger.Account{} }
    return out, nil
}

// Update supersedes the current version. The balance is carried over unchanged.
func (s *service) Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Account, error) {
    var out ledger.Account
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        cur, err := tx.AccountByID(ctx, orgID, id)
        if err != nil { return err }
        next := temporal.BuildNext(cur, at, func(a *ledger.Account) {
            if u.Code != nil { a.Code = strings.TrimSpace(*u.Code) }
            if u.Name != nil { a.Name = strings.TrimSpace(*u.Name) }
            if u.ClearParent { a.ParentAccountID = nil }
            if u.ParentAccountID != nil { p := *u.ParentAccountID; a.ParentAccountID = &p }
            a.ChangedBy = actor
        })
        if err := validateFields(next.Code, next.Name, next.Type); err != nil { return err }
        if err := checkParent(ctx, tx, orgID, next.ID, next.ParentAccountID); err != nil { return err }
        if err := tx.CloseAccountVersion(ctx, orgID, cur.VersionID, at); err != nil { return err }
        if err := tx.InsertAccountVersion(ctx, next); err != nil { return codeConflict(err) }
        out = next
        return nil
    })
    if err != nil { return ledger.Account{}, err }
    s.log.Info("account updated", "org_id", orgID, "account_id", id, "version_id", out.VersionID)
    return out, nil
}

// Delete soft-deletes the account by superseding it with a deleted version.
// Accounts still carrying a balance, with current children, or referenced by
// current non-voided transactions cannot be deleted.
func (s *service) Delete(ctx context.Context, orgID, id uuid.UUID, actor string) error {
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        cur, err := tx.AccountByID(ctx, orgID, id)
        if err != nil { return err }
        if !cur.Balance.IsZero() { return errs.Invalid("balance", "account %s has a non-zero balance", cur.Code) }
        _, used, err := tx.ListTransactions(ctx, orgID, storage.TransactionFilter{AccountID: &id, Limit: 1})
        if err != nil { return err }
        if used > 0 { return fmt.Errorf("account %s: %w", cur.Code, ErrInUse) }
        all, err := tx.ListAccounts(ctx, orgID)
        if err != nil { return err }
        for _, a := range all {
            if a.ParentAccountID != nil && *a.ParentAccountID == id {
                return errs.Invalid("parent_account_id", "account %s has child account %s", cur.Code, a.Code)
            }
        }
        deletedAt := at.UTC()
        next := temporal.BuildNext(cur, at, func(a *ledger.Account) {
            a.IsDeleted = true
            a.DeletedAt = &deletedAt
            a.DeletedBy = actor
            a.ChangedBy = actor
        })
        if err := tx.CloseAccountVersion(ctx, orgID, cur.VersionID, at); err != nil { return err }
        return tx.InsertAccountVersion(ctx, next)
    })
    if err != nil { return err }
    s.log.Info("account deleted", "org_id", orgID, "account_id", id)
    return nil
}

func (s *service) create(ctx context.Context, tx storage.Tx, in CreateInput, at time.Time) (ledger.Account, error) {
    in.Code = strings.TrimSpace(in.Code)
    in.Name = strings.TrimSpace(in.Name)
    if err := validateCreate(in); err != nil { return ledger.Account{}, err }
    zero, err := money.NewAmountFromMinorUnits(s.currency, 0)
    if err != nil { return ledger.Account{}, errs.Invalid("currency", "unsupported currency %q", s.currency) }
    a := ledger.Account{
        Version:         temporal.Open(at),
        OrganizationID:  in.OrganizationID,
        Code:            in.Code,
        Name:            in.Name,
        Type:            in.Type,
        Balance:         zero,
        ParentAccountID: in.ParentAccountID,
        ChangedBy:       in.Actor,
    }
    if err := checkParent(ctx, tx, a.OrganizationID, a.ID, a.ParentAccountID); err != nil { return ledger.Account{}, err }
    if err := tx.InsertAccountVersion(ctx, a); err != nil { return ledger.Account{}, codeConflict(err) }
    return a, nil
}

func validateCreate(in CreateInput) error {
    if in.OrganizationID == uuid.Nil { return errs.Invalid("organization_id", "required") }
    return validateFields(in.Code, strings.TrimSpace(in.Name), in.Type)
}

func validateFields(code, name string, t ledger.AccountType) error {
    if !codePattern.MatchString(code) { return errs.Invalid("code", "must be 1-20 letters, digits, dots or dashes") }
    if name == "" { return errs.Invalid("name", "required") }
    if !t.Valid() { return errs.Invalid("type", "must be one of ASSET, LIABILITY, EQUITY, REVENUE, EXPENSE") }
    return nil
}

// checkParent rejects a parent outside the organization or one that would
// make id its own ancestor.
func checkParent(ctx context.Context, tx storage.Tx, orgID, id uuid.UUID, parentID *uuid.UUID) error {
    if parentID == nil { return nil }
    next := *parentID
    for depth := 0; depth < maxDepth; depth++ {
        if next == id { return errs.Invalid("parent_account_id", "would create a cycle") }
        p, err := tx.AccountByID(ctx, orgID, next)
        if errors.Is(err, errs.ErrNotFound) {
            if depth == 0 { return errs.Invalid("parent_account_id", "account not found") }
            return nil
        }
        if err != nil { return err }
        if p.ParentAccountID == nil { return nil }
        next = *p.ParentAccountID
    }
    return errs.Invalid("parent_account_id", "account tree too deep")
}

func codeConflict(err error) error {
    if errors.Is(err, errs.ErrConflict) { return ErrCodeExists }
    return err
}
