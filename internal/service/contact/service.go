// Package contact manages versioned donors, vendors and grantors.
package contact

import (
    "context"
    "log/slog"
    "net/mail"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/temporal"
)

type CreateInput struct {
    OrganizationID uuid.UUID
    Name           string
    Email          string
    Phone          string
    Actor          string
}

type Updates struct {
    Name  *string
    Email *string
    Phone *string
}

type Service interface {
    Create(ctx context.Context, in CreateInput) (ledger.Contact, error)
    Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Contact, error)
    List(ctx context.Context, orgID uuid.UUID) ([]ledger.Contact, error)
    Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Contact, error)
    Delete(ctx context.Context, orgID, id uuid.UUID, actor string) error
    History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error)
}

type Option func(*service)

func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

type service struct {
    store storage.Store
    now   func() time.Time
    log   *slog.Logger
}

func New(store storage.Store, opts ...Option) Service {
    s := &service{store: store, now: func() time.Time { return time.Now().UTC() }, log: slog.Default()}
    for _, o := range opts { o(s) }
    return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Contact, error) {
    if in.OrganizationID == uuid.Nil { return ledger.Contact{}, errs.Invalid("organization_id", "required") }
    c := ledger.Contact{
        Version:        temporal.Open(s.now()),
        OrganizationID: in.OrganizationID,
        Name:           strings.TrimSpace(in.Name),
        Email:          strings.TrimSpace(in.Email),
        Phone:          strings.TrimSpace(in.Phone),
        ChangedBy:      in.Actor,
    }
    if err := validate(c); err != nil { return ledger.Contact{}, err }
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return tx.InsertContactVersion(ctx, c)
    })
    if err != nil { return ledger.Contact{}, err }
    s.log.Info("contact created", "org_id", c.OrganizationID, "contact_id", c.ID)
    return c, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (ledger.Contact, error) {
    return s.store.ContactByID(ctx, orgID, id)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]ledger.Contact, error) {
    if orgID == uuid.Nil { return nil, errs.Invalid("organization_id", "required") }
    return s.store.ListContacts(ctx, orgID)
}

func (s *service) History(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error) {
    versions, err := s.store.ContactVersions(ctx, orgID, id)
    if err != nil { return nil, err }
    out := temporal.Chain(versions)
    if out == nil { out = []ledger.Contact{} }
    return out, nil
}

func (s *service) Update(ctx context.Context, orgID, id uuid.UUID, u Updates, actor string) (ledger.Contact, error) {
    var out ledger.Contact
    err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        cur, err := tx.ContactByID(ctx, orgID, id)
        if err != nil { return err }
        next := temporal.BuildNext(cur, at, func(c *ledger.Contact) {
            if u.Name != nil { c.Name = strings.TrimSpace(*u.Name) }
            if u.Email != nil { c.Email = strings.TrimSpace(*u.Email) }
            if u.Phone != nil { c.Phone = strings.TrimSpace(*u.Phone) }
            c.ChangedBy = actor
        })
        if err := validate(next); err != nil { return err }
        if err := tx.CloseContactVersion(ctx, orgID, cur.VersionID, at); err != nil { return err }
        if err := tx.InsertContactVersion(ctx, next); err != nil { return err }
        out = next
        return nil
    })
    if err != nil { return ledger.Contact{}, err }
    return out, nil
}

// Delete supersedes the contact with a deleted version. Transactions and
// bills keep referencing the logical ID.
func (s *service) Delete(ctx context.Context, orgID, id uuid.UUID, actor string) error {
    return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        at := s.now()
        cur, err := tx.ContactByID(ctx, orgID, id)
        if err != nil { return err }
        deletedAt := at.UTC()
        next := temporal.BuildNext(cur, at, func(c *ledger.Contact) {
            c.IsDeleted = true
            c.DeletedAt = &deletedAt
            c.DeletedBy = actor
            c.ChangedBy = actor
        })
        if err := tx.CloseContactVersion(ctx, orgID, cur.VersionID, at); err != nil { return err }
        return tx.InsertContactVersion(ctx, next)
    })
}

func validate(c ledger.Contact) error {
    if c.Name == "" { return errs.Invalid("name", "required") }
    if len(c.Name) > 200 { return errs.Invalid("name", "must be at most 200 characters") }
    if c.Email != "" {
        if _, err := mail.ParseAddress(c.Email); err != nil { return errs.Invalid("email", "invalid address") }
    }
    return nil
}
