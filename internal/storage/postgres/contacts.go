package postgres

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
)

const contactCols = versionCols + `, organization_id, name, email, phone, changed_by`

func scanContact(row scanner) (ledger.Contact, error) {
    var c ledger.Contact
    dest := append(versionDest(&c.Version), &c.OrganizationID, &c.Name, &c.Email, &c.Phone, &c.ChangedBy)
    if err := row.Scan(dest...); err != nil { return ledger.Contact{}, err }
    return c, nil
}

func (q *queries) ContactsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Contact, error) {
    out := make(map[uuid.UUID]ledger.Contact, len(ids))
    if len(ids) == 0 { return out, nil }
    w := current(map[string]any{"organization_id": orgID})
    w.add("id = any(?)", ids)
    rows, err := q.db.Query(ctx, `select `+contactCols+` from contacts where `+w.sql(), w.args...)
    if err != nil { return nil, wrap("select contacts", err) }
    list, err := collect(rows, scanContact)
    if err != nil { return nil, wrap("scan contacts", err) }
    for _, c := range list { out[c.ID] = c }
    return out, nil
}

func (q *queries) ContactByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Contact, error) {
    w := current(map[string]any{"organization_id": orgID, "id": id})
    c, err := scanContact(q.db.QueryRow(ctx, `select `+contactCols+` from contacts where `+w.sql()+q.lock(), w.args...))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Contact{}, errs.ErrNotFound }
    if err != nil { return ledger.Contact{}, wrap("select contact", err) }
    return c, nil
}

func (q *queries) ListContacts(ctx context.Context, orgID uuid.UUID) ([]ledger.Contact, error) {
    w := current(map[string]any{"organization_id": orgID})
    rows, err := q.db.Query(ctx, `select `+contactCols+` from contacts where `+w.sql()+` order by lower(name)`, w.args...)
    if err != nil { return nil, wrap("list contacts", err) }
    out, err := collect(rows, scanContact)
    if err != nil { return nil, wrap("scan contacts", err) }
    return out, nil
}

func (q *queries) ContactVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error) {
    rows, err := q.db.Query(ctx, `select `+contactCols+` from contacts
        where organization_id = $1 and id = $2 order by system_from desc`, orgID, id)
    if err != nil { return nil, wrap("contact versions", err) }
    out, err := collect(rows, scanContact)
    if err != nil { return nil, wrap("scan contacts", err) }
    return out, nil
}

func (t txQueries) InsertContactVersion(ctx context.Context, c ledger.Contact) error {
    args := append(versionArgs(c.Version), c.OrganizationID, c.Name, c.Email, c.Phone, c.ChangedBy)
    _, err := t.db.Exec(ctx, `insert into contacts (`+contactCols+`) values (`+placeholders(len(args))+`)`, args...)
    return wrap("insert contact", err)
}

func (t txQueries) CloseContactVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return t.closeVersion(ctx, "contacts", orgID, versionID, at)
}
