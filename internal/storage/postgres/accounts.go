package postgres

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/temporal"
)

const versionCols = `id, version_id, previous_version_id, valid_from, valid_to, system_from, system_to, is_deleted, deleted_at, deleted_by`

func versionDest(v *temporal.Version) []any {
    return []any{&v.ID, &v.VersionID, &v.PreviousVersionID, &v.ValidFrom, &v.ValidTo, &v.SystemFrom, &v.SystemTo, &v.IsDeleted, &v.DeletedAt, &v.DeletedBy}
}

func versionArgs(v temporal.Version) []any {
    return []any{v.ID, v.VersionID, v.PreviousVersionID, v.ValidFrom, v.ValidTo, v.SystemFrom, v.SystemTo, v.IsDeleted, v.DeletedAt, v.DeletedBy}
}

// minorUnits splits an amount into the currency code and integer minor units stored in *_minor columns.
func minorUnits(a money.Amount) (string, int64, error) {
    m, ok := a.MinorUnits()
    if !ok { return "", 0, fmt.Errorf("postgres: amount %s does not fit minor units: %w", a, errs.ErrInvalid) }
    return a.Curr().Code(), m, nil
}

func amountOf(curr string, minor int64) (money.Amount, error) {
    a, err := money.NewAmountFromMinorUnits(curr, minor)
    if err != nil { return money.Amount{}, fmt.Errorf("postgres: amount %d %s: %w", minor, curr, err) }
    return a, nil
}

// closeVersion closes the open row with the given version id. Anything but
// exactly one affected row is a lost race.
func (q *queries) closeVersion(ctx context.Context, table string, orgID, versionID uuid.UUID, at time.Time) error {
    tag, err := q.db.Exec(ctx, `update `+table+` set valid_to = $3, system_to = $3
        where organization_id = $1 and version_id = $2 and valid_to = $4`, orgID, versionID, at.UTC(), temporal.MaxDate)
    if err != nil { return wrap("close "+table, err) }
    return temporal.CheckClosed(tag.RowsAffected())
}

const accountCols = versionCols + `, organization_id, code, name, type, currency, balance_minor, parent_account_id, changed_by`

func scanAccount(row scanner) (ledger.Account, error) {
    var a ledger.Account
    var curr string
    var minor int64
    dest := append(versionDest(&a.Version), &a.OrganizationID, &a.Code, &a.Name, &a.Type, &curr, &minor, &a.ParentAccountID, &a.ChangedBy)
    if err := row.Scan(dest...); err != nil { return ledger.Account{}, err }
    bal, err := amountOf(curr, minor)
    if err != nil { return ledger.Account{}, err }
    a.Balance = bal
    return a, nil
}

func (q *queries) AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    out := make(map[uuid.UUID]ledger.Account, len(ids))
    if len(ids) == 0 { return out, nil }
    w := current(map[string]any{"organization_id": orgID})
    w.add("id = any(?)", ids)
    rows, err := q.db.Query(ctx, `select `+accountCols+` from accounts where `+w.sql()+` order by id`+q.lock(), w.args...)
    if err != nil { return nil, wrap("select accounts", err) }
    list, err := collect(rows, scanAccount)
    if err != nil { return nil, wrap("scan accounts", err) }
    for _, a := range list { out[a.ID] = a }
    return out, nil
}

func (q *queries) AccountByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Account, error) {
    w := current(map[string]any{"organization_id": orgID, "id": id})
    a, err := scanAccount(q.db.QueryRow(ctx, `select `+accountCols+` from accounts where `+w.sql()+q.lock(), w.args...))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Account{}, errs.ErrNotFound }
    if err != nil { return ledger.Account{}, wrap("select account", err) }
    return a, nil
}

func (q *queries) AccountByCode(ctx context.Context, orgID uuid.UUID, code string) (ledger.Account, error) {
    w := current(map[string]any{"organization_id": orgID})
    w.add("lower(code) = lower(?)", code)
    a, err := scanAccount(q.db.QueryRow(ctx, `select `+accountCols+` from accounts where `+w.sql()+q.lock(), w.args...))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Account{}, errs.ErrNotFound }
    if err != nil { return ledger.Account{}, wrap("select account", err) }
    return a, nil
}

func (q *queries) ListAccounts(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error) {
    w := current(map[string]any{"organization_id": orgID})
    rows, err := q.db.Query(ctx, `select `+accountCols+` from accounts where `+w.sql()+` order by code`, w.args...)
    if err != nil { return nil, wrap("list accounts", err) }
    out, err := collect(rows, scanAccount)
    if err != nil { return nil, wrap("scan accounts", err) }
    return out, nil
}

func (q *queries) AccountVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Account, error) {
    rows, err := q.db.Query(ctx, `select `+accountCols+` from accounts
        where organization_id = $1 and id = $2 order by system_from desc`, orgID, id)
    if err != nil { return nil, wrap("account versions", err) }
    out, err := collect(rows, scanAccount)
    if err != nil { return nil, wrap("scan accounts", err) }
    return out, nil
}

func (t txQueries) InsertAccountVersion(ctx context.Context, a ledger.Account) error {
    curr, minor, err := minorUnits(a.Balance)
    if err != nil { return err }
    args := append(versionArgs(a.Version), a.OrganizationID, a.Code, a.Name, a.Type, curr, minor, a.ParentAccountID, a.ChangedBy)
    _, err = t.db.Exec(ctx, `insert into accounts (`+accountCols+`) values (`+placeholders(len(args))+`)`, args...)
    return wrap("insert account", err)
}

func (t txQueries) CloseAccountVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return t.closeVersion(ctx, "accounts", orgID, versionID, at)
}

// SetAccountBalance rewrites the balance of the current version in place.
func (t txQueries) SetAccountBalance(ctx context.Context, orgID, versionID uuid.UUID, balance money.Amount) error {
    curr, minor, err := minorUnits(balance)
    if err != nil { return err }
    tag, err := t.db.Exec(ctx, `update accounts set balance_minor = $3, currency = $4
        where organization_id = $1 and version_id = $2 and valid_to = $5 and is_deleted = false`,
        orgID, versionID, minor, curr, temporal.MaxDate)
    if err != nil { return wrap("set balance", err) }
    return temporal.CheckClosed(tag.RowsAffected())
}
