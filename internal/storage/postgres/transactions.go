package postgres

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
)

const transactionCols = versionCols + `, organization_id, transaction_date, currency, amount_minor, type,
    debit_account_id, credit_account_id, description, contact_id, reference_number,
    reconciled, reconciled_at, is_voided, voided_at, voided_by, void_reason, change_reason, changed_by, created_by`

func scanTransaction(row scanner) (ledger.Transaction, error) {
    var t ledger.Transaction
    var curr string
    var minor int64
    dest := append(versionDest(&t.Version), &t.OrganizationID, &t.TransactionDate, &curr, &minor, &t.Type,
        &t.DebitAccountID, &t.CreditAccountID, &t.Description, &t.ContactID, &t.ReferenceNumber,
        &t.Reconciled, &t.ReconciledAt, &t.IsVoided, &t.VoidedAt, &t.VoidedBy, &t.VoidReason, &t.ChangeReason, &t.ChangedBy, &t.CreatedBy)
    if err := row.Scan(dest...); err != nil { return ledger.Transaction{}, err }
    amt, err := amountOf(curr, minor)
    if err != nil { return ledger.Transaction{}, err }
    t.Amount = amt
    return t, nil
}

func (q *queries) TransactionByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Transaction, error) {
    w := current(map[string]any{"organization_id": orgID, "id": id})
    t, err := scanTransaction(q.db.QueryRow(ctx, `select `+transactionCols+` from transactions where `+w.sql()+q.lock(), w.args...))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Transaction{}, errs.ErrNotFound }
    if err != nil { return ledger.Transaction{}, wrap("select transaction", err) }
    return t, nil
}

func (q *queries) TransactionsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Transaction, error) {
    out := make(map[uuid.UUID]ledger.Transaction, len(ids))
    if len(ids) == 0 { return out, nil }
    w := current(map[string]any{"organization_id": orgID})
    w.add("id = any(?)", ids)
    rows, err := q.db.Query(ctx, `select `+transactionCols+` from transactions where `+w.sql()+` order by id`+q.lock(), w.args...)
    if err != nil { return nil, wrap("select transactions", err) }
    list, err := collect(rows, scanTransaction)
    if err != nil { return nil, wrap("scan transactions", err) }
    for _, t := range list { out[t.ID] = t }
    return out, nil
}

func (q *queries) TransactionVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error) {
    rows, err := q.db.Query(ctx, `select `+transactionCols+` from transactions
        where organization_id = $1 and id = $2 order by system_from desc`, orgID, id)
    if err != nil { return nil, wrap("transaction versions", err) }
    out, err := collect(rows, scanTransaction)
    if err != nil { return nil, wrap("scan transactions", err) }
    return out, nil
}

// ListTransactions returns current versions newest first together with the
// total number of matches before paging.
func (q *queries) ListTransactions(ctx context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error) {
    w := current(map[string]any{"organization_id": orgID})
    if !f.IncludeVoided { w.parts = append(w.parts, "is_voided = false") }
    if f.From != nil { w.add("transaction_date >= ?", *f.From) }
    if f.To != nil { w.add("transaction_date <= ?", *f.To) }
    if f.Type != "" { w.add("type = ?", f.Type) }
    if f.AccountID != nil { w.add("(debit_account_id = ? or credit_account_id = ?)", *f.AccountID) }

    var total int
    if err := q.db.QueryRow(ctx, `select count(*) from transactions where `+w.sql(), w.args...).Scan(&total); err != nil {
        return nil, 0, wrap("count transactions", err)
    }
    sql := `select ` + transactionCols + ` from transactions where ` + w.sql() +
        ` order by transaction_date desc, system_from desc` + pageClause(w, f.Offset, f.Limit)
    rows, err := q.db.Query(ctx, sql, w.args...)
    if err != nil { return nil, 0, wrap("list transactions", err) }
    out, err := collect(rows, scanTransaction)
    if err != nil { return nil, 0, wrap("scan transactions", err) }
    return out, total, nil
}

func (q *queries) TransactionByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error) {
    var id uuid.UUID
    err := q.db.QueryRow(ctx, `select transaction_id from transaction_idempotency
        where organization_id = $1 and key = $2`, orgID, key).Scan(&id)
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Transaction{}, false, nil }
    if err != nil { return ledger.Transaction{}, false, wrap("select idempotency key", err) }
    t, err := q.TransactionByID(ctx, orgID, id)
    if errors.Is(err, errs.ErrNotFound) { return ledger.Transaction{}, false, nil }
    if err != nil { return ledger.Transaction{}, false, err }
    return t, true, nil
}

func (t txQueries) InsertTransactionVersion(ctx context.Context, tr ledger.Transaction) error {
    curr, minor, err := minorUnits(tr.Amount)
    if err != nil { return err }
    args := append(versionArgs(tr.Version), tr.OrganizationID, tr.TransactionDate, curr, minor, tr.Type,
        tr.DebitAccountID, tr.CreditAccountID, tr.Description, tr.ContactID, tr.ReferenceNumber,
        tr.Reconciled, tr.ReconciledAt, tr.IsVoided, tr.VoidedAt, tr.VoidedBy, tr.VoidReason, tr.ChangeReason, tr.ChangedBy, tr.CreatedBy)
    _, err = t.db.Exec(ctx, `insert into transactions (`+transactionCols+`) values (`+placeholders(len(args))+`)`, args...)
    return wrap("insert transaction", err)
}

func (t txQueries) CloseTransactionVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return t.closeVersion(ctx, "transactions", orgID, versionID, at)
}

// SaveIdempotencyKey keeps the first transaction recorded for a key. Losing
// a race to a concurrent request aborts the unit of work as retryable; the
// retry then finds the winner's transaction.
func (t txQueries) SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, transactionID uuid.UUID) error {
    tag, err := t.db.Exec(ctx, `insert into transaction_idempotency (organization_id, key, transaction_id)
        values ($1, $2, $3) on conflict (organization_id, key) do nothing`, orgID, key, transactionID)
    if err != nil { return wrap("save idempotency key", err) }
    if tag.RowsAffected() == 0 { return fmt.Errorf("save idempotency key: %w", errs.ErrConcurrentModification) }
    return nil
}

// pageClause appends limit/offset arguments to w and returns the SQL suffix.
func pageClause(w *where, offset, limit int) string {
    out := ""
    if limit > 0 {
        out += fmt.Sprintf(" limit $%d", w.next())
        w.args = append(w.args, limit)
    }
    if offset > 0 {
        out += fmt.Sprintf(" offset $%d", w.next())
        w.args = append(w.args, offset)
    }
    return out
}

func placeholders(n int) string {
    out := make([]byte, 0, n*4)
    for i := 1; i <= n; i++ {
        if i > 1 { out = append(out, ',') }
        out = fmt.Appendf(out, "$%d", i)
    }
    return string(out)
}
