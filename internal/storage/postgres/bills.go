package postgres

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
)

const billCols = `id, organization_id, contact_id, direction, status, bill_number, description,
    currency, amount_minor, amount_paid_minor, issue_date, due_date, paid_in_full_date,
    accrual_transaction_id, accrual_account_id, control_account_id, attachment_url,
    created_by, created_at, updated_at`

func scanBill(row scanner) (ledger.Bill, error) {
    var b ledger.Bill
    var curr string
    var amount, paid int64
    if err := row.Scan(&b.ID, &b.OrganizationID, &b.ContactID, &b.Direction, &b.Status, &b.BillNumber, &b.Description,
        &curr, &amount, &paid, &b.IssueDate, &b.DueDate, &b.PaidInFullDate,
        &b.AccrualTransactionID, &b.AccrualAccountID, &b.ControlAccountID, &b.AttachmentURL,
        &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
        return ledger.Bill{}, err
    }
    var err error
    if b.Amount, err = amountOf(curr, amount); err != nil { return ledger.Bill{}, err }
    if b.AmountPaid, err = amountOf(curr, paid); err != nil { return ledger.Bill{}, err }
    return b, nil
}

func billArgs(b ledger.Bill) ([]any, error) {
    curr, amount, err := minorUnits(b.Amount)
    if err != nil { return nil, err }
    _, paid, err := minorUnits(b.AmountPaid)
    if err != nil { return nil, err }
    return []any{b.ID, b.OrganizationID, b.ContactID, b.Direction, b.Status, b.BillNumber, b.Description,
        curr, amount, paid, b.IssueDate, b.DueDate, b.PaidInFullDate,
        b.AccrualTransactionID, b.AccrualAccountID, b.ControlAccountID, b.AttachmentURL,
        b.CreatedBy, b.CreatedAt, b.UpdatedAt}, nil
}

func (q *queries) BillByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
    b, err := scanBill(q.db.QueryRow(ctx, `select `+billCols+` from bills
        where organization_id = $1 and id = $2`+q.lock(), orgID, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Bill{}, errs.ErrNotFound }
    if err != nil { return ledger.Bill{}, wrap("select bill", err) }
    return b, nil
}

func (q *queries) ListBills(ctx context.Context, orgID uuid.UUID, f storage.BillFilter) ([]ledger.Bill, int, error) {
    w := &where{}
    w.add("organization_id = ?", orgID)
    if f.Status != "" { w.add("status = ?", f.Status) }
    if f.Direction != "" { w.add("direction = ?", f.Direction) }
    if f.ContactID != nil { w.add("contact_id = ?", *f.ContactID) }
    if f.DueBefore != nil { w.add("due_date < ?", *f.DueBefore) }

    var total int
    if err := q.db.QueryRow(ctx, `select count(*) from bills where `+w.sql(), w.args...).Scan(&total); err != nil {
        return nil, 0, wrap("count bills", err)
    }
    sql := `select ` + billCols + ` from bills where ` + w.sql() +
        ` order by issue_date desc, created_at desc` + pageClause(w, f.Offset, f.Limit)
    rows, err := q.db.Query(ctx, sql, w.args...)
    if err != nil { return nil, 0, wrap("list bills", err) }
    out, err := collect(rows, scanBill)
    if err != nil { return nil, 0, wrap("scan bills", err) }
    return out, total, nil
}

func scanPayment(row scanner) (ledger.BillPayment, error) {
    var p ledger.BillPayment
    err := row.Scan(&p.ID, &p.OrganizationID, &p.BillID, &p.TransactionID, &p.CreatedAt)
    return p, err
}

func (q *queries) BillPayments(ctx context.Context, orgID, billID uuid.UUID) ([]ledger.BillPayment, error) {
    rows, err := q.db.Query(ctx, `select id, organization_id, bill_id, transaction_id, created_at
        from bill_payments where organization_id = $1 and bill_id = $2 order by created_at, id`, orgID, billID)
    if err != nil { return nil, wrap("bill payments", err) }
    out, err := collect(rows, scanPayment)
    if err != nil { return nil, wrap("scan bill payments", err) }
    return out, nil
}

func (q *queries) BillsByPaymentTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    rows, err := q.db.Query(ctx, `select `+billCols+` from bills
        where organization_id = $1 and id in (
            select bill_id from bill_payments where organization_id = $1 and transaction_id = $2)
        order by id`+q.lock(), orgID, transactionID)
    if err != nil { return nil, wrap("bills by payment", err) }
    out, err := collect(rows, scanBill)
    if err != nil { return nil, wrap("scan bills", err) }
    return out, nil
}

func (q *queries) BillsByAccrualTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    rows, err := q.db.Query(ctx, `select `+billCols+` from bills
        where organization_id = $1 and accrual_transaction_id = $2
        order by id`+q.lock(), orgID, transactionID)
    if err != nil { return nil, wrap("bills by accrual", err) }
    out, err := collect(rows, scanBill)
    if err != nil { return nil, wrap("scan bills", err) }
    return out, nil
}

// OverdueBills spans every organization; the sweep job works across tenants.
func (q *queries) OverdueBills(ctx context.Context, asOf time.Time) ([]ledger.Bill, error) {
    rows, err := q.db.Query(ctx, `select `+billCols+` from bills
        where status in ($1, $2) and due_date is not null and due_date < $3
        order by due_date`, ledger.BillPending, ledger.BillPartial, asOf)
    if err != nil { return nil, wrap("overdue bills", err) }
    out, err := collect(rows, scanBill)
    if err != nil { return nil, wrap("scan bills", err) }
    return out, nil
}

func (t txQueries) InsertBill(ctx context.Context, b ledger.Bill) error {
    args, err := billArgs(b)
    if err != nil { return err }
    _, err = t.db.Exec(ctx, `insert into bills (`+billCols+`) values (`+placeholders(len(args))+`)`, args...)
    return wrap("insert bill", err)
}

func (t txQueries) UpdateBill(ctx context.Context, b ledger.Bill) error {
    args, err := billArgs(b)
    if err != nil { return err }
    tag, err := t.db.Exec(ctx, `update bills set
            contact_id = $3, direction = $4, status = $5, bill_number = $6, description = $7,
            currency = $8, amount_minor = $9, amount_paid_minor = $10, issue_date = $11, due_date = $12,
            paid_in_full_date = $13, accrual_transaction_id = $14, accrual_account_id = $15,
            control_account_id = $16, attachment_url = $17, created_by = $18, created_at = $19, updated_at = $20
        where id = $1 and organization_id = $2`, args...)
    if err != nil { return wrap("update bill", err) }
    if tag.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}

func (t txQueries) InsertBillPayment(ctx context.Context, p ledger.BillPayment) error {
    _, err := t.db.Exec(ctx, `insert into bill_payments (id, organization_id, bill_id, transaction_id, created_at)
        values ($1, $2, $3, $4, $5)`, p.ID, p.OrganizationID, p.BillID, p.TransactionID, p.CreatedAt)
    return wrap("insert bill payment", err)
}
