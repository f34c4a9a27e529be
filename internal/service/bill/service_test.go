package bill

import (
    "context"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/stretchr/testify/require"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/account"
    "github.com/tinoosan/fundledger/internal/service/contact"
    "github.com/tinoosan/fundledger/internal/service/transaction"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/storage/memory"
)

var issued = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
    store   *memory.Store
    bills   Service
    txns    transaction.Service
    org     uuid.UUID
    contact uuid.UUID
    ids     map[string]uuid.UUID
    now     time.Time
}

func (f *fixture) clock() time.Time {
    f.now = f.now.Add(time.Second)
    return f.now
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    ctx := context.Background()
    st := memory.New()
    f := &fixture{store: st, org: uuid.New(), ids: map[string]uuid.UUID{}, now: issued}
    accounts := account.New(st, "USD", account.WithNow(f.clock))
    for code, typ := range map[string]ledger.AccountType{
        "1000": ledger.AccountTypeAsset,     // bank
        "1200": ledger.AccountTypeAsset,     // receivables
        "2000": ledger.AccountTypeLiability, // payables
        "4000": ledger.AccountTypeRevenue,
        "5000": ledger.AccountTypeExpense,
    } {
        a, err := accounts.Create(ctx, account.CreateInput{OrganizationID: f.org, Code: code, Name: code, Type: typ})
        require.NoError(t, err)
        f.ids[code] = a.ID
    }
    c, err := contact.New(st, contact.WithNow(f.clock)).Create(ctx, contact.CreateInput{OrganizationID: f.org, Name: "Paper Co"})
    require.NoError(t, err)
    f.contact = c.ID
    f.bills = New(st, WithNow(f.clock))
    f.txns = transaction.New(st, transaction.WithNow(f.clock), transaction.WithHook(RecalculateOnChange(f.clock)))
    return f
}

func usd(units int64) money.Amount { return money.MustNewAmount("USD", units, 0) }

func (f *fixture) balance(t *testing.T, code string) int64 {
    t.Helper()
    a, err := f.store.AccountByID(context.Background(), f.org, f.ids[code])
    require.NoError(t, err)
    u, _ := a.Balance.MinorUnits()
    return u / 100
}

func (f *fixture) payable(t *testing.T, amount int64, draft bool) ledger.Bill {
    t.Helper()
    due := issued.AddDate(0, 0, 30)
    b, err := f.bills.Create(context.Background(), CreateInput{
        OrganizationID:   f.org,
        ContactID:        f.contact,
        Direction:        ledger.BillPayable,
        Amount:           usd(amount),
        IssueDate:        issued,
        DueDate:          &due,
        AccrualAccountID: f.ids["5000"],
        ControlAccountID: f.ids["2000"],
        Draft:            draft,
        Actor:            "alice",
    })
    require.NoError(t, err)
    return b
}

func (f *fixture) pay(t *testing.T, b ledger.Bill, amount int64) BillWithPayments {
    t.Helper()
    out, err := f.bills.RecordPayment(context.Background(), f.org, b.ID, PaymentInput{Amount: usd(amount), AccountID: f.ids["1000"]}, "alice")
    require.NoError(t, err)
    return out
}

func paid(t *testing.T, b ledger.Bill) int64 {
    t.Helper()
    u, _ := b.AmountPaid.MinorUnits()
    return u / 100
}

func TestCreatePostsAccrual(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)
    require.Equal(t, ledger.BillPending, b.Status)
    require.NotNil(t, b.AccrualTransactionID)
    require.NotEmpty(t, b.BillNumber)
    require.Equal(t, int64(500), f.balance(t, "5000"))
    require.Equal(t, int64(500), f.balance(t, "2000"))

    got, err := f.bills.Get(context.Background(), f.org, b.ID)
    require.NoError(t, err)
    require.NotNil(t, got.Contact)
    require.Equal(t, "Paper Co", got.Contact.Name)
    require.NotNil(t, got.AccrualTransaction)
    require.Equal(t, ledger.TransactionTypeExpense, got.AccrualTransaction.Type)
    require.Empty(t, got.Payments)
}

func TestReceivableAccrualSides(t *testing.T) {
    f := newFixture(t)
    b, err := f.bills.Create(context.Background(), CreateInput{
        OrganizationID:   f.org,
        ContactID:        f.contact,
        Direction:        ledger.BillReceivable,
        Amount:           usd(300),
        IssueDate:        issued,
        AccrualAccountID: f.ids["4000"],
        ControlAccountID: f.ids["1200"],
    })
    require.NoError(t, err)
    require.Equal(t, int64(300), f.balance(t, "1200"))
    require.Equal(t, int64(300), f.balance(t, "4000"))

    f.pay(t, b, 300)
    require.Equal(t, int64(0), f.balance(t, "1200"))
    require.Equal(t, int64(300), f.balance(t, "1000"))
}

func TestFullPaymentMarksPaidOnce(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)

    got := f.pay(t, b, 500)
    require.Equal(t, ledger.BillPaid, got.Status)
    require.Equal(t, int64(500), paid(t, got.Bill))
    require.NotNil(t, got.PaidInFullDate)
    require.Len(t, got.Payments, 1)
    require.NotNil(t, got.Payments[0].Transaction)
    require.Equal(t, int64(0), f.balance(t, "2000"))
    require.Equal(t, int64(-500), f.balance(t, "1000"))

    first := *got.PaidInFullDate
    again, err := f.bills.RecalculateStatus(context.Background(), f.org, b.ID)
    require.NoError(t, err)
    require.Equal(t, first, *again.PaidInFullDate)
    twice, err := f.bills.RecalculateStatus(context.Background(), f.org, b.ID)
    require.NoError(t, err)
    require.Equal(t, again, twice)

    // PAID is terminal: no further payments
    _, err = f.bills.RecordPayment(context.Background(), f.org, b.ID, PaymentInput{Amount: usd(1), AccountID: f.ids["1000"]}, "alice")
    require.ErrorIs(t, err, errs.ErrInvalidStatusTransition)
    require.Equal(t, int64(-500), f.balance(t, "1000"))
}

func TestPartialThenPaid(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)

    got := f.pay(t, b, 200)
    require.Equal(t, ledger.BillPartial, got.Status)
    require.Equal(t, int64(200), paid(t, got.Bill))
    require.Nil(t, got.PaidInFullDate)

    got = f.pay(t, b, 300)
    require.Equal(t, ledger.BillPaid, got.Status)
    require.Equal(t, int64(500), paid(t, got.Bill))
    require.Len(t, got.Payments, 2)
}

func TestVoidedPaymentIsExcluded(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)
    got := f.pay(t, b, 200)
    payment := got.Payments[0].TransactionID

    got, err := f.bills.VoidPayment(context.Background(), f.org, b.ID, payment, "bounced", "alice")
    require.NoError(t, err)
    require.Equal(t, int64(0), paid(t, got.Bill))
    // no transition back out of PARTIAL exists, so the status stays
    require.Equal(t, ledger.BillPartial, got.Status)
    require.True(t, got.Payments[0].Transaction.IsVoided)
    require.Equal(t, int64(0), f.balance(t, "1000"))

    _, err = f.bills.VoidPayment(context.Background(), f.org, b.ID, uuid.New(), "", "alice")
    require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLedgerVoidRecalculatesThroughHook(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)
    got := f.pay(t, b, 500)
    require.Equal(t, ledger.BillPaid, got.Status)

    _, err := f.txns.Void(context.Background(), f.org, got.Payments[0].TransactionID, transaction.VoidInput{Reason: "reversed"}, "bob")
    require.NoError(t, err)
    after, err := f.bills.Get(context.Background(), f.org, b.ID)
    require.NoError(t, err)
    require.Equal(t, int64(0), paid(t, after.Bill))
    require.Equal(t, ledger.BillPaid, after.Status)
}

func TestLedgerEditOfAccrualSyncsAmount(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    b := f.payable(t, 500, false)
    f.pay(t, b, 300)

    amount := usd(300)
    _, err := f.txns.Edit(ctx, f.org, *b.AccrualTransactionID, transaction.Updates{Amount: &amount, ChangeReason: "invoice corrected"}, "bob")
    require.NoError(t, err)
    got, err := f.bills.Get(ctx, f.org, b.ID)
    require.NoError(t, err)
    units, _ := got.Amount.MinorUnits()
    require.Equal(t, int64(30000), units)
    require.Equal(t, ledger.BillPaid, got.Status)
    require.NotNil(t, got.PaidInFullDate)

    // voiding the accrual does not touch the bill
    _, err = f.txns.Void(ctx, f.org, *b.AccrualTransactionID, transaction.VoidInput{Reason: "duplicate"}, "bob")
    require.NoError(t, err)
    after, err := f.bills.Get(ctx, f.org, b.ID)
    require.NoError(t, err)
    require.Equal(t, got.Bill, after.Bill)
}

func TestCancel(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 100, false)
    cancelled, err := f.bills.Cancel(context.Background(), f.org, b.ID)
    require.NoError(t, err)
    require.Equal(t, ledger.BillCancelled, cancelled.Status)
    // the accrual is left for a separate void
    require.Equal(t, int64(100), f.balance(t, "5000"))
    acc, err := f.txns.Get(context.Background(), f.org, *b.AccrualTransactionID)
    require.NoError(t, err)
    require.False(t, acc.IsVoided)

    _, err = f.bills.Cancel(context.Background(), f.org, b.ID)
    require.ErrorIs(t, err, errs.ErrInvalidStatusTransition)

    p := f.payable(t, 100, false)
    f.pay(t, p, 100)
    _, err = f.bills.Cancel(context.Background(), f.org, p.ID)
    require.ErrorIs(t, err, errs.ErrCannotCancelPaidBill)
}

func TestDraftIssue(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 120, true)
    require.Equal(t, ledger.BillDraft, b.Status)
    require.Nil(t, b.AccrualTransactionID)
    require.Equal(t, int64(0), f.balance(t, "5000"))

    _, err := f.bills.RecordPayment(context.Background(), f.org, b.ID, PaymentInput{Amount: usd(1), AccountID: f.ids["1000"]}, "alice")
    require.ErrorIs(t, err, errs.ErrInvalidStatusTransition)

    b, err = f.bills.Issue(context.Background(), f.org, b.ID, "alice")
    require.NoError(t, err)
    require.Equal(t, ledger.BillPending, b.Status)
    require.NotNil(t, b.AccrualTransactionID)
    require.Equal(t, int64(120), f.balance(t, "5000"))

    _, err = f.bills.Issue(context.Background(), f.org, b.ID, "alice")
    require.ErrorIs(t, err, errs.ErrInvalidStatusTransition)
}

func TestUpdateStatusTable(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 100, false)
    set := func(s ledger.BillStatus) error {
        _, err := f.bills.Update(context.Background(), f.org, b.ID, Updates{Status: &s}, "alice")
        return err
    }
    require.ErrorIs(t, set(ledger.BillPaid), errs.ErrInvalidStatusTransition)
    require.ErrorIs(t, set(ledger.BillDraft), errs.ErrInvalidStatusTransition)
    require.NoError(t, set(ledger.BillOverdue))
    require.ErrorIs(t, set(ledger.BillPending), errs.ErrInvalidStatusTransition)
    require.NoError(t, set(ledger.BillCancelled))
    require.ErrorIs(t, set(ledger.BillOverdue), errs.ErrInvalidStatusTransition)
    require.ErrorIs(t, set("LOST"), errs.ErrInvalid)
}

func TestUpdateAmountEditsAccrual(t *testing.T) {
    f := newFixture(t)
    b := f.payable(t, 500, false)
    f.pay(t, b, 300)

    amount := usd(300)
    desc := "paper, reduced"
    got, err := f.bills.Update(context.Background(), f.org, b.ID, Updates{Amount: &amount, Description: &desc}, "alice")
    require.NoError(t, err)
    require.Equal(t, ledger.BillPaid, got.Status)
    require.Equal(t, desc, got.Description)
    require.Equal(t, int64(300), f.balance(t, "5000"))
    require.Equal(t, int64(0), f.balance(t, "2000"))

    hist, err := f.txns.History(context.Background(), f.org, *b.AccrualTransactionID)
    require.NoError(t, err)
    require.Len(t, hist, 2)
    require.Equal(t, "bill amount changed", hist[0].ChangeReason)
}

func TestMarkOverdue(t *testing.T) {
    f := newFixture(t)
    due := f.payable(t, 100, false)
    partial := f.payable(t, 100, false)
    f.pay(t, partial, 40)
    draft := f.payable(t, 100, true)

    n, err := f.bills.MarkOverdue(context.Background(), issued.AddDate(0, 0, 10))
    require.NoError(t, err)
    require.Zero(t, n)

    n, err = f.bills.MarkOverdue(context.Background(), issued.AddDate(0, 0, 31))
    require.NoError(t, err)
    require.Equal(t, 2, n)
    for _, id := range []uuid.UUID{due.ID, partial.ID} {
        got, err := f.bills.Get(context.Background(), f.org, id)
        require.NoError(t, err)
        require.Equal(t, ledger.BillOverdue, got.Status)
    }
    got, err := f.bills.Get(context.Background(), f.org, draft.ID)
    require.NoError(t, err)
    require.Equal(t, ledger.BillDraft, got.Status)

    // overdue bills still accept payments
    out := f.pay(t, due, 100)
    require.Equal(t, ledger.BillPaid, out.Status)
}

func TestListAndScoping(t *testing.T) {
    f := newFixture(t)
    first := f.payable(t, 100, false)
    f.payable(t, 200, true)

    res, err := f.bills.List(context.Background(), f.org, storage.BillFilter{})
    require.NoError(t, err)
    require.Equal(t, 2, res.TotalCount)
    res, err = f.bills.List(context.Background(), f.org, storage.BillFilter{Status: ledger.BillDraft})
    require.NoError(t, err)
    require.Equal(t, 1, res.TotalCount)
    res, err = f.bills.List(context.Background(), f.org, storage.BillFilter{Limit: 1})
    require.NoError(t, err)
    require.Equal(t, 2, res.TotalCount)
    require.Len(t, res.Bills, 1)

    res, err = f.bills.List(context.Background(), uuid.New(), storage.BillFilter{})
    require.NoError(t, err)
    require.Zero(t, res.TotalCount)
    _, err = f.bills.Get(context.Background(), uuid.New(), first.ID)
    require.ErrorIs(t, err, errs.ErrNotFound)
    _, err = f.bills.Cancel(context.Background(), uuid.New(), first.ID)
    require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
    f := newFixture(t)
    base := CreateInput{
        OrganizationID:   f.org,
        ContactID:        f.contact,
        Direction:        ledger.BillPayable,
        Amount:           usd(10),
        IssueDate:        issued,
        AccrualAccountID: f.ids["5000"],
        ControlAccountID: f.ids["2000"],
    }
    cases := map[string]func(in *CreateInput){
        "direction":       func(in *CreateInput) { in.Direction = "SIDEWAYS" },
        "amount":          func(in *CreateInput) { in.Amount = usd(0) },
        "contact":         func(in *CreateInput) { in.ContactID = uuid.New() },
        "control type":    func(in *CreateInput) { in.ControlAccountID = f.ids["1200"] },
        "due before issue": func(in *CreateInput) { d := issued.AddDate(0, 0, -1); in.DueDate = &d },
    }
    for name, mutate := range cases {
        t.Run(name, func(t *testing.T) {
            in := base
            mutate(&in)
            _, err := f.bills.Create(context.Background(), in)
            require.ErrorIs(t, err, errs.ErrInvalid)
        })
    }
    require.Equal(t, int64(0), f.balance(t, "5000"))
}
