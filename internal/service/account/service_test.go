package account

import (
    "context"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/stretchr/testify/require"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/balance"
    "github.com/tinoosan/fundledger/internal/service/transaction"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/storage/memory"
)

func newSvc(t *testing.T) (Service, *memory.Store, uuid.UUID) {
    t.Helper()
    st := memory.New()
    now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
    clock := func() time.Time { now = now.Add(time.Second); return now }
    return New(st, "usd", WithNow(clock)), st, uuid.New()
}

func TestCreateAndCodeUniqueness(t *testing.T) {
    svc, _, org := newSvc(t)
    ctx := context.Background()
    a, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: " 1000 ", Name: "Operating Bank", Type: ledger.AccountTypeAsset, Actor: "alice"})
    require.NoError(t, err)
    require.Equal(t, "1000", a.Code)
    require.True(t, a.Balance.IsZero())
    require.Equal(t, "USD", a.Balance.Curr().Code())

    _, err = svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1000", Name: "Again", Type: ledger.AccountTypeAsset})
    require.ErrorIs(t, err, ErrCodeExists)
    require.ErrorIs(t, err, errs.ErrConflict)

    // codes are scoped per organization
    _, err = svc.Create(ctx, CreateInput{OrganizationID: uuid.New(), Code: "1000", Name: "Elsewhere", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
    svc, _, org := newSvc(t)
    ctx := context.Background()
    for name, in := range map[string]CreateInput{
        "no code":     {OrganizationID: org, Name: "x", Type: ledger.AccountTypeAsset},
        "bad code":    {OrganizationID: org, Code: "10 00", Name: "x", Type: ledger.AccountTypeAsset},
        "no name":     {OrganizationID: org, Code: "1", Type: ledger.AccountTypeAsset},
        "bad type":    {OrganizationID: org, Code: "1", Name: "x", Type: "INCOME"},
        "no org":      {Code: "1", Name: "x", Type: ledger.AccountTypeAsset},
        "no parent":   {OrganizationID: org, Code: "1", Name: "x", Type: ledger.AccountTypeAsset, ParentAccountID: ptr(uuid.New())},
    } {
        _, err := svc.Create(ctx, in)
        require.ErrorIs(t, err, errs.ErrInvalid, name)
    }
}

func ptr[T any](v T) *T { return &v }

func TestUpdateCarriesBalanceAndVersions(t *testing.T) {
    svc, st, org := newSvc(t)
    ctx := context.Background()
    bank, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
    equity, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "3000", Name: "Net Assets", Type: ledger.AccountTypeEquity})
    require.NoError(t, err)
    require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return balance.Apply(ctx, tx, org, bank.ID, equity.ID, money.MustNewAmount("USD", 5000, 2))
    }))

    updated, err := svc.Update(ctx, org, bank.ID, Updates{Name: ptr("Operating Bank"), Code: ptr("1010")}, "bob")
    require.NoError(t, err)
    require.Equal(t, bank.ID, updated.ID)
    require.Equal(t, "1010", updated.Code)
    units, _ := updated.Balance.MinorUnits()
    require.Equal(t, int64(5000), units)

    // the carried balance keeps receiving postings on the new version
    require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return balance.Apply(ctx, tx, org, bank.ID, equity.ID, money.MustNewAmount("USD", 100, 2))
    }))
    got, err := svc.Get(ctx, org, bank.ID)
    require.NoError(t, err)
    units, _ = got.Balance.MinorUnits()
    require.Equal(t, int64(5100), units)

    hist, err := svc.History(ctx, org, bank.ID)
    require.NoError(t, err)
    require.Len(t, hist, 2)
    require.Equal(t, "Operating Bank", hist[0].Name)
    require.Equal(t, "Bank", hist[1].Name)

    _, err = svc.Update(ctx, org, equity.ID, Updates{Code: ptr("1010")}, "bob")
    require.ErrorIs(t, err, ErrCodeExists)
}

func TestParentCycle(t *testing.T) {
    svc, _, org := newSvc(t)
    ctx := context.Background()
    root, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "5000", Name: "Expenses", Type: ledger.AccountTypeExpense})
    require.NoError(t, err)
    child, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "5100", Name: "Programs", Type: ledger.AccountTypeExpense, ParentAccountID: &root.ID})
    require.NoError(t, err)

    _, err = svc.Update(ctx, org, root.ID, Updates{ParentAccountID: &child.ID}, "bob")
    require.ErrorIs(t, err, errs.ErrInvalid)
    _, err = svc.Update(ctx, org, root.ID, Updates{ParentAccountID: &root.ID}, "bob")
    require.ErrorIs(t, err, errs.ErrInvalid)

    // a parent cannot be deleted while it has children
    require.ErrorIs(t, svc.Delete(ctx, org, root.ID, "bob"), errs.ErrInvalid)
    _, err = svc.Update(ctx, org, child.ID, Updates{ClearParent: true}, "bob")
    require.NoError(t, err)
    require.NoError(t, svc.Delete(ctx, org, root.ID, "bob"))
}

func TestDelete(t *testing.T) {
    svc, st, org := newSvc(t)
    ctx := context.Background()
    a, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
    b, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "4000", Name: "Donations", Type: ledger.AccountTypeRevenue})
    require.NoError(t, err)
    require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return balance.Apply(ctx, tx, org, a.ID, b.ID, money.MustNewAmount("USD", 1, 2))
    }))
    require.ErrorIs(t, svc.Delete(ctx, org, a.ID, "bob"), errs.ErrInvalid)

    c, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1100", Name: "Petty cash", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
    require.NoError(t, svc.Delete(ctx, org, c.ID, "bob"))
    _, err = svc.Get(ctx, org, c.ID)
    require.ErrorIs(t, err, errs.ErrNotFound)

    hist, err := svc.History(ctx, org, c.ID)
    require.NoError(t, err)
    require.Len(t, hist, 2)
    require.True(t, hist[0].IsDeleted)
    require.Equal(t, "bob", hist[0].DeletedBy)

    // the code is free again once the holder is deleted
    _, err = svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1100", Name: "Cash box", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
}

func TestDeleteRefusedWhileTransactionsPost(t *testing.T) {
    svc, st, org := newSvc(t)
    ctx := context.Background()
    mk := func(code string, typ ledger.AccountType) ledger.Account {
        a, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: code, Name: code, Type: typ})
        require.NoError(t, err)
        return a
    }
    bank := mk("1000", ledger.AccountTypeAsset)
    loan := mk("2000", ledger.AccountTypeLiability)
    rent := mk("5000", ledger.AccountTypeExpense)

    txns := transaction.New(st)
    post := func(debit, credit uuid.UUID) ledger.Transaction {
        txn, err := txns.Create(ctx, transaction.CreateInput{
            OrganizationID:  org,
            TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
            Amount:          money.MustNewAmount("USD", 10000, 2),
            Type:            ledger.TransactionTypeTransfer,
            DebitAccountID:  debit,
            CreditAccountID: credit,
            Description:     "test",
            Actor:           "alice",
        })
        require.NoError(t, err)
        return txn
    }
    first := post(bank.ID, loan.ID)
    second := post(rent.ID, bank.ID)
    got, err := svc.Get(ctx, org, bank.ID)
    require.NoError(t, err)
    require.True(t, got.Balance.IsZero())

    err = svc.Delete(ctx, org, bank.ID, "bob")
    require.ErrorIs(t, err, ErrInUse)
    require.ErrorIs(t, err, errs.ErrConflict)
    _, err = svc.Get(ctx, org, bank.ID)
    require.NoError(t, err)

    // the referencing transactions stay voidable
    _, err = txns.Void(ctx, org, first.ID, transaction.VoidInput{Reason: "wrong account"}, "bob")
    require.NoError(t, err)
    _, err = txns.Void(ctx, org, second.ID, transaction.VoidInput{Reason: "wrong account"}, "bob")
    require.NoError(t, err)
    require.NoError(t, svc.Delete(ctx, org, bank.ID, "bob"))
}

func TestCreateBatch(t *testing.T) {
    svc, _, org := newSvc(t)
    ctx := context.Background()
    _, err := svc.Create(ctx, CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)

    created, itemErrs, err := svc.CreateBatch(ctx, org, []CreateInput{
        {Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
        {Code: "2000", Name: "Dup", Type: ledger.AccountTypeLiability},
        {Code: "", Name: "Nameless", Type: ledger.AccountTypeLiability},
    })
    require.NoError(t, err)
    require.Nil(t, created)
    require.Len(t, itemErrs, 3)

    created, itemErrs, err = svc.CreateBatch(ctx, org, []CreateInput{
        {Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
        {Code: "1000", Name: "Clash", Type: ledger.AccountTypeAsset},
    })
    require.NoError(t, err)
    require.Nil(t, created)
    require.Equal(t, []ItemError{{Index: 1, Code: "conflict", Err: ErrCodeExists}}, itemErrs)
    list, err := svc.List(ctx, org)
    require.NoError(t, err)
    require.Len(t, list, 1, "a rejected batch creates nothing")

    created, itemErrs, err = svc.CreateBatch(ctx, org, []CreateInput{
        {Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
        {Code: "4000", Name: "Donations", Type: ledger.AccountTypeRevenue},
    })
    require.NoError(t, err)
    require.Empty(t, itemErrs)
    require.Len(t, created, 2)
}
