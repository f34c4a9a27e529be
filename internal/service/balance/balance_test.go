package balance

import (
    "context"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/stretchr/testify/require"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/storage/memory"
    "github.com/tinoosan/fundledger/internal/temporal"
)

func usd(s string) money.Amount { return money.MustNewAmount("USD", mustUnits(s), 2) }

func mustUnits(s string) int64 {
    a, err := money.ParseAmount("USD", s)
    if err != nil { panic(err) }
    u, ok := a.MinorUnits()
    if !ok { panic("minor units") }
    return u
}

func seed(t *testing.T, st *memory.Store, org uuid.UUID, types ...ledger.AccountType) []ledger.Account {
    t.Helper()
    out := make([]ledger.Account, 0, len(types))
    err := st.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
        for i, typ := range types {
            a := ledger.Account{
                Version:        temporal.Open(time.Now()),
                OrganizationID: org,
                Code:           string(rune('1'+i)) + "000",
                Name:           string(typ),
                Type:           typ,
                Balance:        usd("0"),
            }
            if err := tx.InsertAccountVersion(ctx, a); err != nil { return err }
            out = append(out, a)
        }
        return nil
    })
    require.NoError(t, err)
    return out
}

// balanceOf returns the balance in cents.
func balanceOf(t *testing.T, st *memory.Store, org, id uuid.UUID) int64 {
    t.Helper()
    a, err := st.AccountByID(context.Background(), org, id)
    require.NoError(t, err)
    u, ok := a.Balance.MinorUnits()
    require.True(t, ok)
    return u
}

func TestSign(t *testing.T) {
    cases := []struct {
        typ   ledger.AccountType
        debit int
    }{
        {ledger.AccountTypeAsset, 1},
        {ledger.AccountTypeExpense, 1},
        {ledger.AccountTypeLiability, -1},
        {ledger.AccountTypeEquity, -1},
        {ledger.AccountTypeRevenue, -1},
    }
    for _, c := range cases {
        require.Equal(t, c.debit, Sign(c.typ, true), c.typ)
        require.Equal(t, -c.debit, Sign(c.typ, false), c.typ)
    }
}

func TestApplyAssetLiability(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    org := uuid.New()
    accs := seed(t, st, org, ledger.AccountTypeAsset, ledger.AccountTypeLiability)

    err := st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return Apply(ctx, tx, org, accs[0].ID, accs[1].ID, usd("100"))
    })
    require.NoError(t, err)
    require.Equal(t, int64(10000), balanceOf(t, st, org, accs[0].ID))
    require.Equal(t, int64(10000), balanceOf(t, st, org, accs[1].ID))
}

func TestReverseIsExactInverse(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    org := uuid.New()
    accs := seed(t, st, org, ledger.AccountTypeExpense, ledger.AccountTypeRevenue)

    amounts := []string{"0.01", "19.99", "1234567.89", "0.10", "33.33"}
    for _, a := range amounts {
        err := st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
            if err := Apply(ctx, tx, org, accs[0].ID, accs[1].ID, usd(a)); err != nil { return err }
            return Reverse(ctx, tx, org, accs[0].ID, accs[1].ID, usd(a))
        })
        require.NoError(t, err)
    }
    require.Equal(t, int64(0), balanceOf(t, st, org, accs[0].ID))
    require.Equal(t, int64(0), balanceOf(t, st, org, accs[1].ID))
}

func TestApplyValidation(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    org := uuid.New()
    accs := seed(t, st, org, ledger.AccountTypeAsset, ledger.AccountTypeEquity)

    err := st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return Apply(ctx, tx, org, accs[0].ID, accs[0].ID, usd("1"))
    })
    require.ErrorIs(t, err, errs.ErrInvalid)

    err = st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return Apply(ctx, tx, org, accs[0].ID, uuid.New(), usd("1"))
    })
    var ve *errs.ValidationError
    require.ErrorAs(t, err, &ve)
    require.Equal(t, "credit_account_id", ve.Field)

    // accounts of another organization are invisible
    err = st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return Apply(ctx, tx, uuid.New(), accs[0].ID, accs[1].ID, usd("1"))
    })
    require.ErrorIs(t, err, errs.ErrInvalid)

    // currency mismatch
    eur := money.MustNewAmount("EUR", 100, 2)
    err = st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        return Apply(ctx, tx, org, accs[0].ID, accs[1].ID, eur)
    })
    require.ErrorIs(t, err, errs.ErrInvalid)
    require.Equal(t, int64(0), balanceOf(t, st, org, accs[0].ID))
}

func TestTrialBalanceDetectsDrift(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    org := uuid.New()
    accs := seed(t, st, org, ledger.AccountTypeAsset, ledger.AccountTypeRevenue)

    txn := ledger.Transaction{
        Version:         temporal.Open(time.Now()),
        OrganizationID:  org,
        TransactionDate: time.Now(),
        Amount:          usd("40"),
        Type:            ledger.TransactionTypeIncome,
        DebitAccountID:  accs[0].ID,
        CreditAccountID: accs[1].ID,
    }
    require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        if err := tx.InsertTransactionVersion(ctx, txn); err != nil { return err }
        return Apply(ctx, tx, org, txn.DebitAccountID, txn.CreditAccountID, txn.Amount)
    }))

    lines, err := TrialBalance(ctx, st, org)
    require.NoError(t, err)
    require.Len(t, lines, 2)
    for _, l := range lines {
        require.False(t, l.Drifted(), l.Code)
        u, _ := l.Replayed.MinorUnits()
        require.Equal(t, int64(4000), u)
    }

    // a balance written outside the calculator shows up as drift
    require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
        a, err := tx.AccountByID(ctx, org, accs[0].ID)
        if err != nil { return err }
        return tx.SetAccountBalance(ctx, org, a.VersionID, usd("41"))
    }))
    lines, err = TrialBalance(ctx, st, org)
    require.NoError(t, err)
    require.True(t, lines[0].Drifted())
}
