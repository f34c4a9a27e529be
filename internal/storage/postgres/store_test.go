package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fundledger/internal/errs"
	"github.com/tinoosan/fundledger/internal/ledger"
	"github.com/tinoosan/fundledger/internal/service/account"
	"github.com/tinoosan/fundledger/internal/service/transaction"
	"github.com/tinoosan/fundledger/internal/storage"
	"github.com/tinoosan/fundledger/internal/temporal"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

// openClean applies the schema, truncates every table and returns an open store.
func openClean(t *testing.T) *Store {
	t.Helper()
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	b, err := os.ReadFile(filepath.Join(repoRoot, "db", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, string(b))
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, `truncate table bill_payments, bills, transaction_idempotency, transactions, contacts, accounts`)
	require.NoError(t, err)
	return s
}

func usd(units int64) money.Amount { return money.MustNewAmount("USD", units, 0) }

func TestStore_VersionLifecycle(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	org := uuid.New()
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	c := ledger.Contact{Version: temporal.Open(at), OrganizationID: org, Name: "Food Bank", Email: "hi@example.org"}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error { return tx.InsertContactVersion(ctx, c) }))

	got, err := s.ContactByID(ctx, org, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Food Bank", got.Name)
	require.True(t, got.ValidTo.Equal(temporal.MaxDate))

	_, err = s.ContactByID(ctx, uuid.New(), c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	next := temporal.BuildNext(c, at.Add(time.Minute), func(n *ledger.Contact) { n.Name = "City Food Bank" })
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CloseContactVersion(ctx, org, c.VersionID, at.Add(time.Minute)); err != nil {
			return err
		}
		return tx.InsertContactVersion(ctx, next)
	}))

	// closing the same version again affects no rows
	err = s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.CloseContactVersion(ctx, org, c.VersionID, at.Add(2*time.Minute))
	})
	require.ErrorIs(t, err, errs.ErrConcurrentModification)

	// a second open version for the lineage is rejected by the one-open index
	stray := temporal.BuildNext(c, at.Add(3*time.Minute), nil)
	err = s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error { return tx.InsertContactVersion(ctx, stray) })
	require.ErrorIs(t, err, errs.ErrConcurrentModification)

	versions, err := s.ContactVersions(ctx, org, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	chain := temporal.Chain(versions)
	require.Equal(t, "City Food Bank", chain[0].Name)
	require.Equal(t, c.VersionID, *chain[0].PreviousVersionID)
}

func TestStore_RollbackOnError(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	org := uuid.New()
	a := ledger.Account{Version: temporal.Open(time.Now()), OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset, Balance: usd(0)}

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertAccountVersion(ctx, a); err != nil {
			return err
		}
		_, err := tx.AccountByID(ctx, org, a.ID)
		require.NoError(t, err)
		return errs.Invalid("code", "forced failure")
	})
	require.ErrorIs(t, err, errs.ErrInvalid)
	_, err = s.AccountByID(ctx, org, a.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_AccountCodeUnique(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	accounts := account.New(s, "USD")
	org := uuid.New()

	_, err := accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)
	_, err = accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "1000", Name: "Other", Type: ledger.AccountTypeAsset})
	require.ErrorIs(t, err, errs.ErrConflict)
	// codes are per organization
	_, err = accounts.Create(ctx, account.CreateInput{OrganizationID: uuid.New(), Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)

	byCode, err := s.AccountByCode(ctx, org, "1000")
	require.NoError(t, err)
	require.Equal(t, "Bank", byCode.Name)
}

func TestStore_TransactionLifecycle(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	org := uuid.New()
	accounts := account.New(s, "USD")
	bank, err := accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)
	donations, err := accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "4000", Name: "Donations", Type: ledger.AccountTypeRevenue})
	require.NoError(t, err)

	txns := transaction.New(s)
	created, err := txns.Create(ctx, transaction.CreateInput{
		OrganizationID:  org,
		TransactionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:          usd(100),
		Type:            ledger.TransactionTypeIncome,
		DebitAccountID:  bank.ID,
		CreditAccountID: donations.ID,
		Description:     "Gift",
	})
	require.NoError(t, err)

	balance := func(id uuid.UUID) int64 {
		a, err := s.AccountByID(ctx, org, id)
		require.NoError(t, err)
		m, _ := a.Balance.MinorUnits()
		return m
	}
	require.Equal(t, int64(10000), balance(bank.ID))
	require.Equal(t, int64(10000), balance(donations.ID))

	amt := usd(150)
	edited, err := txns.Edit(ctx, org, created.ID, transaction.Updates{Amount: &amt}, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(15000), balance(bank.ID))

	_, err = txns.Void(ctx, org, created.ID, transaction.VoidInput{Reason: "duplicate"}, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance(bank.ID))

	_, err = txns.Edit(ctx, org, created.ID, transaction.Updates{Amount: &amt}, "alice")
	require.ErrorIs(t, err, errs.ErrAlreadyVoided)

	history, err := txns.History(ctx, org, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, edited.VersionID, *history[0].PreviousVersionID)

	list, total, err := s.ListTransactions(ctx, org, storage.TransactionFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
	list, total, err = s.ListTransactions(ctx, org, storage.TransactionFilter{IncludeVoided: true, AccountID: &bank.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.True(t, list[0].IsVoided)
}

func TestStore_ConcurrentEditAndVoid(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	org := uuid.New()
	accounts := account.New(s, "USD")
	bank, err := accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)
	rent, err := accounts.Create(ctx, account.CreateInput{OrganizationID: org, Code: "5000", Name: "Rent", Type: ledger.AccountTypeExpense})
	require.NoError(t, err)
	txns := transaction.New(s)
	created, err := txns.Create(ctx, transaction.CreateInput{
		OrganizationID: org, TransactionDate: time.Now().UTC(), Amount: usd(40), Type: ledger.TransactionTypeExpense,
		DebitAccountID: rent.ID, CreditAccountID: bank.ID, Description: "Rent",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		amt := usd(60)
		_, results[0] = txns.Edit(ctx, org, created.ID, transaction.Updates{Amount: &amt}, "a")
	}()
	go func() {
		defer wg.Done()
		_, results[1] = txns.Void(ctx, org, created.ID, transaction.VoidInput{Reason: "wrong"}, "b")
	}()
	wg.Wait()

	// at least one wins; a loser fails retryably
	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errs.IsRetryable(err) || errors.Is(err, errs.ErrAlreadyVoided), "unexpected error: %v", err)
	}
	require.GreaterOrEqual(t, wins, 1)

	versions, err := s.TransactionVersions(ctx, org, created.ID)
	require.NoError(t, err)
	open := 0
	for _, v := range versions {
		if v.IsOpen() {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestStore_BillsAndIdempotency(t *testing.T) {
	s := openClean(t)
	ctx := context.Background()
	org := uuid.New()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 10)
	b := ledger.Bill{
		ID: uuid.New(), OrganizationID: org, ContactID: uuid.New(), Direction: ledger.BillPayable, Status: ledger.BillPending,
		BillNumber: "BILL-1", Amount: usd(500), AmountPaid: usd(0), IssueDate: now, DueDate: &due,
		AccrualAccountID: uuid.New(), ControlAccountID: uuid.New(), CreatedAt: now, UpdatedAt: now,
	}
	txnID := uuid.New()
	accrualID := uuid.New()
	b.AccrualTransactionID = &accrualID
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertBill(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertBillPayment(ctx, ledger.BillPayment{ID: uuid.New(), OrganizationID: org, BillID: b.ID, TransactionID: txnID, CreatedAt: now}); err != nil {
			return err
		}
		return tx.SaveIdempotencyKey(ctx, org, "k1", txnID)
	}))

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertBillPayment(ctx, ledger.BillPayment{ID: uuid.New(), OrganizationID: org, BillID: b.ID, TransactionID: txnID, CreatedAt: now})
	})
	require.ErrorIs(t, err, errs.ErrConflict)

	linked, err := s.BillsByPaymentTransaction(ctx, org, txnID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, b.ID, linked[0].ID)
	accruing, err := s.BillsByAccrualTransaction(ctx, org, accrualID)
	require.NoError(t, err)
	require.Len(t, accruing, 1)
	none, err := s.BillsByAccrualTransaction(ctx, org, txnID)
	require.NoError(t, err)
	require.Empty(t, none)

	overdue, err := s.OverdueBills(ctx, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	b.Status = ledger.BillOverdue
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error { return tx.UpdateBill(ctx, b) }))
	bills, total, err := s.ListBills(ctx, org, storage.BillFilter{Status: ledger.BillOverdue})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, ledger.BillOverdue, bills[0].Status)
	m, _ := bills[0].Amount.MinorUnits()
	require.Equal(t, int64(50000), m)

	// the key points at a transaction that was never written
	_, ok, err := s.TransactionByIdempotencyKey(ctx, org, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}
