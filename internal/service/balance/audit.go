package balance

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
)

// Reader is what an audit needs to replay the ledger.
type Reader interface {
    ListAccounts(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error)
    ListTransactions(ctx context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error)
}

// Line is one account of a trial balance.
type Line struct {
    AccountID uuid.UUID
    Code      string
    Type      ledger.AccountType
    // Stored is the materialized balance on the account.
    Stored money.Amount
    // Replayed is the balance obtained by applying every current, non-voided transaction.
    Replayed money.Amount
}

// Drifted reports whether the stored balance disagrees with the replay.
func (l Line) Drifted() bool {
    c, err := l.Stored.Cmp(l.Replayed)
    return err != nil || c != 0
}

// TrialBalance replays every current non-voided transaction of the
// organization from zero and pairs the result with the stored balances.
// It reads committed state and never writes.
func TrialBalance(ctx context.Context, r Reader, orgID uuid.UUID) ([]Line, error) {
    accounts, err := r.ListAccounts(ctx, orgID)
    if err != nil { return nil, err }
    txns, _, err := r.ListTransactions(ctx, orgID, storage.TransactionFilter{})
    if err != nil { return nil, err }

    idx := make(map[uuid.UUID]int, len(accounts))
    lines := make([]Line, len(accounts))
    for i, a := range accounts {
        zero, err := money.NewAmountFromMinorUnits(a.Balance.Curr().Code(), 0)
        if err != nil { return nil, err }
        lines[i] = Line{AccountID: a.ID, Code: a.Code, Type: a.Type, Stored: a.Balance, Replayed: zero}
        idx[a.ID] = i
    }
    add := func(id uuid.UUID, debitSide bool, amount money.Amount) error {
        i, ok := idx[id]
        if !ok { return nil }
        next, err := lines[i].Replayed.Add(Delta(lines[i].Type, debitSide, amount))
        if err != nil { return fmt.Errorf("balance: replay %s: %w", lines[i].Code, err) }
        lines[i].Replayed = next
        return nil
    }
    for _, t := range txns {
        if t.IsVoided { continue }
        if err := add(t.DebitAccountID, true, t.Amount); err != nil { return nil, err }
        if err := add(t.CreditAccountID, false, t.Amount); err != nil { return nil, err }
    }
    return lines, nil
}
