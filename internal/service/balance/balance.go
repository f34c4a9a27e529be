// Package balance applies and reverses the effect of a transaction on the two
// account balances it touches. It is the single code path allowed to mutate
// Account.Balance.
package balance

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
)

// Store is the subset of a unit of work the calculator needs.
type Store interface {
    AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
    SetAccountBalance(ctx context.Context, orgID, versionID uuid.UUID, balance money.Amount) error
}

// Sign returns +1 when the account type increases on the given side and -1 otherwise.
func Sign(t ledger.AccountType, debitSide bool) int {
    if t.DebitNormal() == debitSide { return 1 }
    return -1
}

// Delta is the signed change an amount causes on an account of type t.
func Delta(t ledger.AccountType, debitSide bool, amount money.Amount) money.Amount {
    if Sign(t, debitSide) < 0 { return amount.Neg() }
    return amount
}

// Apply records amount debited to debitID and credited to creditID.
func Apply(ctx context.Context, st Store, orgID, debitID, creditID uuid.UUID, amount money.Amount) error {
    return post(ctx, st, orgID, debitID, creditID, amount, false)
}

// Reverse undoes Apply for the same arguments. It must be given the
// original accounts and amount, not the ones a pending edit introduces.
func Reverse(ctx context.Context, st Store, orgID, debitID, creditID uuid.UUID, amount money.Amount) error {
    return post(ctx, st, orgID, debitID, creditID, amount, true)
}

func post(ctx context.Context, st Store, orgID, debitID, creditID uuid.UUID, amount money.Amount, reverse bool) error {
    if debitID == creditID { return errs.Invalid("credit_account_id", "must differ from debit_account_id") }
    accs, err := st.AccountsByIDs(ctx, orgID, []uuid.UUID{debitID, creditID})
    if err != nil { return err }
    debit, ok := accs[debitID]
    if !ok { return errs.Invalid("debit_account_id", "account not found") }
    credit, ok := accs[creditID]
    if !ok { return errs.Invalid("credit_account_id", "account not found") }

    if err := adjust(ctx, st, orgID, debit, Delta(debit.Type, true, amount), reverse); err != nil { return err }
    return adjust(ctx, st, orgID, credit, Delta(credit.Type, false, amount), reverse)
}

func adjust(ctx context.Context, st Store, orgID uuid.UUID, acc ledger.Account, delta money.Amount, reverse bool) error {
    if reverse { delta = delta.Neg() }
    next, err := acc.Balance.Add(delta)
    if err != nil {
        return errs.Invalid("amount", "cannot apply to account %s: %v", acc.Code, err)
    }
    if err := st.SetAccountBalance(ctx, orgID, acc.VersionID, next); err != nil {
        return fmt.Errorf("balance: set %s: %w", acc.Code, err)
    }
    return nil
}
