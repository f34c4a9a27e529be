package ledger

import (
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/temporal"
)

// AccountType enumerates the broad classification of an account in the ledger.
type AccountType string

const (
    // AccountTypeAsset increases on the debit side and holds resources owned by the organization.
    AccountTypeAsset AccountType = "ASSET"
    // AccountTypeLiability increases on the credit side and tracks obligations.
    AccountTypeLiability AccountType = "LIABILITY"
    // AccountTypeEquity captures net assets.
    AccountTypeEquity AccountType = "EQUITY"
    // AccountTypeRevenue represents inflows such as donations and grants.
    AccountTypeRevenue AccountType = "REVENUE"
    // AccountTypeExpense represents outflows.
    AccountTypeExpense AccountType = "EXPENSE"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
    switch t {
    case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
        return true
    }
    return false
}

// DebitNormal reports whether the type's balance increases on the debit side.
func (t AccountType) DebitNormal() bool {
    return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account is a versioned ledger account belonging to an organization.
// Balance is a materialized aggregate maintained only by the balance calculator.
type Account struct {
    temporal.Version
    OrganizationID  uuid.UUID
    Code            string
    Name            string
    Type            AccountType
    Balance         money.Amount
    ParentAccountID *uuid.UUID
    ChangedBy       string
}

// TransactionType classifies a transaction.
type TransactionType string

const (
    TransactionTypeIncome   TransactionType = "INCOME"
    TransactionTypeExpense  TransactionType = "EXPENSE"
    TransactionTypeTransfer TransactionType = "TRANSFER"
    TransactionTypeClosing  TransactionType = "CLOSING"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
    switch t {
    case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer, TransactionTypeClosing:
        return true
    }
    return false
}

// Transaction is one version of a double-entry transaction moving Amount from
// CreditAccountID to DebitAccountID.
type Transaction struct {
    temporal.Version
    OrganizationID  uuid.UUID
    TransactionDate time.Time
    Amount          money.Amount
    Type            TransactionType
    DebitAccountID  uuid.UUID
    CreditAccountID uuid.UUID
    Description     string
    ContactID       *uuid.UUID
    ReferenceNumber string
    Reconciled      bool
    ReconciledAt    *time.Time
    IsVoided        bool
    VoidedAt        *time.Time
    VoidedBy        string
    VoidReason      string
    ChangeReason    string
    ChangedBy       string
    CreatedBy       string
}

// Contact is a versioned donor, vendor or grantor.
type Contact struct {
    temporal.Version
    OrganizationID uuid.UUID
    Name           string
    Email          string
    Phone          string
    ChangedBy      string
}

// BillDirection distinguishes money owed by the organization from money owed to it.
type BillDirection string

const (
    BillPayable    BillDirection = "PAYABLE"
    BillReceivable BillDirection = "RECEIVABLE"
)

// Valid reports whether d is a known direction.
func (d BillDirection) Valid() bool { return d == BillPayable || d == BillReceivable }

// BillStatus is the lifecycle state of a bill or pledge.
type BillStatus string

const (
    BillDraft     BillStatus = "DRAFT"
    BillPending   BillStatus = "PENDING"
    BillPartial   BillStatus = "PARTIAL"
    BillPaid      BillStatus = "PAID"
    BillOverdue   BillStatus = "OVERDUE"
    BillCancelled BillStatus = "CANCELLED"
)

var billTransitions = map[BillStatus][]BillStatus{
    BillDraft:     {BillPending, BillCancelled},
    BillPending:   {BillPartial, BillPaid, BillOverdue, BillCancelled},
    BillPartial:   {BillPaid, BillOverdue, BillCancelled},
    BillOverdue:   {BillPartial, BillPaid, BillCancelled},
    BillPaid:      {},
    BillCancelled: {},
}

// Valid reports whether s is a known status.
func (s BillStatus) Valid() bool { _, ok := billTransitions[s]; return ok }

// CanTransition reports whether a bill may move from s to next.
func (s BillStatus) CanTransition(next BillStatus) bool {
    for _, allowed := range billTransitions[s] {
        if allowed == next { return true }
    }
    return false
}

// Terminal reports whether no transition leaves s.
func (s BillStatus) Terminal() bool { return s.Valid() && len(billTransitions[s]) == 0 }

// Bill is a payable bill or a receivable pledge. Bills are not versioned; they
// own their BillPayment rows and reference transactions by logical ID.
type Bill struct {
    ID                   uuid.UUID
    OrganizationID       uuid.UUID
    ContactID            uuid.UUID
    Direction            BillDirection
    Status               BillStatus
    BillNumber           string
    Description          string
    Amount               money.Amount
    AmountPaid           money.Amount
    IssueDate            time.Time
    DueDate              *time.Time
    PaidInFullDate       *time.Time
    AccrualTransactionID *uuid.UUID
    AccrualAccountID     uuid.UUID
    ControlAccountID     uuid.UUID
    AttachmentURL        string
    CreatedBy            string
    CreatedAt            time.Time
    UpdatedAt            time.Time
}

// BillPayment links a bill to one payment transaction.
type BillPayment struct {
    ID             uuid.UUID
    OrganizationID uuid.UUID
    BillID         uuid.UUID
    TransactionID  uuid.UUID
    CreatedAt      time.Time
}
