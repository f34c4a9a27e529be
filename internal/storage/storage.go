// Package storage defines the persistence contract shared by the memory and
// postgres backends. Reads outside a unit of work see committed state only;
// every mutation happens inside WithTx so a failure rolls back all of it.
package storage

import (
    "context"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/ledger"
)

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
    From          *time.Time
    To            *time.Time
    AccountID     *uuid.UUID
    Type          ledger.TransactionType
    IncludeVoided bool
    Limit         int
    Offset        int
}

// BillFilter narrows ListBills. Zero values mean no filter.
type BillFilter struct {
    Status    ledger.BillStatus
    Direction ledger.BillDirection
    ContactID *uuid.UUID
    DueBefore *time.Time
    Limit     int
    Offset    int
}

// AccountReader resolves current account versions and account history.
type AccountReader interface {
    AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
    AccountByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Account, error)
    AccountByCode(ctx context.Context, orgID uuid.UUID, code string) (ledger.Account, error)
    ListAccounts(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error)
    AccountVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Account, error)
}

// AccountWriter appends and closes account versions. SetAccountBalance is the
// only in-place mutation and targets the current version row.
type AccountWriter interface {
    InsertAccountVersion(ctx context.Context, a ledger.Account) error
    CloseAccountVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error
    SetAccountBalance(ctx context.Context, orgID, versionID uuid.UUID, balance money.Amount) error
}

// TransactionReader resolves current transaction versions and lineages.
type TransactionReader interface {
    TransactionByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Transaction, error)
    TransactionsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Transaction, error)
    TransactionVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error)
    ListTransactions(ctx context.Context, orgID uuid.UUID, f TransactionFilter) ([]ledger.Transaction, int, error)
    TransactionByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error)
}

// TransactionWriter appends and closes transaction versions.
type TransactionWriter interface {
    InsertTransactionVersion(ctx context.Context, t ledger.Transaction) error
    CloseTransactionVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error
    SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, transactionID uuid.UUID) error
}

// ContactReader resolves current contact versions.
type ContactReader interface {
    ContactsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Contact, error)
    ContactByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Contact, error)
    ListContacts(ctx context.Context, orgID uuid.UUID) ([]ledger.Contact, error)
    ContactVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error)
}

// ContactWriter appends and closes contact versions.
type ContactWriter interface {
    InsertContactVersion(ctx context.Context, c ledger.Contact) error
    CloseContactVersion(ctx context.Context, orgID, versionID uuid.UUID, at time.Time) error
}

// BillReader reads bills and their payment links.
type BillReader interface {
    BillByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error)
    ListBills(ctx context.Context, orgID uuid.UUID, f BillFilter) ([]ledger.Bill, int, error)
    BillPayments(ctx context.Context, orgID, billID uuid.UUID) ([]ledger.BillPayment, error)
    BillsByPaymentTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error)
    BillsByAccrualTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error)
    OverdueBills(ctx context.Context, asOf time.Time) ([]ledger.Bill, error)
}

// BillWriter persists bills and payment links.
type BillWriter interface {
    InsertBill(ctx context.Context, b ledger.Bill) error
    UpdateBill(ctx context.Context, b ledger.Bill) error
    InsertBillPayment(ctx context.Context, p ledger.BillPayment) error
}

// Reader is the union of read operations.
type Reader interface {
    AccountReader
    TransactionReader
    ContactReader
    BillReader
}

// Tx is the view handed to a unit of work. Reads through Tx observe the
// unit's own writes and, on postgres, lock the rows they return.
type Tx interface {
    Reader
    AccountWriter
    TransactionWriter
    ContactWriter
    BillWriter
}

// Store is implemented by every backend.
type Store interface {
    Reader
    // WithTx runs fn atomically: all writes commit if fn returns nil, none otherwise.
    WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
    Ready(ctx context.Context) error
}
