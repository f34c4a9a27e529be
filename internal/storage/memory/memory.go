// Package memory provides an in-memory implementation of the storage contract
// used for development and tests. Units of work run against a private copy of
// the state which replaces the shared state only when the work succeeds.
package memory

import (
    "context"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/storage"
)

type state struct {
    accounts     *table[ledger.Account, *ledger.Account]
    transactions *table[ledger.Transaction, *ledger.Transaction]
    contacts     *table[ledger.Contact, *ledger.Contact]
    bills        map[uuid.UUID]ledger.Bill
    payments     []ledger.BillPayment
    // Idempotency: orgID -> key -> transaction ID
    idem map[uuid.UUID]map[string]uuid.UUID
}

func newState() *state {
    return &state{
        accounts:     newTable[ledger.Account, *ledger.Account](func(a ledger.Account) uuid.UUID { return a.OrganizationID }),
        transactions: newTable[ledger.Transaction, *ledger.Transaction](func(t ledger.Transaction) uuid.UUID { return t.OrganizationID }),
        contacts:     newTable[ledger.Contact, *ledger.Contact](func(c ledger.Contact) uuid.UUID { return c.OrganizationID }),
        bills:        map[uuid.UUID]ledger.Bill{},
        idem:         map[uuid.UUID]map[string]uuid.UUID{},
    }
}

func (st *state) clone() *state {
    c := &state{
        accounts:     st.accounts.clone(),
        transactions: st.transactions.clone(),
        contacts:     st.contacts.clone(),
        bills:        make(map[uuid.UUID]ledger.Bill, len(st.bills)),
        payments:     append([]ledger.BillPayment(nil), st.payments...),
        idem:         make(map[uuid.UUID]map[string]uuid.UUID, len(st.idem)),
    }
    for k, v := range st.bills { c.bills[k] = v }
    for org, m := range st.idem {
        cm := make(map[string]uuid.UUID, len(m))
        for k, v := range m { cm[k] = v }
        c.idem[org] = cm
    }
    return c
}

// Store is an in-memory implementation of storage.Store.
// It is guarded by an RWMutex; a unit of work holds the write lock throughout,
// so concurrent writers are serialized.
type Store struct {
    mu sync.RWMutex
    st *state
}

// New constructs an empty in-memory store.
func New() *Store { return &Store{st: newState()} }

// Reset drops all data.
func (s *Store) Reset() { s.mu.Lock(); s.st = newState(); s.mu.Unlock() }

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    work := s.st.clone()
    if err := fn(ctx, work); err != nil { return err }
    if err := ctx.Err(); err != nil { return err }
    s.st = work
    return nil
}

func (s *Store) read() (*state, func()) {
    s.mu.RLock()
    return s.st, s.mu.RUnlock
}

// --- Store reads (committed state) ---

func (s *Store) AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    st, done := s.read(); defer done()
    return st.AccountsByIDs(ctx, orgID, ids)
}

func (s *Store) AccountByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Account, error) {
    st, done := s.read(); defer done()
    return st.AccountByID(ctx, orgID, id)
}

func (s *Store) AccountByCode(ctx context.Context, orgID uuid.UUID, code string) (ledger.Account, error) {
    st, done := s.read(); defer done()
    return st.AccountByCode(ctx, orgID, code)
}

func (s *Store) ListAccounts(ctx context.Context, orgID uuid.UUID) ([]ledger.Account, error) {
    st, done := s.read(); defer done()
    return st.ListAccounts(ctx, orgID)
}

func (s *Store) AccountVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Account, error) {
    st, done := s.read(); defer done()
    return st.AccountVersions(ctx, orgID, id)
}

func (s *Store) TransactionByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Transaction, error) {
    st, done := s.read(); defer done()
    return st.TransactionByID(ctx, orgID, id)
}

func (s *Store) TransactionsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Transaction, error) {
    st, done := s.read(); defer done()
    return st.TransactionsByIDs(ctx, orgID, ids)
}

func (s *Store) TransactionVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error) {
    st, done := s.read(); defer done()
    return st.TransactionVersions(ctx, orgID, id)
}

func (s *Store) ListTransactions(ctx context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error) {
    st, done := s.read(); defer done()
    return st.ListTransactions(ctx, orgID, f)
}

func (s *Store) TransactionByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error) {
    st, done := s.read(); defer done()
    return st.TransactionByIdempotencyKey(ctx, orgID, key)
}

func (s *Store) ContactsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Contact, error) {
    st, done := s.read(); defer done()
    return st.ContactsByIDs(ctx, orgID, ids)
}

func (s *Store) ContactByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Contact, error) {
    st, done := s.read(); defer done()
    return st.ContactByID(ctx, orgID, id)
}

func (s *Store) ListContacts(ctx context.Context, orgID uuid.UUID) ([]ledger.Contact, error) {
    st, done := s.read(); defer done()
    return st.ListContacts(ctx, orgID)
}

func (s *Store) ContactVersions(ctx context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error) {
    st, done := s.read(); defer done()
    return st.ContactVersions(ctx, orgID, id)
}

func (s *Store) BillByID(ctx context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
    st, done := s.read(); defer done()
    return st.BillByID(ctx, orgID, id)
}

func (s *Store) ListBills(ctx context.Context, orgID uuid.UUID, f storage.BillFilter) ([]ledger.Bill, int, error) {
    st, done := s.read(); defer done()
    return st.ListBills(ctx, orgID, f)
}

func (s *Store) BillPayments(ctx context.Context, orgID, billID uuid.UUID) ([]ledger.BillPayment, error) {
    st, done := s.read(); defer done()
    return st.BillPayments(ctx, orgID, billID)
}

func (s *Store) BillsByPaymentTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    st, done := s.read(); defer done()
    return st.BillsByPaymentTransaction(ctx, orgID, transactionID)
}

func (s *Store) BillsByAccrualTransaction(ctx context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    st, done := s.read(); defer done()
    return st.BillsByAccrualTransaction(ctx, orgID, transactionID)
}

func (s *Store) OverdueBills(ctx context.Context, asOf time.Time) ([]ledger.Bill, error) {
    st, done := s.read(); defer done()
    return st.OverdueBills(ctx, asOf)
}

// --- state: reads ---

func (st *state) AccountsByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    return st.accounts.byIDs(orgID, ids), nil
}

func (st *state) AccountByID(_ context.Context, orgID, id uuid.UUID) (ledger.Account, error) {
    a, ok := st.accounts.get(orgID, id)
    if !ok { return ledger.Account{}, errs.ErrNotFound }
    return a, nil
}

func (st *state) AccountByCode(_ context.Context, orgID uuid.UUID, code string) (ledger.Account, error) {
    for _, a := range st.accounts.listCurrent(orgID) {
        if strings.EqualFold(a.Code, code) { return a, nil }
    }
    return ledger.Account{}, errs.ErrNotFound
}

func (st *state) ListAccounts(_ context.Context, orgID uuid.UUID) ([]ledger.Account, error) {
    out := st.accounts.listCurrent(orgID)
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out, nil
}

func (st *state) AccountVersions(_ context.Context, orgID, id uuid.UUID) ([]ledger.Account, error) {
    return st.accounts.lineage(orgID, id), nil
}

func (st *state) TransactionByID(_ context.Context, orgID, id uuid.UUID) (ledger.Transaction, error) {
    t, ok := st.transactions.get(orgID, id)
    if !ok { return ledger.Transaction{}, errs.ErrNotFound }
    return t, nil
}

func (st *state) TransactionsByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Transaction, error) {
    return st.transactions.byIDs(orgID, ids), nil
}

func (st *state) TransactionVersions(_ context.Context, orgID, id uuid.UUID) ([]ledger.Transaction, error) {
    return st.transactions.lineage(orgID, id), nil
}

func (st *state) ListTransactions(_ context.Context, orgID uuid.UUID, f storage.TransactionFilter) ([]ledger.Transaction, int, error) {
    all := st.transactions.listCurrent(orgID)
    out := make([]ledger.Transaction, 0, len(all))
    for _, t := range all {
        if !f.IncludeVoided && t.IsVoided { continue }
        if f.From != nil && t.TransactionDate.Before(*f.From) { continue }
        if f.To != nil && t.TransactionDate.After(*f.To) { continue }
        if f.Type != "" && t.Type != f.Type { continue }
        if f.AccountID != nil && t.DebitAccountID != *f.AccountID && t.CreditAccountID != *f.AccountID { continue }
        out = append(out, t)
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].TransactionDate.Equal(out[j].TransactionDate) { return out[i].TransactionDate.After(out[j].TransactionDate) }
        return out[i].SystemFrom.After(out[j].SystemFrom)
    })
    total := len(out)
    return page(out, f.Offset, f.Limit), total, nil
}

func (st *state) TransactionByIdempotencyKey(_ context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error) {
    if m, ok := st.idem[orgID]; ok {
        if id, ok2 := m[key]; ok2 {
            if t, ok3 := st.transactions.get(orgID, id); ok3 { return t, true, nil }
        }
    }
    return ledger.Transaction{}, false, nil
}

func (st *state) ContactsByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Contact, error) {
    return st.contacts.byIDs(orgID, ids), nil
}

func (st *state) ContactByID(_ context.Context, orgID, id uuid.UUID) (ledger.Contact, error) {
    c, ok := st.contacts.get(orgID, id)
    if !ok { return ledger.Contact{}, errs.ErrNotFound }
    return c, nil
}

func (st *state) ListContacts(_ context.Context, orgID uuid.UUID) ([]ledger.Contact, error) {
    out := st.contacts.listCurrent(orgID)
    sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
    return out, nil
}

func (st *state) ContactVersions(_ context.Context, orgID, id uuid.UUID) ([]ledger.Contact, error) {
    return st.contacts.lineage(orgID, id), nil
}

func (st *state) BillByID(_ context.Context, orgID, id uuid.UUID) (ledger.Bill, error) {
    b, ok := st.bills[id]
    if !ok || b.OrganizationID != orgID { return ledger.Bill{}, errs.ErrNotFound }
    return b, nil
}

func (st *state) ListBills(_ context.Context, orgID uuid.UUID, f storage.BillFilter) ([]ledger.Bill, int, error) {
    out := make([]ledger.Bill, 0)
    for _, b := range st.bills {
        if b.OrganizationID != orgID { continue }
        if f.Status != "" && b.Status != f.Status { continue }
        if f.Direction != "" && b.Direction != f.Direction { continue }
        if f.ContactID != nil && b.ContactID != *f.ContactID { continue }
        if f.DueBefore != nil && (b.DueDate == nil || !b.DueDate.Before(*f.DueBefore)) { continue }
        out = append(out, b)
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].IssueDate.Equal(out[j].IssueDate) { return out[i].IssueDate.After(out[j].IssueDate) }
        return out[i].CreatedAt.After(out[j].CreatedAt)
    })
    total := len(out)
    return page(out, f.Offset, f.Limit), total, nil
}

func (st *state) BillPayments(_ context.Context, orgID, billID uuid.UUID) ([]ledger.BillPayment, error) {
    out := make([]ledger.BillPayment, 0)
    for _, p := range st.payments {
        if p.OrganizationID == orgID && p.BillID == billID { out = append(out, p) }
    }
    return out, nil
}

func (st *state) BillsByPaymentTransaction(_ context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    out := make([]ledger.Bill, 0)
    seen := map[uuid.UUID]bool{}
    for _, p := range st.payments {
        if p.OrganizationID != orgID || p.TransactionID != transactionID || seen[p.BillID] { continue }
        if b, ok := st.bills[p.BillID]; ok {
            seen[p.BillID] = true
            out = append(out, b)
        }
    }
    return out, nil
}

func (st *state) BillsByAccrualTransaction(_ context.Context, orgID, transactionID uuid.UUID) ([]ledger.Bill, error) {
    out := make([]ledger.Bill, 0)
    for _, b := range st.bills {
        if b.OrganizationID == orgID && b.AccrualTransactionID != nil && *b.AccrualTransactionID == transactionID {
            out = append(out, b)
        }
    }
    return out, nil
}

func (st *state) OverdueBills(_ context.Context, asOf time.Time) ([]ledger.Bill, error) {
    out := make([]ledger.Bill, 0)
    for _, b := range st.bills {
        if b.Status != ledger.BillPending && b.Status != ledger.BillPartial { continue }
        if b.DueDate == nil || !b.DueDate.Before(asOf) { continue }
        out = append(out, b)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
    return out, nil
}

// --- state: writes (only reachable through WithTx) ---

func (st *state) InsertAccountVersion(_ context.Context, a ledger.Account) error {
    if a.IsCurrent() {
        for _, other := range st.accounts.listCurrent(a.OrganizationID) {
            if other.ID != a.ID && strings.EqualFold(other.Code, a.Code) { return errs.ErrConflict }
        }
    }
    return st.accounts.insert(a)
}

func (st *state) CloseAccountVersion(_ context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return st.accounts.close(orgID, versionID, at)
}

func (st *state) SetAccountBalance(_ context.Context, orgID, versionID uuid.UUID, balance money.Amount) error {
    return st.accounts.update(orgID, versionID, func(a *ledger.Account) { a.Balance = balance })
}

func (st *state) InsertTransactionVersion(_ context.Context, t ledger.Transaction) error {
    return st.transactions.insert(t)
}

func (st *state) CloseTransactionVersion(_ context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return st.transactions.close(orgID, versionID, at)
}

func (st *state) SaveIdempotencyKey(_ context.Context, orgID uuid.UUID, key string, transactionID uuid.UUID) error {
    m, ok := st.idem[orgID]
    if !ok { m = make(map[string]uuid.UUID); st.idem[orgID] = m }
    if _, exists := m[key]; !exists { m[key] = transactionID }
    return nil
}

func (st *state) InsertContactVersion(_ context.Context, c ledger.Contact) error {
    return st.contacts.insert(c)
}

func (st *state) CloseContactVersion(_ context.Context, orgID, versionID uuid.UUID, at time.Time) error {
    return st.contacts.close(orgID, versionID, at)
}

func (st *state) InsertBill(_ context.Context, b ledger.Bill) error {
    if _, ok := st.bills[b.ID]; ok { return errs.ErrConflict }
    st.bills[b.ID] = b
    return nil
}

func (st *state) UpdateBill(_ context.Context, b ledger.Bill) error {
    cur, ok := st.bills[b.ID]
    if !ok || cur.OrganizationID != b.OrganizationID { return errs.ErrNotFound }
    st.bills[b.ID] = b
    return nil
}

func (st *state) InsertBillPayment(_ context.Context, p ledger.BillPayment) error {
    for _, existing := range st.payments {
        if existing.BillID == p.BillID && existing.TransactionID == p.TransactionID { return errs.ErrConflict }
    }
    st.payments = append(st.payments, p)
    return nil
}

func page[T any](rows []T, offset, limit int) []T {
    if offset < 0 { offset = 0 }
    if offset > len(rows) { return []T{} }
    rows = rows[offset:]
    if limit > 0 && limit < len(rows) { rows = rows[:limit] }
    return rows
}
