package v1

import (
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/tinoosan/fundledger/internal/ledger"
    "github.com/tinoosan/fundledger/internal/service/balance"
    "github.com/tinoosan/fundledger/internal/service/bill"
    "github.com/tinoosan/fundledger/internal/statement"
    "github.com/tinoosan/fundledger/internal/temporal"
)

// Accounts

type postAccountRequest struct {
    Code string `json:"code" validate:"required,max=20"`
    Name string `json:"name" validate:"required,max=200"`
    // Type may be omitted when the code falls in a range of the default chart.
    Type            ledger.AccountType `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
    ParentAccountID *uuid.UUID         `json:"parent_account_id,omitempty"`
}

type postAccountsBatchRequest struct {
    Accounts []postAccountRequest `json:"accounts" validate:"required,min=1,max=100,dive"`
}

type updateAccountRequest struct {
    Code            *string    `json:"code,omitempty" validate:"omitempty,min=1,max=20"`
    Name            *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
    ParentAccountID *uuid.UUID `json:"parent_account_id,omitempty"`
    ClearParent     bool       `json:"clear_parent,omitempty"`
}

type accountResponse struct {
    temporal.Version
    OrganizationID  uuid.UUID          `json:"organization_id"`
    Code            string             `json:"code"`
    Name            string             `json:"name"`
    Type            ledger.AccountType `json:"type"`
    Currency        string             `json:"currency"`
    BalanceMinor    int64              `json:"balance_minor"`
    Balance         string             `json:"balance"`
    ParentAccountID *uuid.UUID         `json:"parent_account_id,omitempty"`
    ChangedBy       string             `json:"changed_by,omitempty"`
}

func toAccountResponse(a ledger.Account) accountResponse {
    return accountResponse{
        Version:         a.Version,
        OrganizationID:  a.OrganizationID,
        Code:            a.Code,
        Name:            a.Name,
        Type:            a.Type,
        Currency:        a.Balance.Curr().Code(),
        BalanceMinor:    minor(a.Balance),
        Balance:         a.Balance.Decimal().String(),
        ParentAccountID: a.ParentAccountID,
        ChangedBy:       a.ChangedBy,
    }
}

// Contacts

type postContactRequest struct {
    Name  string `json:"name" validate:"required,max=200"`
    Email string `json:"email,omitempty" validate:"omitempty,email"`
    Phone string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

type updateContactRequest struct {
    Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
    Email *string `json:"email,omitempty" validate:"omitempty,max=254"`
    Phone *string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

type contactResponse struct {
    temporal.Version
    OrganizationID uuid.UUID `json:"organization_id"`
    Name           string    `json:"name"`
    Email          string    `json:"email,omitempty"`
    Phone          string    `json:"phone,omitempty"`
    ChangedBy      string    `json:"changed_by,omitempty"`
}

func toContactResponse(c ledger.Contact) contactResponse {
    return contactResponse{
        Version:        c.Version,
        OrganizationID: c.OrganizationID,
        Name:           c.Name,
        Email:          c.Email,
        Phone:          c.Phone,
        ChangedBy:      c.ChangedBy,
    }
}

// Transactions

type postTransactionRequest struct {
    TransactionDate time.Time              `json:"transaction_date" validate:"required"`
    AmountMinor     int64                  `json:"amount_minor" validate:"gt=0"`
    Type            ledger.TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE TRANSFER CLOSING"`
    DebitAccountID  uuid.UUID              `json:"debit_account_id" validate:"required"`
    CreditAccountID uuid.UUID              `json:"credit_account_id" validate:"required"`
    Description     string                 `json:"description,omitempty" validate:"max=500"`
    ContactID       *uuid.UUID             `json:"contact_id,omitempty"`
    ReferenceNumber string                 `json:"reference_number,omitempty" validate:"max=100"`
}

type editTransactionRequest struct {
    TransactionDate *time.Time              `json:"transaction_date,omitempty"`
    AmountMinor     *int64                  `json:"amount_minor,omitempty" validate:"omitempty,gt=0"`
    Type            *ledger.TransactionType `json:"type,omitempty" validate:"omitempty,oneof=INCOME EXPENSE TRANSFER CLOSING"`
    DebitAccountID  *uuid.UUID              `json:"debit_account_id,omitempty"`
    CreditAccountID *uuid.UUID              `json:"credit_account_id,omitempty"`
    Description     *string                 `json:"description,omitempty" validate:"omitempty,max=500"`
    ContactID       *uuid.UUID              `json:"contact_id,omitempty"`
    ClearContact    bool                    `json:"clear_contact,omitempty"`
    ReferenceNumber *string                 `json:"reference_number,omitempty" validate:"omitempty,max=100"`
    ChangeReason    string                  `json:"change_reason,omitempty" validate:"max=500"`
}

type voidRequest struct {
    Reason string `json:"reason" validate:"max=500"`
}

type reconcileRequest struct {
    Reconciled *bool `json:"reconciled" validate:"required"`
}

type transactionResponse struct {
    temporal.Version
    OrganizationID  uuid.UUID              `json:"organization_id"`
    TransactionDate time.Time              `json:"transaction_date"`
    Currency        string                 `json:"currency"`
    AmountMinor     int64                  `json:"amount_minor"`
    Amount          string                 `json:"amount"`
    Type            ledger.TransactionType `json:"type"`
    DebitAccountID  uuid.UUID              `json:"debit_account_id"`
    CreditAccountID uuid.UUID              `json:"credit_account_id"`
    Description     string                 `json:"description"`
    ContactID       *uuid.UUID             `json:"contact_id,omitempty"`
    ReferenceNumber string                 `json:"reference_number,omitempty"`
    Reconciled      bool                   `json:"reconciled"`
    ReconciledAt    *time.Time             `json:"reconciled_at,omitempty"`
    IsVoided        bool                   `json:"is_voided"`
    VoidedAt        *time.Time             `json:"voided_at,omitempty"`
    VoidedBy        string                 `json:"voided_by,omitempty"`
    VoidReason      string                 `json:"void_reason,omitempty"`
    ChangeReason    string                 `json:"change_reason,omitempty"`
    ChangedBy       string                 `json:"changed_by,omitempty"`
    CreatedBy       string                 `json:"created_by,omitempty"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
    return transactionResponse{
        Version:         t.Version,
        OrganizationID:  t.OrganizationID,
        TransactionDate: t.TransactionDate,
        Currency:        t.Amount.Curr().Code(),
        AmountMinor:     minor(t.Amount),
        Amount:          t.Amount.Decimal().String(),
        Type:            t.Type,
        DebitAccountID:  t.DebitAccountID,
        CreditAccountID: t.CreditAccountID,
        Description:     t.Description,
        ContactID:       t.ContactID,
        ReferenceNumber: t.ReferenceNumber,
        Reconciled:      t.Reconciled,
        ReconciledAt:    t.ReconciledAt,
        IsVoided:        t.IsVoided,
        VoidedAt:        t.VoidedAt,
        VoidedBy:        t.VoidedBy,
        VoidReason:      t.VoidReason,
        ChangeReason:    t.ChangeReason,
        ChangedBy:       t.ChangedBy,
        CreatedBy:       t.CreatedBy,
    }
}

func toTransactionList(in []ledger.Transaction) []transactionResponse {
    out := make([]transactionResponse, 0, len(in))
    for _, t := range in { out = append(out, toTransactionResponse(t)) }
    return out
}

type listResponse[T any] struct {
    Items []T `json:"items"`
    Total int `json:"total"`
}

// Bills

type postBillRequest struct {
    ContactID        uuid.UUID            `json:"contact_id" validate:"required"`
    Direction        ledger.BillDirection `json:"direction" validate:"required,oneof=PAYABLE RECEIVABLE"`
    BillNumber       string               `json:"bill_number,omitempty" validate:"max=100"`
    Description      string               `json:"description,omitempty" validate:"max=500"`
    AmountMinor      int64                `json:"amount_minor" validate:"gt=0"`
    IssueDate        time.Time            `json:"issue_date" validate:"required"`
    DueDate          *time.Time           `json:"due_date,omitempty"`
    AccrualAccountID uuid.UUID            `json:"accrual_account_id" validate:"required"`
    ControlAccountID uuid.UUID            `json:"control_account_id" validate:"required"`
    AttachmentURL    string               `json:"attachment_url,omitempty" validate:"omitempty,url"`
    Draft            bool                 `json:"draft,omitempty"`
}

type updateBillRequest struct {
    BillNumber      *string            `json:"bill_number,omitempty" validate:"omitempty,max=100"`
    Description     *string            `json:"description,omitempty" validate:"omitempty,max=500"`
    DueDate         *time.Time         `json:"due_date,omitempty"`
    ClearDueDate    bool               `json:"clear_due_date,omitempty"`
    AmountMinor     *int64             `json:"amount_minor,omitempty" validate:"omitempty,gt=0"`
    Status          *ledger.BillStatus `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PENDING PARTIAL PAID OVERDUE CANCELLED"`
    AttachmentURL   *string            `json:"attachment_url,omitempty" validate:"omitempty,url"`
    ClearAttachment bool               `json:"clear_attachment,omitempty"`
}

type paymentRequest struct {
    AmountMinor     int64     `json:"amount_minor" validate:"gt=0"`
    Date            time.Time `json:"date" validate:"required"`
    AccountID       uuid.UUID `json:"account_id" validate:"required"`
    Description     string    `json:"description,omitempty" validate:"max=500"`
    ReferenceNumber string    `json:"reference_number,omitempty" validate:"max=100"`
}

type billResponse struct {
    ID                   uuid.UUID            `json:"id"`
    OrganizationID       uuid.UUID            `json:"organization_id"`
    ContactID            uuid.UUID            `json:"contact_id"`
    Direction            ledger.BillDirection `json:"direction"`
    Status               ledger.BillStatus    `json:"status"`
    BillNumber           string               `json:"bill_number"`
    Description          string               `json:"description,omitempty"`
    Currency             string               `json:"currency"`
    AmountMinor          int64                `json:"amount_minor"`
    AmountPaidMinor      int64                `json:"amount_paid_minor"`
    IssueDate            time.Time            `json:"issue_date"`
    DueDate              *time.Time           `json:"due_date,omitempty"`
    PaidInFullDate       *time.Time           `json:"paid_in_full_date,omitempty"`
    AccrualTransactionID *uuid.UUID           `json:"accrual_transaction_id,omitempty"`
    AccrualAccountID     uuid.UUID            `json:"accrual_account_id"`
    ControlAccountID     uuid.UUID            `json:"control_account_id"`
    AttachmentURL        string               `json:"attachment_url,omitempty"`
    CreatedBy            string               `json:"created_by,omitempty"`
    CreatedAt            time.Time            `json:"created_at"`
    UpdatedAt            time.Time            `json:"updated_at"`

    Contact            *contactResponse     `json:"contact,omitempty"`
    AccrualTransaction *transactionResponse `json:"accrual_transaction,omitempty"`
    Payments           []paymentResponse    `json:"payments,omitempty"`
}

type paymentResponse struct {
    ID            uuid.UUID            `json:"id"`
    TransactionID uuid.UUID            `json:"transaction_id"`
    CreatedAt     time.Time            `json:"created_at"`
    Transaction   *transactionResponse `json:"transaction,omitempty"`
}

func toBillResponse(b ledger.Bill) billResponse {
    return billResponse{
        ID:                   b.ID,
        OrganizationID:       b.OrganizationID,
        ContactID:            b.ContactID,
        Direction:            b.Direction,
        Status:               b.Status,
        BillNumber:           b.BillNumber,
        Description:          b.Description,
        Currency:             b.Amount.Curr().Code(),
        AmountMinor:          minor(b.Amount),
        AmountPaidMinor:      minor(b.AmountPaid),
        IssueDate:            b.IssueDate,
        DueDate:              b.DueDate,
        PaidInFullDate:       b.PaidInFullDate,
        AccrualTransactionID: b.AccrualTransactionID,
        AccrualAccountID:     b.AccrualAccountID,
        ControlAccountID:     b.ControlAccountID,
        AttachmentURL:        b.AttachmentURL,
        CreatedBy:            b.CreatedBy,
        CreatedAt:            b.CreatedAt,
        UpdatedAt:            b.UpdatedAt,
    }
}

func toBillDetail(b bill.BillWithPayments) billResponse {
    out := toBillResponse(b.Bill)
    if b.Contact != nil {
        c := toContactResponse(*b.Contact)
        out.Contact = &c
    }
    if b.AccrualTransaction != nil {
        t := toTransactionResponse(*b.AccrualTransaction)
        out.AccrualTransaction = &t
    }
    out.Payments = make([]paymentResponse, 0, len(b.Payments))
    for _, p := range b.Payments {
        pr := paymentResponse{ID: p.ID, TransactionID: p.TransactionID, CreatedAt: p.CreatedAt}
        if p.Transaction != nil {
            t := toTransactionResponse(*p.Transaction)
            pr.Transaction = &t
        }
        out.Payments = append(out.Payments, pr)
    }
    return out
}

// Statements

type parseStatementRequest struct {
    FileName string             `json:"file_name" validate:"required,max=255"`
    Content  []byte             `json:"content" validate:"required"`
    Mapping  *statement.Mapping `json:"mapping,omitempty"`
}

// Reports

type trialBalanceLine struct {
    AccountID     uuid.UUID          `json:"account_id"`
    Code          string             `json:"code"`
    Type          ledger.AccountType `json:"type"`
    StoredMinor   int64              `json:"stored_minor"`
    ReplayedMinor int64              `json:"replayed_minor"`
    Drifted       bool               `json:"drifted"`
}

type trialBalanceResponse struct {
    Lines  []trialBalanceLine `json:"lines"`
    InSync bool               `json:"in_sync"`
}

func toTrialBalance(lines []balance.Line) trialBalanceResponse {
    out := trialBalanceResponse{Lines: make([]trialBalanceLine, 0, len(lines)), InSync: true}
    for _, l := range lines {
        drifted := l.Drifted()
        if drifted { out.InSync = false }
        out.Lines = append(out.Lines, trialBalanceLine{
            AccountID:     l.AccountID,
            Code:          l.Code,
            Type:          l.Type,
            StoredMinor:   minor(l.Stored),
            ReplayedMinor: minor(l.Replayed),
            Drifted:       drifted,
        })
    }
    return out
}

func minor(a money.Amount) int64 {
    u, _ := a.MinorUnits()
    return u
}
