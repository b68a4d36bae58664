package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusCreated     TransactionStatus = "created"
	StatusWalletShown TransactionStatus = "wallet_shown"
	StatusApproved    TransactionStatus = "approved"
	StatusCompleted   TransactionStatus = "completed"
	StatusCancelled   TransactionStatus = "cancelled"
	StatusExpired     TransactionStatus = "expired"
	StatusError       TransactionStatus = "error"
)

// Settled reports whether the status is a terminal success. Approved does not
// count: an approved payment still awaits completion and resumes into the
// interactive flow.
func (s TransactionStatus) Settled() bool {
	return s == StatusCompleted
}

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusError:
		return true
	}
	return false
}

// Transaction is the authoritative record of one payment attempt. The session
// owns it exclusively and always replaces the whole record with the latest
// value returned by the backend, never patching individual fields.
type Transaction struct {
	Reference            string            `json:"transactionref"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	ProviderPaymentID    string            `json:"pipaymentid"`
	DepositWalletAddress string            `json:"paymentwalletaddress"`
	QRCodeURL            string            `json:"qrcodeurl"`
	ChainTxID            string            `json:"txid,omitempty"`
}

// ExplorerURL returns the public block-explorer page for the settled
// transaction, or "" when no on-chain id is known yet.
func (t *Transaction) ExplorerURL() string {
	if t == nil || t.ChainTxID == "" {
		return ""
	}
	return fmt.Sprintf("https://blockexplorer.minepi.com/tx/%s", t.ChainTxID)
}

// MerchantContext is the resolved display data for the paying user. It is
// populated once per open and cleared on close.
type MerchantContext struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	PublicKey string `json:"publickey"`
	KYCStatus string `json:"kycstatus"`
}

// Verified reports whether the merchant passed identity verification.
func (m MerchantContext) Verified() bool {
	return m.KYCStatus == "verified" || m.KYCStatus == "approved"
}

// AuthenticatedUser is the wallet-provider identity, present only after the
// user completed provider authentication.
type AuthenticatedUser struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	AccessToken string `json:"-"`
}

// PaymentLink is the hosted-checkout record fetched in link-slug mode.
type PaymentLink struct {
	Slug        string          `json:"slug"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    MerchantContext `json:"merchant"`
}

// Invoice is the billing record fetched in invoice mode.
type Invoice struct {
	Reference   string          `json:"invoiceref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    MerchantContext `json:"merchant"`
	Paid        bool            `json:"paid"`
}

// CurrencyRate is one entry of the backend rate listing.
type CurrencyRate struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Symbol   string          `json:"symbol"`
}

// CurrencyRates is the backend rate listing against a base currency.
type CurrencyRates struct {
	Base      string         `json:"base"`
	Rates     []CurrencyRate `json:"rates"`
	Timestamp int64          `json:"timestamp"`
}

// Customer is optional buyer information forwarded to the backend.
type Customer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
