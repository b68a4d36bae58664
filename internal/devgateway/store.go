// Package devgateway is an in-memory merchant backend for local development.
// It serves every route the checkout client consumes, with seeded fixtures
// instead of persistence, so a session can run end to end against localhost.
package devgateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
)

// Store holds all backend state behind one lock. Fixtures are seeded at
// construction; transactions accumulate as sessions run.
type Store struct {
	mu           sync.Mutex
	merchants    map[string]domain.MerchantContext
	links        map[string]domain.PaymentLink
	invoices     map[string]domain.Invoice
	transactions map[string]domain.Transaction
	rates        map[string]decimal.Decimal
	customers    map[string]domain.AuthenticatedUser
}

func NewStore() *Store {
	merchant := domain.MerchantContext{
		Name:      "Demo Merchant",
		Email:     "demo@digimartpay.dev",
		PublicKey: "mk_1",
		KYCStatus: "verified",
	}
	return &Store{
		merchants: map[string]domain.MerchantContext{
			merchant.PublicKey: merchant,
		},
		links: map[string]domain.PaymentLink{
			"summer-sale": {
				Slug:        "summer-sale",
				Amount:      decimal.RequireFromString("25"),
				Currency:    "PI",
				Description: "Summer sale bundle",
				Merchant:    merchant,
			},
		},
		invoices: map[string]domain.Invoice{
			"inv_1001": {
				Reference:   "inv_1001",
				Amount:      decimal.RequireFromString("42.5"),
				Currency:    "PI",
				Description: "Consulting services, August",
				Merchant:    merchant,
			},
		},
		transactions: make(map[string]domain.Transaction),
		rates: map[string]decimal.Decimal{
			"PI":  decimal.NewFromInt(1),
			"USD": decimal.RequireFromString("3.14"),
			"EUR": decimal.RequireFromString("2.87"),
			"GBP": decimal.RequireFromString("2.45"),
		},
		customers: make(map[string]domain.AuthenticatedUser),
	}
}

func (s *Store) MerchantByKey(key string) (domain.MerchantContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[key]
	return m, ok
}

func (s *Store) LinkBySlug(slug string) (domain.PaymentLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[slug]
	return l, ok
}

func (s *Store) InvoiceByRef(ref string) (domain.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[ref]
	return inv, ok
}

func (s *Store) TransactionByRef(ref string) (domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[ref]
	return tx, ok
}

// CreateTransaction registers a new payment attempt and hands out a deposit
// address and QR code for it.
func (s *Store) CreateTransaction(amount decimal.Decimal, currency string) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := "tx_" + uuid.NewString()
	tx := domain.Transaction{
		Reference:            ref,
		Amount:               amount,
		Currency:             currency,
		Status:               domain.StatusCreated,
		DepositWalletAddress: depositAddress(),
		QRCodeURL:            "https://devgateway.local/qr/" + ref,
	}
	s.transactions[ref] = tx
	return tx
}

// Approve moves a transaction to approved and records the provider payment
// id. Approving an already settled transaction returns it unchanged.
func (s *Store) Approve(ref, providerPaymentID string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[ref]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s not found", ref)
	}
	if tx.Status.Settled() {
		return tx, nil
	}
	tx.Status = domain.StatusApproved
	tx.ProviderPaymentID = providerPaymentID
	s.transactions[ref] = tx
	return tx, nil
}

// Complete settles a transaction with its on-chain id.
func (s *Store) Complete(ref, chainTxID string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[ref]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s not found", ref)
	}
	if tx.Status == domain.StatusCompleted {
		return tx, nil
	}
	tx.Status = domain.StatusCompleted
	tx.ChainTxID = chainTxID
	s.transactions[ref] = tx
	return tx, nil
}

// Rates lists conversion rates against a base currency.
func (s *Store) Rates(base string) (domain.CurrencyRates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseRate, ok := s.rates[base]
	if !ok {
		return domain.CurrencyRates{}, fmt.Errorf("unknown base currency %s", base)
	}

	out := domain.CurrencyRates{Base: base, Timestamp: time.Now().Unix()}
	for code, rate := range s.rates {
		out.Rates = append(out.Rates, domain.CurrencyRate{
			Currency: code,
			Rate:     rate.Div(baseRate).Round(6),
		})
	}
	return out, nil
}

// Convert applies the seeded rates to an amount.
func (s *Store) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromRate, ok := s.rates[from]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("unknown currency %s", from)
	}
	toRate, ok := s.rates[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("unknown currency %s", to)
	}
	return amount.Mul(toRate).Div(fromRate).Round(6), nil
}

// SignIn records the customer session.
func (s *Store) SignIn(user domain.AuthenticatedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[user.UID] = user
}

// SignOut drops the customer session. Unknown uids are ignored.
func (s *Store) SignOut(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.customers, uid)
}

// depositAddress fabricates a syntactically valid deposit address. The
// checkout validates addresses client-side, so the shape matters.
func depositAddress() string {
	raw := "G" + uuid.NewString() + uuid.NewString()
	addr := make([]byte, 0, 56)
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			addr = append(addr, byte(r-'a'+'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			addr = append(addr, byte(r))
		}
		if len(addr) == 56 {
			break
		}
	}
	return string(addr)
}
