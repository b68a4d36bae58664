// Package gateway is the typed request/response boundary to the merchant
// backend. One client serves all four addressing modes; routes and headers
// are selected per call from the mode fixed at construction.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
)

const DefaultBaseURL = "http://localhost:3003/api/v1"

// Config carries the transport settings for the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	mode       domain.AddressingMode
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg Config, mode domain.AddressingMode, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	return &Client{
		baseURL:    baseURL,
		mode:       mode,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "gateway_client").Str("mode", string(mode.Kind)).Logger(),
	}
}

// Mode returns the addressing mode the client was constructed with.
func (c *Client) Mode() domain.AddressingMode {
	return c.mode
}

// publicKey returns the merchant public key when the mode carries one.
func (c *Client) publicKey() string {
	if c.mode.Kind == domain.ModeMerchantKey {
		return c.mode.Value
	}
	return ""
}

// MerchantMetadata fetches merchant display data. Merchant-key mode only.
func (c *Client) MerchantMetadata(ctx context.Context) (domain.MerchantContext, error) {
	var out domain.MerchantContext
	if c.mode.Kind != domain.ModeMerchantKey {
		return out, &domain.CapabilityError{Operation: "merchant metadata", Mode: c.mode.Kind}
	}
	err := c.do(ctx, http.MethodGet, "/merchant/metadata", c.keyHeader(), nil, &out)
	return out, err
}

// PaymentLink fetches the hosted-checkout record. Link-slug mode only.
func (c *Client) PaymentLink(ctx context.Context) (domain.PaymentLink, error) {
	var out domain.PaymentLink
	if c.mode.Kind != domain.ModeLinkSlug {
		return out, &domain.CapabilityError{Operation: "payment link", Mode: c.mode.Kind}
	}
	err := c.do(ctx, http.MethodGet, "/links/"+url.PathEscape(c.mode.Value), nil, nil, &out)
	return out, err
}

// Invoice fetches the billing record. Invoice mode only.
func (c *Client) Invoice(ctx context.Context) (domain.Invoice, error) {
	var out domain.Invoice
	if c.mode.Kind != domain.ModeInvoice {
		return out, &domain.CapabilityError{Operation: "invoice", Mode: c.mode.Kind}
	}
	err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(c.mode.Value), nil, nil, &out)
	return out, err
}

// TransactionSnapshot fetches the current state of an existing transaction,
// used to resume or re-display it. Transaction-ref mode only.
func (c *Client) TransactionSnapshot(ctx context.Context) (domain.Transaction, error) {
	var out domain.Transaction
	if c.mode.Kind != domain.ModeTransactionRef {
		return out, &domain.CapabilityError{Operation: "transaction snapshot", Mode: c.mode.Kind}
	}
	err := c.do(ctx, http.MethodGet, "/payment/"+url.PathEscape(c.mode.Value), nil, nil, &out)
	return out, err
}

// CurrencyRates lists conversion rates against a base currency.
func (c *Client) CurrencyRates(ctx context.Context, base string) (domain.CurrencyRates, error) {
	var out domain.CurrencyRates
	err := c.do(ctx, http.MethodGet, "/currency/rates?base="+url.QueryEscape(base), nil, nil, &out)
	return out, err
}

// Convert converts an amount between two currency codes. Converting a
// currency to itself returns the amount unchanged without a network call.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	path := fmt.Sprintf("/currency/convert?amount=%s&from=%s&to=%s",
		url.QueryEscape(amount.String()), url.QueryEscape(from), url.QueryEscape(to))
	var out struct {
		ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return decimal.Decimal{}, err
	}
	return out.ConvertedAmount, nil
}

// IntentRequest is the payment-intent creation payload. The addressing
// selector for non-key modes is attached by the client.
type IntentRequest struct {
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Description string           `json:"description,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Customer    *domain.Customer `json:"customer,omitempty"`
	// PayerWalletAddress is the address the guest flow collected, when any.
	PayerWalletAddress string `json:"payerWalletAddress,omitempty"`
	// PayerUID identifies the authenticated provider user, when any.
	PayerUID string `json:"payerUid,omitempty"`
}

// intentRoutes maps each addressing mode to its creation endpoint and the
// JSON field naming its selector. Merchant-key mode authenticates by header
// and carries no selector field.
var intentRoutes = map[domain.AddressingKind]struct {
	path          string
	selectorField string
}{
	domain.ModeMerchantKey:    {path: "/payment/inline-intent"},
	domain.ModeLinkSlug:       {path: "/payment/link-intent", selectorField: "linkSlug"},
	domain.ModeInvoice:        {path: "/payment/invoice-intent", selectorField: "invoiceRef"},
	domain.ModeTransactionRef: {path: "/payment/resume-intent", selectorField: "transactionRef"},
}

// CreateIntent registers a payment attempt with the backend. Not safe to
// blindly retry: every call transitions backend state.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (domain.Transaction, error) {
	route := intentRoutes[c.mode.Kind]

	body := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if req.Customer != nil {
		body["customer"] = req.Customer
	}
	if req.PayerWalletAddress != "" {
		body["payerWalletAddress"] = req.PayerWalletAddress
	}
	if req.PayerUID != "" {
		body["payerUid"] = req.PayerUID
	}
	if route.selectorField != "" {
		body[route.selectorField] = c.mode.Value
	}

	var out domain.Transaction
	err := c.do(ctx, http.MethodPost, route.path, c.mutatingHeaders(c.optionalKeyHeader()), body, &out)
	return out, err
}

// Approve acknowledges the provider payment server-side. Attaches the
// merchant key as a best-effort hint when available. Not safe to blindly
// retry.
func (c *Client) Approve(ctx context.Context, transactionRef, providerPaymentID string) (domain.Transaction, error) {
	body := map[string]any{
		"transactionRef": transactionRef,
		"pipaymentid":    providerPaymentID,
	}
	var out domain.Transaction
	err := c.do(ctx, http.MethodPost, "/payment/approve", c.mutatingHeaders(c.optionalKeyHeader()), body, &out)
	return out, err
}

// Complete settles the payment server-side with the chain transaction id.
// Not safe to blindly retry.
func (c *Client) Complete(ctx context.Context, transactionRef, chainTxID string) (domain.Transaction, error) {
	body := map[string]any{
		"transactionRef": transactionRef,
		"txid":           chainTxID,
	}
	var out domain.Transaction
	err := c.do(ctx, http.MethodPost, "/payment/complete", c.mutatingHeaders(c.optionalKeyHeader()), body, &out)
	return out, err
}

// SignIn registers the provider-authenticated user with the backend.
func (c *Client) SignIn(ctx context.Context, user domain.AuthenticatedUser) error {
	body := map[string]any{
		"uid":         user.UID,
		"username":    user.Username,
		"accessToken": user.AccessToken,
	}
	return c.do(ctx, http.MethodPost, "/customer/signin", c.optionalKeyHeader(), body, nil)
}

// SignOut ends the backend customer session.
func (c *Client) SignOut(ctx context.Context, uid string) error {
	body := map[string]any{"uid": uid}
	return c.do(ctx, http.MethodPost, "/customer/signout", c.optionalKeyHeader(), body, nil)
}

func (c *Client) keyHeader() map[string]string {
	return map[string]string{"x-public-key": c.mode.Value}
}

// optionalKeyHeader attaches the merchant key when the mode carries one and
// stays anonymous otherwise.
func (c *Client) optionalKeyHeader() map[string]string {
	if key := c.publicKey(); key != "" {
		return map[string]string{"x-public-key": key}
	}
	return nil
}

// mutatingHeaders adds an idempotency key so a manual operator retry of a
// non-retryable operation is detectable server-side.
func (c *Client) mutatingHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Idempotency-Key"] = uuid.NewString()
	return headers
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	fullURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", fullURL).Msg("Gateway request failed")
		return &domain.GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	payload := unwrapEnvelope(respBody)
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// errorFromResponse prefers the backend {message} envelope over a generic
// status-derived fallback.
func (c *Client) errorFromResponse(status int, body []byte) error {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		c.logger.Warn().Int("status", status).Str("message", envelope.Message).Msg("Gateway rejected request")
		return &domain.GatewayError{Status: status, Message: envelope.Message}
	}
	c.logger.Warn().Int("status", status).Msg("Gateway rejected request without error envelope")
	return &domain.GatewayError{Status: status}
}

// unwrapEnvelope tolerates both historical success shapes: the canonical
// {data: ...} wrapper and a bare object.
func unwrapEnvelope(body []byte) []byte {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Data) > 0 {
		return wrapper.Data
	}
	return body
}
