// Package session owns the lifecycle of one payment attempt: view
// transitions, the transaction record, the authenticated user, the countdown
// and the sequencing of gateway and wallet-provider calls.
//
// All state lives behind a single event loop. Gateway and provider calls run
// in worker goroutines and post their outcome back into the loop, so no two
// asynchronous resumptions ever interleave their state writes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
	"github.com/digimartpay/digipay-go/gateway"
	"github.com/digimartpay/digipay-go/pkg/currency"
	"github.com/digimartpay/digipay-go/wallet"
)

// DefaultCountdown is how long a displayed deposit address stays valid.
const DefaultCountdown = 180 * time.Second

// Gateway is the backend capability set the machine sequences calls against.
// *gateway.Client satisfies it.
type Gateway interface {
	MerchantMetadata(ctx context.Context) (domain.MerchantContext, error)
	PaymentLink(ctx context.Context) (domain.PaymentLink, error)
	Invoice(ctx context.Context) (domain.Invoice, error)
	TransactionSnapshot(ctx context.Context) (domain.Transaction, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	CreateIntent(ctx context.Context, req gateway.IntentRequest) (domain.Transaction, error)
	Approve(ctx context.Context, transactionRef, providerPaymentID string) (domain.Transaction, error)
	Complete(ctx context.Context, transactionRef, chainTxID string) (domain.Transaction, error)
	SignIn(ctx context.Context, user domain.AuthenticatedUser) error
	SignOut(ctx context.Context, uid string) error
}

// Config is the machine's immutable session configuration.
type Config struct {
	Mode        domain.AddressingMode
	BaseAmount  decimal.Decimal
	Currency    string
	Currencies  []string
	Description string
	Customer    *domain.Customer
	Metadata    map[string]any
	Countdown   time.Duration

	OnSuccess func(*domain.Transaction)
	OnCancel  func()
	OnError   func(message string)
}

type result struct {
	gen uint64
	fn  func()
}

type Machine struct {
	cfg      Config
	gw       Gateway
	provider wallet.Provider
	renderer domain.Renderer
	clock    Clock
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	actions chan Action
	results chan result
	done    chan struct{}
	closing chan struct{}

	// Everything below is owned by the event loop; no other goroutine reads
	// or writes it.
	gen             uint64
	view            domain.View
	merchant        domain.MerchantContext
	description     string
	tx              *domain.Transaction
	user            *domain.AuthenticatedUser
	displayAmount   decimal.Decimal
	displayCurrency string
	converting      bool
	convSeq         uint64
	verifying       bool
	walletAddress   string
	addressError    string
	notice          string
	errMessage      string
	countdown       int
	ticker          Ticker
	successFired    bool
	endLoop         bool
}

func New(cfg Config, gw Gateway, provider wallet.Provider, renderer domain.Renderer, clock Clock, logger zerolog.Logger) *Machine {
	if renderer == nil {
		renderer = domain.NopRenderer{}
	}
	if clock == nil {
		clock = realClock{}
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	if cfg.Currency == "" {
		cfg.Currency = currency.Settlement
	}
	if len(cfg.Currencies) == 0 {
		cfg.Currencies = currency.DefaultAllowed
	}
	return &Machine{
		cfg:      cfg,
		gw:       gw,
		provider: provider,
		renderer: renderer,
		clock:    clock,
		logger:   logger.With().Str("component", "session").Str("mode", string(cfg.Mode.Kind)).Logger(),
	}
}

// Open runs the session until it reaches a terminal state, Close is called or
// ctx is cancelled. It may be called again after the session closed; every
// run starts from a clean loading state.
func (m *Machine) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return &domain.InvariantViolation{Detail: "session is already open"}
	}
	m.running = true
	m.actions = make(chan Action, 16)
	m.results = make(chan result, 16)
	m.done = make(chan struct{})
	m.closing = make(chan struct{})
	actions, results, closing := m.actions, m.results, m.closing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		close(m.done)
		m.mu.Unlock()
	}()

	m.resetState()
	m.enterLoading(ctx)

	for {
		if m.endLoop {
			m.shutdown()
			return nil
		}

		var tickC <-chan time.Time
		if m.ticker != nil {
			tickC = m.ticker.C()
		}

		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-closing:
			m.shutdown()
			return nil
		case a := <-actions:
			m.handleAction(ctx, a)
		case r := <-results:
			// Results from a superseded attempt, or landing after close,
			// are discarded rather than applied.
			if r.gen == m.gen {
				r.fn()
			}
		case <-tickC:
			m.handleTick()
		}
	}
}

// Close dismisses the session. Idempotent and safe from any goroutine and any
// state; in-flight backend calls are not cancelled, their responses are
// discarded.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	select {
	case <-m.closing:
	default:
		close(m.closing)
	}
}

// Submit forwards an operator intent into the event loop. Intents submitted
// while the session is not open are dropped.
func (m *Machine) Submit(a Action) {
	m.mu.Lock()
	running, actions, done := m.running, m.actions, m.done
	m.mu.Unlock()
	if !running {
		return
	}
	select {
	case actions <- a:
	case <-done:
	}
}

// post hands a state mutation from a worker goroutine to the event loop.
func (m *Machine) post(gen uint64, fn func()) {
	m.mu.Lock()
	results, done := m.results, m.done
	m.mu.Unlock()
	if results == nil {
		return
	}
	select {
	case results <- result{gen: gen, fn: fn}:
	case <-done:
	}
}

// spawn runs work off the loop and applies the closure it returns back on
// the loop, unless the attempt was superseded in the meantime.
func (m *Machine) spawn(work func() func()) {
	gen := m.gen
	go func() {
		fn := work()
		if fn != nil {
			m.post(gen, fn)
		}
	}()
}

// resetState starts a fresh attempt. Bumping the generation first means a
// response issued for an earlier run or a failed attempt can never be applied
// to this one.
func (m *Machine) resetState() {
	m.gen++
	m.stopCountdown()
	m.view = domain.ViewLoading
	m.merchant = domain.MerchantContext{}
	m.description = m.cfg.Description
	m.tx = nil
	m.user = nil
	m.displayAmount = m.cfg.BaseAmount
	m.displayCurrency = currency.Settlement
	m.converting = false
	m.verifying = false
	m.walletAddress = ""
	m.addressError = ""
	m.notice = ""
	m.errMessage = ""
	m.successFired = false
	m.endLoop = false
}

func (m *Machine) shutdown() {
	m.stopCountdown()
	m.tx = nil
	m.user = nil
	m.merchant = domain.MerchantContext{}
	m.notice = ""
	m.errMessage = ""
}

func (m *Machine) snapshot() domain.Snapshot {
	return domain.Snapshot{
		View:             m.view,
		Merchant:         m.merchant,
		Description:      m.description,
		Amount:           m.displayAmount,
		Currency:         m.displayCurrency,
		FormattedAmount:  currency.Format(m.displayAmount, m.displayCurrency),
		Currencies:       m.cfg.Currencies,
		Converting:       m.converting,
		Verifying:        m.verifying,
		CountdownSeconds: m.countdown,
		Transaction:      m.tx,
		User:             m.user,
		Notice:           m.notice,
		AddressError:     m.addressError,
		ErrorMessage:     m.errMessage,
	}
}

func (m *Machine) render() {
	m.renderer.Render(m.snapshot())
}

// fail converts any gateway or adapter failure during an active attempt into
// the error view, surfacing the failure message verbatim. The only way out is
// a full restart or close. The failed attempt is superseded: results already
// posted or still in flight are discarded instead of applied on top of the
// error view.
func (m *Machine) fail(err error) {
	m.gen++
	m.stopCountdown()
	m.converting = false
	m.verifying = false
	m.errMessage = err.Error()
	m.view = domain.ViewError
	m.logger.Error().Err(err).Msg("Session failed")
	if m.cfg.OnError != nil {
		m.cfg.OnError(m.errMessage)
	}
	m.render()
}

func (m *Machine) fireSuccess(tx *domain.Transaction) {
	if m.successFired {
		return
	}
	m.successFired = true
	if m.cfg.OnSuccess != nil {
		m.cfg.OnSuccess(tx)
	}
}

func (m *Machine) fireCancel() {
	if m.cfg.OnCancel != nil {
		m.cfg.OnCancel()
	}
}

// ---- loading ----

func (m *Machine) enterLoading(ctx context.Context) {
	m.view = domain.ViewLoading
	m.render()

	switch m.cfg.Mode.Kind {
	case domain.ModeMerchantKey:
		m.spawn(func() func() {
			mc, err := m.gw.MerchantMetadata(ctx)
			return func() {
				if err != nil {
					m.fail(err)
					return
				}
				m.merchant = mc
				m.finishLoading(ctx)
			}
		})
	case domain.ModeLinkSlug:
		m.spawn(func() func() {
			link, err := m.gw.PaymentLink(ctx)
			return func() {
				if err != nil {
					m.fail(err)
					return
				}
				m.merchant = link.Merchant
				if m.displayAmount.IsZero() {
					m.displayAmount = link.Amount
				}
				if m.description == "" {
					m.description = link.Description
				}
				m.finishLoading(ctx)
			}
		})
	case domain.ModeInvoice:
		m.spawn(func() func() {
			inv, err := m.gw.Invoice(ctx)
			return func() {
				if err != nil {
					m.fail(err)
					return
				}
				if inv.Paid {
					m.fail(fmt.Errorf("invoice %s has already been paid", inv.Reference))
					return
				}
				m.merchant = inv.Merchant
				if m.displayAmount.IsZero() {
					m.displayAmount = inv.Amount
				}
				if m.description == "" {
					m.description = inv.Description
				}
				m.finishLoading(ctx)
			}
		})
	case domain.ModeTransactionRef:
		m.spawn(func() func() {
			tx, err := m.gw.TransactionSnapshot(ctx)
			return func() {
				if err != nil {
					m.fail(err)
					return
				}
				if tx.Status.Settled() {
					// Resumption shortcut: the payment already went through,
					// so no interactive view is shown at all.
					m.logger.Info().Str("transaction_ref", tx.Reference).Str("status", string(tx.Status)).Msg("Transaction already settled, skipping interactive flow")
					m.fireSuccess(&tx)
					m.endLoop = true
					return
				}
				m.tx = &tx
				m.displayAmount = tx.Amount
				m.displayCurrency = tx.Currency
				m.view = domain.ViewWalletAddressDisplay
				m.startCountdown()
				m.render()
			}
		})
	}
}

func (m *Machine) finishLoading(ctx context.Context) {
	m.view = domain.ViewInitial
	m.render()
	if m.cfg.Currency != currency.Settlement {
		m.startConversion(ctx, m.cfg.Currency)
	}
}

// ---- actions ----

func (m *Machine) handleAction(ctx context.Context, a Action) {
	switch a.Kind {
	case ActionSubmitAddress:
		m.handleSubmitAddress(a.Value)
	case ActionProceed:
		m.handleProceed(ctx)
	case ActionLogin:
		m.handleLogin(ctx)
	case ActionLogout:
		m.handleLogout(ctx)
	case ActionPayNow:
		m.handlePayNow(ctx)
	case ActionConfirmSent:
		m.handleConfirmSent(ctx)
	case ActionCancel:
		m.handleCancel()
	case ActionBack:
		m.handleBack()
	case ActionRetry:
		m.handleRetry(ctx)
	case ActionChangeCurrency:
		m.handleChangeCurrency(ctx, a.Value)
	case ActionClose:
		m.endLoop = true
	default:
		m.logger.Warn().Str("action", string(a.Kind)).Msg("Ignoring unknown action")
	}
}

func (m *Machine) handleSubmitAddress(value string) {
	if m.view != domain.ViewInitial {
		return
	}
	m.walletAddress = value
	if value == "" || wallet.ValidAddress(value) {
		m.addressError = ""
	} else {
		m.addressError = "wallet address must be exactly 56 uppercase letters and digits"
	}
	m.render()
}

func (m *Machine) handleProceed(ctx context.Context) {
	if m.view != domain.ViewInitial || m.converting || m.tx != nil {
		return
	}
	if !wallet.ValidAddress(m.walletAddress) {
		m.addressError = "wallet address must be exactly 56 uppercase letters and digits"
		m.render()
		return
	}
	m.createIntent(ctx, false)
}

func (m *Machine) handleLogin(ctx context.Context) {
	if m.view != domain.ViewInitial {
		return
	}
	m.view = domain.ViewAuthApproval
	m.render()

	gen := m.gen
	m.spawn(func() func() {
		user, err := m.provider.Authenticate(ctx, wallet.AuthScopes, func(providerPaymentID string) {
			m.post(gen, func() {
				m.notice = "an earlier incomplete payment was found: " + providerPaymentID
				m.render()
			})
		})
		if err == nil {
			err = m.gw.SignIn(ctx, user)
		}
		return func() {
			if err != nil {
				m.fail(err)
				return
			}
			m.user = &user
			m.view = domain.ViewAuthenticated
			m.render()
		}
	})
}

func (m *Machine) handleLogout(ctx context.Context) {
	if m.view != domain.ViewAuthenticated || m.user == nil {
		return
	}
	uid := m.user.UID
	m.spawn(func() func() {
		if err := m.gw.SignOut(ctx, uid); err != nil {
			// Local identity is cleared regardless; the backend session will
			// expire on its own.
			m.logger.Warn().Err(err).Str("uid", uid).Msg("Backend sign-out failed")
		}
		return nil
	})
	m.user = nil
	m.view = domain.ViewInitial
	m.render()
}

func (m *Machine) handlePayNow(ctx context.Context) {
	if m.view != domain.ViewAuthenticated || m.converting || m.tx != nil {
		return
	}
	m.createIntent(ctx, true)
}

func (m *Machine) handleConfirmSent(ctx context.Context) {
	if m.view != domain.ViewWalletAddressDisplay || m.tx == nil || m.verifying {
		return
	}
	m.stopCountdown()
	m.verifying = true
	m.render()
	m.startProviderPayment(ctx)
}

func (m *Machine) handleCancel() {
	if m.view != domain.ViewWalletAddressDisplay {
		return
	}
	m.stopCountdown()
	m.tx = nil
	m.fireCancel()
	m.endLoop = true
}

func (m *Machine) handleBack() {
	if m.view != domain.ViewWalletAddressDisplay || m.verifying {
		return
	}
	m.stopCountdown()
	m.tx = nil
	if m.user != nil {
		m.view = domain.ViewAuthenticated
	} else {
		m.view = domain.ViewInitial
	}
	m.render()
}

func (m *Machine) handleRetry(ctx context.Context) {
	if m.view != domain.ViewError {
		return
	}
	// Full restart: supersede every in-flight worker and load from scratch.
	m.resetState()
	m.enterLoading(ctx)
}

// handleChangeCurrency re-converts the displayed amount. It never blocks an
// in-progress payment: once an intent exists the displayed currency is fixed.
func (m *Machine) handleChangeCurrency(ctx context.Context, code string) {
	if m.tx != nil {
		return
	}
	if m.view != domain.ViewInitial && m.view != domain.ViewAuthenticated {
		return
	}
	if !m.allowedCurrency(code) {
		m.logger.Warn().Str("currency", code).Msg("Ignoring change to currency outside the allowed set")
		return
	}
	m.startConversion(ctx, code)
}

func (m *Machine) allowedCurrency(code string) bool {
	for _, c := range m.cfg.Currencies {
		if c == code {
			return true
		}
	}
	return false
}

func (m *Machine) startConversion(ctx context.Context, code string) {
	m.convSeq++
	seq := m.convSeq
	m.converting = true
	m.render()

	base := m.cfg.BaseAmount
	m.spawn(func() func() {
		amount, err := m.gw.Convert(ctx, base, currency.Settlement, code)
		return func() {
			if seq != m.convSeq {
				return
			}
			m.converting = false
			if err != nil {
				// A conversion failure must not block the payment; keep the
				// previous amount and currency.
				m.logger.Warn().Err(err).Str("currency", code).Msg("Currency conversion failed, keeping previous display amount")
				m.render()
				return
			}
			m.displayAmount = amount
			m.displayCurrency = code
			m.render()
		}
	})
}

// ---- payment execution ----

// createIntent registers the payment attempt. Guest and authenticated paths
// share it; they only differ in the payer identity attached and the view that
// hosts the follow-up.
func (m *Machine) createIntent(ctx context.Context, authenticated bool) {
	req := gateway.IntentRequest{
		Amount:      m.displayAmount,
		Currency:    m.displayCurrency,
		Description: m.description,
		Metadata:    m.cfg.Metadata,
		Customer:    m.cfg.Customer,
	}
	if authenticated {
		req.PayerUID = m.user.UID
	} else {
		req.PayerWalletAddress = m.walletAddress
	}

	m.spawn(func() func() {
		tx, err := m.gw.CreateIntent(ctx, req)
		return func() {
			if err != nil {
				m.fail(err)
				return
			}
			m.tx = &tx
			if authenticated {
				m.verifying = true
				m.render()
				m.startProviderPayment(ctx)
				return
			}
			m.view = domain.ViewWalletAddressDisplay
			m.startCountdown()
			m.render()
		}
	})
}

// startProviderPayment hands the attempt to the wallet provider and consumes
// its event stream, posting every event back into the loop.
func (m *Machine) startProviderPayment(ctx context.Context) {
	memo := m.description
	if memo == "" {
		memo = "Payment"
	}
	metadata := map[string]any{
		"transactionRef": m.tx.Reference,
		"pipaymentid":    m.tx.ProviderPaymentID,
	}
	for k, v := range m.cfg.Metadata {
		metadata[k] = v
	}
	data := wallet.PaymentData{
		Amount:   m.tx.Amount,
		Memo:     memo,
		Metadata: metadata,
	}

	gen := m.gen
	go func() {
		events, err := m.provider.CreatePayment(ctx, data)
		if err != nil {
			m.post(gen, func() { m.fail(err) })
			return
		}
		for ev := range events {
			switch ev.Kind {
			case wallet.EventApprovalReady:
				m.post(gen, func() { m.handleApprovalReady(ctx, ev) })
			case wallet.EventCompletionReady:
				m.post(gen, func() { m.handleCompletionReady(ctx, ev) })
			case wallet.EventCancelled:
				m.post(gen, func() { m.handleProviderCancel() })
			case wallet.EventFailed:
				m.post(gen, func() { m.fail(ev.Err) })
			}
		}
	}()
}

func (m *Machine) handleApprovalReady(ctx context.Context, ev wallet.Event) {
	if m.tx == nil {
		m.fail(&domain.InvariantViolation{Detail: "approval event received with no recorded transaction"})
		return
	}
	ref := m.tx.Reference
	m.verifying = true
	m.render()
	m.spawn(func() func() {
		tx, err := m.gw.Approve(ctx, ref, ev.ProviderPaymentID)
		return func() {
			if err != nil {
				m.fail(err)
				return
			}
			m.tx = &tx
			m.logger.Info().Str("transaction_ref", tx.Reference).Msg("Payment approved")
		}
	})
}

func (m *Machine) handleCompletionReady(ctx context.Context, ev wallet.Event) {
	if m.tx == nil {
		// A completion with nothing to complete is an impossible state, not
		// an event to silently drop.
		m.fail(&domain.InvariantViolation{Detail: "completion event received with no recorded transaction"})
		return
	}
	ref := m.tx.Reference
	m.spawn(func() func() {
		tx, err := m.gw.Complete(ctx, ref, ev.ChainTxID)
		return func() {
			if err != nil {
				m.fail(err)
				return
			}
			if tx.ChainTxID == "" {
				tx.ChainTxID = ev.ChainTxID
			}
			m.tx = &tx
			m.verifying = false
			m.stopCountdown()
			m.view = domain.ViewSuccess
			m.fireSuccess(m.tx)
			m.render()
		}
	})
}

func (m *Machine) handleProviderCancel() {
	m.stopCountdown()
	m.verifying = false
	m.tx = nil
	m.fireCancel()
	m.endLoop = true
}

// ---- countdown ----

func (m *Machine) startCountdown() {
	m.stopCountdown()
	m.countdown = int(m.cfg.Countdown / time.Second)
	m.ticker = m.clock.NewTicker(time.Second)
}

func (m *Machine) stopCountdown() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	m.countdown = 0
}

func (m *Machine) handleTick() {
	if m.ticker == nil {
		return
	}
	m.countdown--
	if m.countdown > 0 {
		m.renderer.RenderTick(m.countdown)
		return
	}
	// Reaching zero is equivalent to an operator cancel.
	m.logger.Info().Msg("Deposit countdown expired, cancelling payment")
	m.stopCountdown()
	m.tx = nil
	m.fireCancel()
	m.endLoop = true
}
