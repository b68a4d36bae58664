// Command digipay runs an interactive console checkout against a local
// gateway, standing in for the web page that would normally embed the
// library. The wallet provider is simulated: authentication and payments
// succeed after a short delay.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	digipay "github.com/digimartpay/digipay-go"
	"github.com/digimartpay/digipay-go/domain"
	"github.com/digimartpay/digipay-go/pkg/config"
	"github.com/digimartpay/digipay-go/pkg/logger"
	"github.com/digimartpay/digipay-go/wallet"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(cfg.Logger)

	var customer *domain.Customer
	if cfg.Checkout.CustomerEmail != "" || cfg.Checkout.CustomerName != "" {
		customer = &domain.Customer{
			Email: cfg.Checkout.CustomerEmail,
			Name:  cfg.Checkout.CustomerName,
		}
	}

	bridge := wallet.NewBridge(&simulatedSDK{}, log)

	session, err := digipay.New(digipay.Config{
		MerchantKey:    cfg.Checkout.MerchantKey,
		LinkSlug:       cfg.Checkout.LinkSlug,
		InvoiceRef:     cfg.Checkout.InvoiceRef,
		TransactionRef: cfg.Checkout.TransactionRef,
		Amount:         cfg.Checkout.Amount,
		Currency:       cfg.Checkout.Currency,
		Currencies:     cfg.Checkout.Currencies,
		Description:    cfg.Checkout.Description,
		Customer:       customer,
		APIURL:         cfg.Gateway.BaseURL,
		Timeout:        time.Duration(cfg.Gateway.Timeout) * time.Second,
		Wallet:         bridge,
		Renderer:       &consoleRenderer{},
		Logger:         &log,
		OnSuccess: func(tx *domain.Transaction) {
			fmt.Printf("\npayment settled: %s\n", tx.Reference)
			if url := tx.ExplorerURL(); url != "" {
				fmt.Printf("explorer: %s\n", url)
			}
		},
		OnCancel: func() { fmt.Println("\npayment cancelled") },
		OnError:  func(msg string) { fmt.Printf("\npayment failed: %s\n", msg) },
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build checkout session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go readCommands(session)

	if err := session.Open(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Checkout session failed")
	}
}

// readCommands maps console input onto session actions.
func readCommands(session *digipay.Session) {
	fmt.Println("commands: address <addr> | proceed | login | logout | pay | sent | currency <code> | back | cancel | retry | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		switch fields[0] {
		case "address":
			session.Submit(digipay.Action{Kind: digipay.ActionSubmitAddress, Value: arg})
		case "proceed":
			session.Submit(digipay.Action{Kind: digipay.ActionProceed})
		case "login":
			session.Submit(digipay.Action{Kind: digipay.ActionLogin})
		case "logout":
			session.Submit(digipay.Action{Kind: digipay.ActionLogout})
		case "pay":
			session.Submit(digipay.Action{Kind: digipay.ActionPayNow})
		case "sent":
			session.Submit(digipay.Action{Kind: digipay.ActionConfirmSent})
		case "currency":
			session.Submit(digipay.Action{Kind: digipay.ActionChangeCurrency, Value: strings.ToUpper(arg)})
		case "back":
			session.Submit(digipay.Action{Kind: digipay.ActionBack})
		case "cancel":
			session.Submit(digipay.Action{Kind: digipay.ActionCancel})
		case "retry":
			session.Submit(digipay.Action{Kind: digipay.ActionRetry})
		case "quit":
			session.Close()
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

// consoleRenderer prints each snapshot as a small text panel.
type consoleRenderer struct{}

func (consoleRenderer) Render(s domain.Snapshot) {
	fmt.Printf("\n--- %s ---\n", s.View)
	if s.Merchant.Name != "" {
		verified := ""
		if s.Merchant.Verified() {
			verified = " [verified]"
		}
		fmt.Printf("merchant: %s%s\n", s.Merchant.Name, verified)
	}
	if s.Description != "" {
		fmt.Printf("for: %s\n", s.Description)
	}
	if !s.Amount.IsZero() {
		converting := ""
		if s.Converting {
			converting = " (converting...)"
		}
		fmt.Printf("amount: %s%s\n", s.FormattedAmount, converting)
	}
	if s.Transaction != nil && s.Transaction.DepositWalletAddress != "" {
		fmt.Printf("send to: %s\n", s.Transaction.DepositWalletAddress)
		fmt.Printf("qr: %s\n", s.Transaction.QRCodeURL)
	}
	if s.CountdownSeconds > 0 {
		fmt.Printf("expires in: %ds\n", s.CountdownSeconds)
	}
	if s.User != nil {
		fmt.Printf("signed in as: %s\n", s.User.Username)
	}
	if s.Verifying {
		fmt.Println("verifying payment...")
	}
	if s.Notice != "" {
		fmt.Printf("notice: %s\n", s.Notice)
	}
	if s.AddressError != "" {
		fmt.Printf("address error: %s\n", s.AddressError)
	}
	if s.ErrorMessage != "" {
		fmt.Printf("error: %s\n", s.ErrorMessage)
	}
}

func (consoleRenderer) RenderTick(seconds int) {
	if seconds%30 == 0 {
		fmt.Printf("expires in: %ds\n", seconds)
	}
}

// simulatedSDK approves everything after a short delay, standing in for the
// real wallet application.
type simulatedSDK struct{}

func (simulatedSDK) Authenticate(scopes []string, onIncompletePaymentFound func(string)) (wallet.AuthResult, error) {
	time.Sleep(300 * time.Millisecond)
	return wallet.AuthResult{
		AccessToken: uuid.NewString(),
		UID:         "sim_user",
		Username:    "simulated",
	}, nil
}

func (simulatedSDK) CreatePayment(amount, memo string, metadata map[string]any, callbacks wallet.Callbacks) error {
	providerPaymentID := "sim_pay_" + uuid.NewString()
	go func() {
		time.Sleep(500 * time.Millisecond)
		callbacks.OnReadyForServerApproval(providerPaymentID)
		time.Sleep(500 * time.Millisecond)
		callbacks.OnReadyForServerCompletion(providerPaymentID, "sim_chain_"+uuid.NewString())
	}()
	return nil
}
