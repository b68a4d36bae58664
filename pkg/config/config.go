// Package config loads settings for the binaries in cmd/. The library itself
// is configured programmatically by the embedding host.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/digimartpay/digipay-go/pkg/logger"
)

type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Server   ServerConfig   `yaml:"server"`
	Logger   logger.Config  `yaml:"logger"`
}

type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// CheckoutConfig seeds the demo session in cmd/digipay.
type CheckoutConfig struct {
	MerchantKey    string   `yaml:"merchant_key"`
	LinkSlug       string   `yaml:"link_slug"`
	InvoiceRef     string   `yaml:"invoice_ref"`
	TransactionRef string   `yaml:"transaction_ref"`
	Amount         string   `yaml:"amount"`
	Currency       string   `yaml:"currency"`
	Currencies     []string `yaml:"currencies"`
	Description    string   `yaml:"description"`
	CustomerEmail  string   `yaml:"customer_email"`
	CustomerName   string   `yaml:"customer_name"`
}

// ServerConfig is used by cmd/devgateway.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

func Load(path string) (*Config, error) {
	// A missing .env is fine; environment may already be populated.
	_ = godotenv.Load()

	if path == "" {
		path = "./config.yaml"
	}

	var config Config
	configData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
