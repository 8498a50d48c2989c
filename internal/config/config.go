package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/latrastienda/tienda/internal/domain/invoice"
	"github.com/latrastienda/tienda/internal/domain/shipping"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/latrastienda/tienda/internal/pkg/logging"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "tienda.yaml"

type Config struct {
	Service  Service  `yaml:"service"`
	Shipping Shipping `yaml:"shipping"`
	Redsys   Redsys   `yaml:"redsys"`
	SMTP     SMTP     `yaml:"smtp"`
	Database Database `yaml:"database"`
	Seller   Seller   `yaml:"seller"`
}

type Service struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Addr     string `yaml:"addr"`
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Shipping amounts are strings so YAML never turns them into floats.
type Shipping struct {
	FreeThreshold string `yaml:"free_threshold"`
	FlatFee       string `yaml:"flat_fee"`
}

type Redsys struct {
	Secret          string `yaml:"secret"`
	MerchantCode    string `yaml:"merchant_code"`
	Terminal        string `yaml:"terminal"`
	Currency        string `yaml:"currency"`
	TransactionType string `yaml:"transaction_type"`
	Language        string `yaml:"language"`
	Endpoint        string `yaml:"endpoint"`
}

type SMTP struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	ReplyTo    string `yaml:"reply_to"`
	StaffEmail string `yaml:"staff_email"`
}

// Enabled is false when no host is configured; mail is then only logged.
func (s SMTP) Enabled() bool { return s.Host != "" }

type Database struct {
	URL string `yaml:"url"`
}

type Seller struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	TaxID   string `yaml:"tax_id"`
	Phone   string `yaml:"phone"`
	Email   string `yaml:"email"`
}

func Default() Config {
	rs := redsys.DefaultConfig("")
	seller := invoice.DefaultSeller()
	return Config{
		Service: Service{
			Name:     "tienda",
			Env:      "dev",
			Addr:     ":8080",
			BaseURL:  "http://localhost:8080",
			LogLevel: "info",
		},
		Shipping: Shipping{
			FreeThreshold: shipping.DefaultFreeThreshold.StringFixed(2),
			FlatFee:       shipping.DefaultFlatFee.StringFixed(2),
		},
		Redsys: Redsys{
			Secret:          rs.Secret,
			MerchantCode:    rs.MerchantCode,
			Terminal:        rs.Terminal,
			Currency:        rs.Currency,
			TransactionType: rs.TransactionType,
			Language:        rs.Language,
			Endpoint:        rs.Endpoint,
		},
		SMTP: SMTP{
			Port:       587,
			From:       "La Trastienda <pedidos@latrastienda.es>",
			ReplyTo:    seller.Email,
			StaffEmail: seller.Email,
		},
		Seller: Seller{
			Name:    seller.Name,
			Address: seller.Address,
			TaxID:   seller.TaxID,
			Phone:   seller.Phone,
			Email:   seller.Email,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, err
	}

	overrides := map[string]*string{
		"SERVICE_NAME":  &cfg.Service.Name,
		"ENV":           &cfg.Service.Env,
		"HTTP_ADDR":     &cfg.Service.Addr,
		"BASE_URL":      &cfg.Service.BaseURL,
		"LOG_LEVEL":     &cfg.Service.LogLevel,
		"LOG_FILE":      &cfg.Service.LogFile,
		"REDSYS_SECRET": &cfg.Redsys.Secret,
		"SMTP_PASSWORD": &cfg.SMTP.Password,
		"DATABASE_URL":  &cfg.Database.URL,
	}
	for key, dst := range overrides {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Service.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("service.log_level: %w", err))
	}
	if _, err := c.ShippingPolicy(); err != nil {
		errs = append(errs, err)
	}
	if c.Redsys.MerchantCode == "" {
		errs = append(errs, errors.New("redsys.merchant_code is required"))
	}
	if c.Redsys.Terminal == "" {
		errs = append(errs, errors.New("redsys.terminal is required"))
	}
	if c.Redsys.Secret == "" {
		errs = append(errs, errors.New("redsys.secret is required"))
	}
	if c.SMTP.Enabled() && c.SMTP.Port <= 0 {
		errs = append(errs, errors.New("smtp.port must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) ShippingPolicy() (shipping.Policy, error) {
	threshold, err := decimal.NewFromString(c.Shipping.FreeThreshold)
	if err != nil {
		return shipping.Policy{}, fmt.Errorf("shipping.free_threshold: %w", err)
	}
	fee, err := decimal.NewFromString(c.Shipping.FlatFee)
	if err != nil {
		return shipping.Policy{}, fmt.Errorf("shipping.flat_fee: %w", err)
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return shipping.Policy{}, errors.New("shipping amounts must be zero or greater")
	}
	return shipping.Policy{FreeThreshold: threshold, FlatFee: fee}, nil
}

func (c Config) LogOptions() logging.Options {
	return logging.Options{
		Service: c.Service.Name,
		Env:     c.Service.Env,
		Level:   c.Service.LogLevel,
		File:    c.Service.LogFile,
	}
}

func (c Config) RedsysConfig() redsys.Config {
	rc := redsys.DefaultConfig(c.Service.BaseURL)
	rc.Secret = c.Redsys.Secret
	rc.MerchantCode = c.Redsys.MerchantCode
	rc.Terminal = c.Redsys.Terminal
	rc.Currency = c.Redsys.Currency
	rc.TransactionType = c.Redsys.TransactionType
	rc.Language = c.Redsys.Language
	rc.Endpoint = c.Redsys.Endpoint
	return rc
}

func (c Config) InvoiceSeller() invoice.Seller {
	return invoice.Seller{
		Name:    c.Seller.Name,
		Address: c.Seller.Address,
		TaxID:   c.Seller.TaxID,
		Phone:   c.Seller.Phone,
		Email:   c.Seller.Email,
	}
}
