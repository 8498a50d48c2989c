package redsys

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/latrastienda/tienda/internal/domain/money"
	"github.com/latrastienda/tienda/internal/domain/payment"
	"github.com/shopspring/decimal"
)

const (
	SignatureVersion = "HMAC_SHA256_V1"
	TestEndpoint     = "https://sis-t.redsys.es:25443/sis/realizarPago"
	// TestSecret is the public key of the gateway's sandbox merchant.
	TestSecret = "sq7HjrUOBfKmC576ILgskD5srU870gJ7"

	orderSuffixLayout = "150405"

	// MaxMerchantOrderLen is the length limit of Ds_Merchant_Order.
	MaxMerchantOrderLen = 12
	// MaxOrderID is the largest order id that still fits a merchant order
	// next to the HHMMSS suffix.
	MaxOrderID = 999999
)

var (
	ErrInvalidSignature      = errors.New("redsys: invalid signature")
	ErrMalformedNotification = errors.New("redsys: malformed notification")
	ErrInvalidMerchantOrder  = errors.New("redsys: invalid merchant order")
	ErrMissingConfiguration  = errors.New("redsys: incomplete configuration")
	ErrOrderIDOutOfRange     = errors.New("redsys: order id does not fit a merchant order")
)

type Config struct {
	Secret          string
	MerchantCode    string
	Terminal        string
	Currency        string
	TransactionType string
	Language        string
	Endpoint        string
	NotificationURL string
	OKURL           string
	KOURL           string
}

// DefaultConfig points at the sandbox with the public test merchant.
func DefaultConfig(baseURL string) Config {
	baseURL = strings.TrimRight(baseURL, "/")
	return Config{
		Secret:          TestSecret,
		MerchantCode:    "999008881",
		Terminal:        "049",
		Currency:        "978",
		TransactionType: "0",
		Language:        "001",
		Endpoint:        TestEndpoint,
		NotificationURL: baseURL + "/ventas/notificacion/",
		OKURL:           baseURL + "/ventas/exito/",
		KOURL:           baseURL + "/ventas/error/",
	}
}

type Gateway struct {
	cfg    Config
	signer *Signer
}

func New(cfg Config) (*Gateway, error) {
	if cfg.MerchantCode == "" || cfg.Terminal == "" || cfg.Endpoint == "" {
		return nil, ErrMissingConfiguration
	}
	signer, err := NewSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Gateway{cfg: cfg, signer: signer}, nil
}

func (g *Gateway) Signer() *Signer { return g.signer }

// Request is what the customer's browser posts to the hosted payment page.
type Request struct {
	Endpoint           string
	SignatureVersion   string
	MerchantParameters string
	Signature          string
	MerchantOrder      string
}

type merchantParams struct {
	Amount          string `json:"Ds_Merchant_Amount"`
	Order           string `json:"Ds_Merchant_Order"`
	MerchantCode    string `json:"Ds_Merchant_MerchantCode"`
	Currency        string `json:"Ds_Merchant_Currency"`
	TransactionType string `json:"Ds_Merchant_TransactionType"`
	Terminal        string `json:"Ds_Merchant_Terminal"`
	MerchantURL     string `json:"Ds_Merchant_MerchantURL"`
	URLOK           string `json:"Ds_Merchant_UrlOK"`
	URLKO           string `json:"Ds_Merchant_UrlKO"`
	Language        string `json:"Ds_Merchant_ConsumerLanguage"`
}

// MerchantOrder makes the gateway order id: the zero-padded order id followed
// by the HHMMSS of now, so a retried payment never reuses an id.
func MerchantOrder(orderID int64, now time.Time) string {
	return fmt.Sprintf("%04d%s", orderID, now.Format(orderSuffixLayout))
}

// ParseMerchantOrder recovers the order id from a merchant order.
func ParseMerchantOrder(merchantOrder string) (int64, error) {
	if len(merchantOrder) <= len(orderSuffixLayout) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMerchantOrder, merchantOrder)
	}
	id, err := strconv.ParseInt(merchantOrder[:len(merchantOrder)-len(orderSuffixLayout)], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMerchantOrder, merchantOrder)
	}
	return id, nil
}

// BuildRequest signs the payment request for orderID. Ids outside
// 1..MaxOrderID fail with ErrOrderIDOutOfRange.
func (g *Gateway) BuildRequest(orderID int64, amount decimal.Decimal, now time.Time) (Request, error) {
	if orderID <= 0 || orderID > MaxOrderID {
		return Request{}, fmt.Errorf("%w: %d", ErrOrderIDOutOfRange, orderID)
	}
	order := MerchantOrder(orderID, now)
	raw, err := json.Marshal(merchantParams{
		Amount:          strconv.FormatInt(money.MinorUnits(amount), 10),
		Order:           order,
		MerchantCode:    g.cfg.MerchantCode,
		Currency:        g.cfg.Currency,
		TransactionType: g.cfg.TransactionType,
		Terminal:        g.cfg.Terminal,
		MerchantURL:     g.cfg.NotificationURL,
		URLOK:           g.cfg.OKURL,
		URLKO:           g.cfg.KOURL,
		Language:        g.cfg.Language,
	})
	if err != nil {
		return Request{}, fmt.Errorf("redsys: encode params: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	sig, err := g.signer.Sign(encoded, order)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Endpoint:           g.cfg.Endpoint,
		SignatureVersion:   SignatureVersion,
		MerchantParameters: encoded,
		Signature:          sig,
		MerchantOrder:      order,
	}, nil
}

// Notification is a verified gateway callback with URL-unescaped values.
type Notification struct {
	Order             string
	OrderID           int64
	Response          payment.ResponseCode
	RawResponse       string
	AuthorisationCode string
	Date              string
	Hour              string
	CardCountry       string
	MerchantCode      string
	// Amount is the charged amount from Ds_Amount, nil when absent.
	Amount *decimal.Decimal
	Fields map[string]string
}

// VerifyNotification decodes the parameters, checks the signature against the
// order id found inside them and parses the fields the shop needs.
func (g *Gateway) VerifyNotification(encodedParams, signature string) (*Notification, error) {
	if encodedParams == "" || signature == "" {
		return nil, fmt.Errorf("%w: missing parameters or signature", ErrMalformedNotification)
	}
	fields, err := DecodeParameters(encodedParams)
	if err != nil {
		return nil, err
	}

	order := fields["Ds_Order"]
	ok, err := g.signer.Verify(encodedParams, order, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	n := &Notification{
		Order:             order,
		RawResponse:       fields["Ds_Response"],
		AuthorisationCode: fields["Ds_AuthorisationCode"],
		Date:              fields["Ds_Date"],
		Hour:              fields["Ds_Hour"],
		CardCountry:       fields["Ds_Card_Country"],
		MerchantCode:      fields["Ds_MerchantCode"],
		Fields:            fields,
	}
	if n.OrderID, err = ParseMerchantOrder(order); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}
	if n.Response, err = payment.ParseResponseCode(n.RawResponse); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}
	if raw := fields["Ds_Amount"]; raw != "" {
		cents, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || cents < 0 {
			return nil, fmt.Errorf("%w: Ds_Amount %q", ErrMalformedNotification, raw)
		}
		amount := money.FromMinorUnits(cents)
		n.Amount = &amount
	}
	return n, nil
}

// DecodeParameters turns the base64 JSON blob into URL-unescaped strings.
// Both the standard and the URL-safe alphabets are accepted.
func DecodeParameters(encoded string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrMalformedNotification, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrMalformedNotification, err)
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case nil:
			s = ""
		default:
			s = fmt.Sprint(tv)
		}
		if u, err := url.PathUnescape(s); err == nil {
			s = u
		}
		out[k] = s
	}
	return out, nil
}
