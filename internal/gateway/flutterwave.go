// Package gateway wraps the Flutterwave v3 REST API: transaction
// initialization for hosted checkout and server-side transaction
// verification. It is the only code in the service that talks to the
// payment processor.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the production Flutterwave API endpoint.
const DefaultBaseURL = "https://api.flutterwave.com/v3"

// DefaultTimeout bounds every outbound gateway call.
const DefaultTimeout = 15 * time.Second

// Gateway errors. Timeouts and 5xx responses map to ErrUnavailable so that
// callers fail safe: a verification that cannot complete is never treated
// as a successful payment.
var (
	ErrUnavailable     = errors.New("payment gateway unavailable")
	ErrInitFailed      = errors.New("payment initialization failed")
	ErrVerifyFailed    = errors.New("transaction verification failed")
	ErrUnexpectedShape = errors.New("unexpected gateway response shape")
)

// InitRequest carries the parameters for initializing a hosted checkout.
type InitRequest struct {
	TxRef         string
	AmountKobo    int64
	Currency      string
	RedirectURL   string
	CustomerEmail string
	CustomerName  string
	Title         string
	Description   string
	MovieID       string
}

// Verification is the result of a server-side transaction verify call.
// Status comes from the gateway, not from anything the browser supplied.
type Verification struct {
	TxRef         string
	Status        string
	AmountKobo    int64
	Currency      string
	CustomerEmail string
	MovieID       string
}

// Successful reports whether the gateway confirmed the charge.
func (v *Verification) Successful() bool {
	return v.Status == "successful"
}

// Client is the interface for gateway operations, enabling mocks in tests.
type Client interface {
	// InitializePayment creates a transaction and returns the hosted
	// checkout link the user's browser should be redirected to.
	InitializePayment(ctx context.Context, req InitRequest) (string, error)

	// VerifyTransaction fetches the authoritative state of a transaction
	// by the gateway-assigned transaction ID.
	VerifyTransaction(ctx context.Context, transactionID string) (*Verification, error)

	// VerifyByReference fetches the authoritative state of a transaction
	// by the merchant-side tx_ref. Used by the reconciliation sweep, which
	// has no gateway transaction ID for stale pending records.
	VerifyByReference(ctx context.Context, txRef string) (*Verification, error)
}

// ObserveFunc receives the duration of each outbound gateway call.
type ObserveFunc func(operation, status string, seconds float64)

// FlutterwaveClient implements Client against the Flutterwave v3 API.
type FlutterwaveClient struct {
	http    *resty.Client
	observe ObserveFunc
}

// NewFlutterwaveClient creates a client authenticated with the given secret
// key. baseURL may be empty to use the production endpoint; observe may be nil.
func NewFlutterwaveClient(secretKey, baseURL string, timeout time.Duration, observe ObserveFunc) *FlutterwaveClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(secretKey).
		SetHeader("Content-Type", "application/json")
	return &FlutterwaveClient{http: r, observe: observe}
}

// envelope is the common Flutterwave response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initPayload struct {
	TxRef       string `json:"tx_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	Customer    struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Customizations struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"customizations"`
	Meta map[string]string `json:"meta,omitempty"`
}

type initData struct {
	Link string `json:"link"`
}

// verifyData mirrors the fields of a verify response this service consumes.
// Amount comes back in major currency units.
type verifyData struct {
	TxRef    string  `json:"tx_ref"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Meta struct {
		MovieID string `json:"movieId"`
	} `json:"meta"`
}

// InitializePayment creates a transaction and returns the hosted checkout link.
func (c *FlutterwaveClient) InitializePayment(ctx context.Context, req InitRequest) (string, error) {
	payload := initPayload{
		TxRef:       req.TxRef,
		Amount:      koboToMajor(req.AmountKobo),
		Currency:    req.Currency,
		RedirectURL: req.RedirectURL,
	}
	payload.Customer.Email = req.CustomerEmail
	payload.Customer.Name = req.CustomerName
	payload.Customizations.Title = req.Title
	payload.Customizations.Description = req.Description
	if req.MovieID != "" {
		payload.Meta = map[string]string{"movieId": req.MovieID}
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/payments")
	c.record("initialize", resp, err, start)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() >= 500 {
		return "", fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if env.Status != "success" {
		return "", fmt.Errorf("%w: %s", ErrInitFailed, env.Message)
	}
	var data initData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Link == "" {
		return "", fmt.Errorf("%w: missing checkout link", ErrUnexpectedShape)
	}
	return data.Link, nil
}

// VerifyTransaction fetches the authoritative state of a transaction.
func (c *FlutterwaveClient) VerifyTransaction(ctx context.Context, transactionID string) (*Verification, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/transactions/" + transactionID + "/verify")
	c.record("verify", resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if env.Status != "success" {
		// The gateway rejected the lookup (unknown transaction, expired,
		// bad credentials). Not a payment success either way.
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, env.Message)
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return &Verification{
		TxRef:         data.TxRef,
		Status:        data.Status,
		AmountKobo:    int64(math.Round(data.Amount * 100)),
		Currency:      data.Currency,
		CustomerEmail: data.Customer.Email,
		MovieID:       data.Meta.MovieID,
	}, nil
}

// VerifyByReference fetches the authoritative state of a transaction by its
// merchant reference.
func (c *FlutterwaveClient) VerifyByReference(ctx context.Context, txRef string) (*Verification, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tx_ref", txRef).
		Get("/transactions/verify_by_reference")
	c.record("verify_by_reference", resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, env.Message)
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return &Verification{
		TxRef:         data.TxRef,
		Status:        data.Status,
		AmountKobo:    int64(math.Round(data.Amount * 100)),
		Currency:      data.Currency,
		CustomerEmail: data.Customer.Email,
		MovieID:       data.Meta.MovieID,
	}, nil
}

func (c *FlutterwaveClient) record(op string, resp *resty.Response, err error, start time.Time) {
	if c.observe == nil {
		return
	}
	status := "error"
	if err == nil && resp != nil {
		status = fmt.Sprintf("%d", resp.StatusCode())
	}
	c.observe(op, status, time.Since(start).Seconds())
}

// koboToMajor renders a kobo amount as a major-unit decimal string,
// the format the initialize endpoint expects.
func koboToMajor(kobo int64) string {
	return fmt.Sprintf("%.2f", float64(kobo)/100)
}
