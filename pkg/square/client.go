package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	// PaymentStatusCompleted is Square's status for a captured payment.
	PaymentStatusCompleted = "COMPLETED"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// paymentsAPI is the slice of the SDK payments client the wrapper calls.
type paymentsAPI interface {
	Get(ctx context.Context, request *sq.GetPaymentsRequest, opts ...sqoption.RequestOption) (*sq.GetPaymentResponse, error)
}

// Client exposes the Square calls used to verify delivery partner remittances.
type Client struct {
	payments    paymentsAPI
	environment string
	logger      *logger.Logger
}

// CapturedPayment is the provider view of one payment.
type CapturedPayment struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    string
	ReferenceID string
}

// Completed reports whether Square considers the money captured.
func (p CapturedPayment) Completed() bool {
	return strings.EqualFold(p.Status, PaymentStatusCompleted)
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := resolveEnvironment(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	logg.Info(logg.WithField(ctx, "square_env", env), "square.client_ready")
	return &Client{payments: sdk.Payments, environment: env, logger: logg}, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// GetPayment fetches a payment by its Square id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*CapturedPayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.trace(ctx, "get_payment.request", map[string]any{"payment_id": paymentID})

	resp, err := c.payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		c.fail(ctx, "get_payment.error", err)
		return nil, providerError(err, "get payment")
	}

	payment := resp.GetPayment()
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square payment not found")
	}
	out := &CapturedPayment{
		ID:          deref(payment.GetID()),
		Status:      deref(payment.GetStatus()),
		ReferenceID: deref(payment.GetReferenceID()),
	}
	if money := payment.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.AmountCents = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			out.Currency = string(*currency)
		}
	}

	c.trace(ctx, "get_payment.response", map[string]any{
		"payment_id": out.ID,
		"status":     out.Status,
		"amount":     out.AmountCents,
	})
	return out, nil
}

// trace writes one structured line per provider call. Keys that look like
// credentials or bank details are masked before they reach the log.
func (c *Client) trace(ctx context.Context, event string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	masked := make(map[string]any, len(fields)+1)
	masked["square_env"] = c.environment
	for k, v := range fields {
		if isSensitiveKey(k) {
			v = "[REDACTED]"
		}
		masked[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, masked), "square."+event)
}

func (c *Client) fail(ctx context.Context, event string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Error(c.logger.WithField(ctx, "square_env", c.environment), "square."+event, err)
}

var sensitiveKeys = []string{"card", "token", "secret", "account", "ifsc", "upi"}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveKeys {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// providerError turns an SDK failure into a coded error. Rejections of our
// own credentials surface as dependency failures regardless of status.
func providerError(err error, op string) error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	code := domainCodeForStatus(apiErr.StatusCode)
	var reasons []string
	for _, sqErr := range squareErrorsOf(apiErr) {
		if sqErr.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeDependency
		}
		reasons = append(reasons, string(sqErr.Code))
	}
	wrapped := pkgerrors.Wrap(code, err, msg)
	if len(reasons) > 0 {
		wrapped = wrapped.WithDetails(map[string]any{"provider_codes": reasons})
	}
	return wrapped
}

// squareErrorsOf decodes the error list Square returns in the response body.
func squareErrorsOf(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func resolveEnvironment(raw string) (string, error) {
	switch env := strings.ToLower(strings.TrimSpace(raw)); env {
	case "":
		return sandboxEnv, nil
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
