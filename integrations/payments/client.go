package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/services"
)

var ErrNotConfigured = errors.New("payment provider is not configured")

// Client talks to the payment provider's REST API for PIX and card charges.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

var _ services.PaymentRail = (*Client)(nil)

func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{baseURL: cfg.APIURL, apiKey: cfg.APIKey, timeout: cfg.Timeout}
}

type chargeCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type chargeRequest struct {
	Reference   string         `json:"reference"`
	Method      string         `json:"method"`
	AmountCents int64          `json:"amount_cents"`
	Currency    string         `json:"currency"`
	Description string         `json:"description,omitempty"`
	Customer    chargeCustomer `json:"customer"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	QRCode  string `json:"qr_code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) agent(a *fiber.Agent) *fiber.Agent {
	return a.
		Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Timeout(c.timeout)
}

func (c *Client) do(ctx context.Context, a *fiber.Agent, out *chargeResponse) error {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return err
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("payment provider request failed: %w", errors.Join(errs...))
	}
	if err := json.Unmarshal(body, out); err != nil && code < 300 {
		return fmt.Errorf("decode payment provider response: %w", err)
	}
	if code >= 300 {
		msg := out.Message
		if msg == "" {
			msg = out.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("payment provider returned %d: %s", code, msg)
	}
	return nil
}

func (c *Client) CreateCharge(ctx context.Context, req services.ChargeRequest) (*services.Charge, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	a := c.agent(fiber.Post(c.baseURL + "/charges")).JSON(chargeRequest{
		Reference:   req.Reference,
		Method:      string(req.Method),
		AmountCents: req.AmountCents,
		Currency:    "BRL",
		Description: req.Description,
		Customer:    chargeCustomer{Name: req.CustomerName, Email: req.CustomerEmail},
	})

	var resp chargeResponse
	if err := c.do(ctx, a, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.New("payment provider returned no charge id")
	}
	if req.Method == models.PaymentPix && resp.QRCode == "" {
		return nil, errors.New("payment provider returned no PIX code")
	}
	return &services.Charge{Reference: resp.ID, QRCode: resp.QRCode}, nil
}

// confirmedStatuses are the provider statuses that mean the money arrived.
var confirmedStatuses = map[string]bool{
	"paid":      true,
	"approved":  true,
	"succeeded": true,
	"confirmed": true,
}

func (c *Client) Confirm(ctx context.Context, method models.PaymentMethod, reference string) (*services.Confirmation, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	a := c.agent(fiber.Get(c.baseURL + "/charges/" + url.PathEscape(reference)))

	var resp chargeResponse
	if err := c.do(ctx, a, &resp); err != nil {
		return nil, err
	}
	status := strings.ToLower(resp.Status)
	conf := &services.Confirmation{Confirmed: confirmedStatuses[status], Status: status, Message: resp.Message}
	if !conf.Confirmed && conf.Message == "" {
		kind := "card payment"
		if method == models.PaymentPix {
			kind = "PIX payment"
		}
		conf.Message = fmt.Sprintf("%s not confirmed yet (status %s)", kind, status)
	}
	return conf, nil
}
