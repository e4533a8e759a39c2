package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/crm-api/pkg/circuitbreaker"
)

// Charge is a tokenized card charge request.
type Charge struct {
	Token       string
	Amount      decimal.Decimal
	Currency    string
	Customer    string
	Description string
}

// Receipt is what the processor returns for a captured charge.
type Receipt struct {
	ChargeID string
	Amount   decimal.Decimal
}

// DeclinedError carries the processor's human readable reason.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "payment declined: " + e.Reason
}

// Reason extracts a displayable message from a charge error.
func Reason(err error) string {
	var declined *DeclinedError
	if errors.As(err, &declined) {
		return declined.Reason
	}
	return "the payment processor is unavailable"
}

type Gateway interface {
	Charge(ctx context.Context, c Charge) (*Receipt, error)
}

// HTTPGateway talks to a form encoded charges endpoint authenticated with a bearer key.
type HTTPGateway struct {
	baseURL string
	key     string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewHTTPGateway(baseURL, key string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "payment-gateway",
			MaxFailures: 5,
			Cooldown:    time.Minute,
		}),
	}
}

type chargeResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Charge sends the amount in minor units. Declines are returned as *DeclinedError and
// do not count against the circuit breaker.
func (g *HTTPGateway) Charge(ctx context.Context, c Charge) (*Receipt, error) {
	form := url.Values{}
	form.Set("amount", c.Amount.Shift(2).Round(0).String())
	form.Set("currency", strings.ToLower(c.Currency))
	form.Set("source", c.Token)
	form.Set("customer_reference", c.Customer)
	form.Set("description", c.Description)

	var (
		body     chargeResponse
		declined error
	)
	err := g.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+g.key)

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode charge response (status %d): %w", resp.StatusCode, err)
		}
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400 || body.Error != nil:
			reason := http.StatusText(resp.StatusCode)
			if body.Error != nil && body.Error.Message != "" {
				reason = body.Error.Message
			}
			declined = &DeclinedError{Reason: reason}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to charge: %w", err)
	}
	if declined != nil {
		return nil, declined
	}

	return &Receipt{
		ChargeID: body.ID,
		Amount:   decimal.New(body.Amount, -2),
	}, nil
}
