// Package gateway is the HTTP client for the payment provider's REST API.
//
// Every call goes through the same path: client-side rate limit, a circuit
// breaker that only counts transport failures and 5xx responses, a
// per-attempt timeout and a bounded number of retries with exponential
// backoff. Anything that still fails surfaces as ErrUpstreamUnavailable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
	RPS        float64
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[response]
	sf      singleflight.Group
	backoff time.Duration
	log     *slog.Logger
}

type response struct {
	status int
	body   []byte
}

var errServer = errors.New("gateway server error")

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		cb: gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		backoff: 200 * time.Millisecond,
		log:     log,
	}
}

// envelope is the provider's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Type     string          `json:"type"`
	Reason   string          `json:"reason"`
	Messages json.RawMessage `json:"messages"`
}

func (e *apiError) String() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return e.Type + ": " + e.Reason
	}
	if len(e.Messages) > 0 {
		return e.Type + ": " + string(e.Messages)
	}
	return e.Type
}

// AcceptanceTokens fetches the merchant's current presigned consent tokens.
// Concurrent callers share a single upstream request.
func (c *Client) AcceptanceTokens(ctx context.Context) (domain.AcceptanceTokens, error) {
	v, err, _ := c.sf.Do("acceptance", func() (any, error) {
		var merchant struct {
			PresignedAcceptance struct {
				AcceptanceToken string `json:"acceptance_token"`
				Permalink       string `json:"permalink"`
			} `json:"presigned_acceptance"`
			PresignedPersonalDataAuth struct {
				AcceptanceToken string `json:"acceptance_token"`
				Permalink       string `json:"permalink"`
			} `json:"presigned_personal_data_auth"`
		}
		if err := c.call(ctx, http.MethodGet, "/merchants/"+c.cfg.PublicKey, "", nil, &merchant); err != nil {
			return domain.AcceptanceTokens{}, err
		}
		if merchant.PresignedAcceptance.AcceptanceToken == "" {
			return domain.AcceptanceTokens{}, fmt.Errorf("%w: merchant response has no acceptance token", domain.ErrUpstreamUnavailable)
		}
		return domain.AcceptanceTokens{
			AcceptanceToken:       merchant.PresignedAcceptance.AcceptanceToken,
			AcceptancePermalink:   merchant.PresignedAcceptance.Permalink,
			PersonalDataToken:     merchant.PresignedPersonalDataAuth.AcceptanceToken,
			PersonalDataPermalink: merchant.PresignedPersonalDataAuth.Permalink,
		}, nil
	})
	if err != nil {
		return domain.AcceptanceTokens{}, err
	}
	return v.(domain.AcceptanceTokens), nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	var tx domain.Transaction
	if err := c.call(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), "", nil, &tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req domain.CreateTransaction) (domain.Transaction, error) {
	var tx domain.Transaction
	if err := c.call(ctx, http.MethodPost, "/transactions", c.cfg.PrivateKey, req, &tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) TokenizeCard(ctx context.Context, card domain.Card) (domain.CardToken, error) {
	var tok domain.CardToken
	if err := c.call(ctx, http.MethodPost, "/tokens/cards", c.cfg.PublicKey, card, &tok); err != nil {
		return domain.CardToken{}, err
	}
	return tok, nil
}

func (c *Client) call(ctx context.Context, method, path, bearer string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}

	resp, err := c.cb.Execute(func() (response, error) {
		return c.send(ctx, method, path, bearer, payload)
	})
	if err != nil {
		c.log.Error("gateway call failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.body, &env)

	switch {
	case resp.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", domain.ErrTransactionNotFound, method, path)
	case resp.status >= 400:
		return fmt.Errorf("%w: status %d: %s", domain.ErrGatewayRejected, resp.status, env.Error.String())
	case decodeErr != nil:
		return fmt.Errorf("%w: decode %s %s: %v", domain.ErrUpstreamUnavailable, method, path, decodeErr)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s %s data: %v", domain.ErrUpstreamUnavailable, method, path, err)
	}
	return nil
}

// send runs the retry loop. 4xx responses are returned without error so the
// breaker does not trip on client mistakes.
func (c *Client) send(ctx context.Context, method, path, bearer string, payload []byte) (response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return response{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, err
		}

		resp, err := c.attempt(ctx, method, path, bearer, payload)
		if err == nil && resp.status < 500 {
			return resp, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: status %d", errServer, resp.status)
		}
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		lastErr = err
		c.log.Warn("gateway attempt failed", "method", method, "path", path, "attempt", attempt+1, "err", err)
	}
	return response{}, lastErr
}

func (c *Client) attempt(ctx context.Context, method, path, bearer string, payload []byte) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return response{}, err
	}
	return response{status: res.StatusCode, body: b}, nil
}
