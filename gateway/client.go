package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"slots-panel/models"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries a per-call id for correlating with server logs
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// Client talks to the remote economy service
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every non-streaming call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Load fetches the session snapshot
func (c *Client) Load(ctx context.Context) (LoadState, error) {
	var msg loadMessage
	if err := c.call(ctx, "load", http.MethodGet, "/api/load", &msg, msg.validate); err != nil {
		return LoadState{}, err
	}
	return msg.state(), nil
}

// Spin asks the server to settle one spin for the given wager
func (c *Client) Spin(ctx context.Context, bet int64) (models.SpinResult, error) {
	var msg spinMessage
	path := "/api/spin/" + strconv.FormatInt(bet, 10)
	if err := c.call(ctx, "spin", http.MethodPost, path, &msg, msg.validate); err != nil {
		return models.SpinResult{}, err
	}
	return msg.result(), nil
}

// Deposit sends amount as given and returns the server balance
func (c *Client) Deposit(ctx context.Context, amount string) (int64, error) {
	return c.adjust(ctx, "deposit", amount)
}

// Withdraw sends amount as given and returns the server balance
func (c *Client) Withdraw(ctx context.Context, amount string) (int64, error) {
	return c.adjust(ctx, "withdraw", amount)
}

func (c *Client) adjust(ctx context.Context, op, amount string) (int64, error) {
	var msg balanceMessage
	path := "/api/" + op + "/" + url.PathEscape(strings.TrimSpace(amount))
	if err := c.call(ctx, op, http.MethodPost, path, &msg, msg.validate); err != nil {
		return 0, err
	}
	return *msg.Balance, nil
}

// MachineStats fetches the machine-wide aggregates
func (c *Client) MachineStats(ctx context.Context) (models.AggregateStats, error) {
	var msg statsMessage
	if err := c.call(ctx, "machine-stats", http.MethodGet, "/api/machine-stats", &msg, msg.validate); err != nil {
		return models.AggregateStats{}, err
	}
	return msg.stats(), nil
}

func (c *Client) call(ctx context.Context, op, method, path string, out any, validate func() error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return transportError(op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gateway call failed", zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		return transportError(op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("gateway call",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return serverError(op, resp.StatusCode, errorMessage(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return malformedError(op, err)
	}
	if err := validate(); err != nil {
		return malformedError(op, err)
	}
	return nil
}

// errorMessage pulls "message" out of a JSON error body, falling back to the raw text
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
