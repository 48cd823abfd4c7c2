package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Resolver yields the base address of the prediction service.
type Resolver interface {
	BaseURL(ctx context.Context) (string, error)
}

// StaticResolver always returns the configured address.
type StaticResolver string

func (s StaticResolver) BaseURL(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", fmt.Errorf("prediction base url is empty")
	}
	return strings.TrimRight(string(s), "/"), nil
}

// Envelope is the service's {success, data, error} acknowledgement.
type Envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Client struct {
	resolver Resolver
	httpc    *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

func NewClient(resolver Resolver, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		resolver: resolver,
		httpc:    &http.Client{Timeout: timeout},
		timeout:  timeout,
		logger:   logger,
	}
}

// Do performs a single attempt. On success it returns the service's data object
// untouched; otherwise a *ServiceError or *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (map[string]any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return nil, &TransportError{Op: "resolve", Err: err}
	}
	url := base + req.Endpoint

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &TransportError{Op: "build", Err: err}
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.logger.Warn("prediction request failed",
			zap.String("task", string(req.Kind)),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	c.logger.Debug("prediction response",
		zap.String("task", string(req.Kind)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: "status", Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Op: "decode", Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = GenericFailureMessage
		}
		return nil, &ServiceError{Message: msg}
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	return env.Data, nil
}

// Ping probes the service root.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return &TransportError{Op: "resolve", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return &TransportError{Op: "build", Err: err}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "status", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
