// Package exchange is the client for the external analysis service: demo
// company records, precomputed matches, compatibility analysis and single
// turn Q&A. The client never retries; see RetryingAPI.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	commonhttp "circ-exchange/internal/common/http"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/metrics"
	"circ-exchange/internal/models"
)

const (
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// API is the surface shared by the client and its wrappers.
type API interface {
	Health(ctx context.Context) (*HealthStatus, error)
	DemoCompanies(ctx context.Context) ([]models.Company, error)
	Matches(ctx context.Context) ([]Match, error)
	ListParties(ctx context.Context) ([]Party, error)
	UpsertParty(ctx context.Context, p Party) (*Party, error)
	Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error)
	Ask(ctx context.Context, question string) (string, error)
	LoadSampleData(ctx context.Context) (*LoadResult, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
}

var _ API = (*Client)(nil)

// NewClient validates cfg and builds a client. A zero timeout means
// DefaultTimeout.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, apperrors.NewInvalidClientConfigError(fmt.Sprintf("timeout must not be negative, got %s", cfg.Timeout))
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return newClient(cfg.BaseURL, commonhttp.NewClient(cfg.Timeout), log)
}

// NewClientWithHTTP uses hc as the transport.
func NewClientWithHTTP(baseURL string, hc *http.Client, log logger.Logger) (*Client, error) {
	return newClient(baseURL, commonhttp.NewClientWith(hc), log)
}

func newClient(baseURL string, hc *commonhttp.Client, log logger.Logger) (*Client, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		baseURL: base,
		http:    hc,
		logger:  log.WithFields(map[string]interface{}{"component": "exchange-client"}),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.NewInvalidClientConfigError("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.NewInvalidClientConfigError(fmt.Sprintf("base URL %q: %v", raw, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.NewInvalidClientConfigError(fmt.Sprintf("base URL %q must use http or https", raw))
	}
	if u.Host == "" {
		return "", apperrors.NewInvalidClientConfigError(fmt.Sprintf("base URL %q has no host", raw))
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DemoCompanies(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	if err := c.do(ctx, http.MethodGet, PathDemoCompanies, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Matches(ctx context.Context) ([]Match, error) {
	var out []Match
	if err := c.do(ctx, http.MethodGet, PathMatches, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListParties(ctx context.Context) ([]Party, error) {
	var out []Party
	if err := c.do(ctx, http.MethodGet, PathParties, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpsertParty(ctx context.Context, p Party) (*Party, error) {
	if err := p.validate("company"); err != nil {
		return nil, err
	}
	var out Party
	if err := c.do(ctx, http.MethodPost, PathParties, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, PathAnalyze, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask sends one independent question; there is no conversation state.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.NewInvalidRequestError("question must not be empty")
	}
	var out AskResponse
	if err := c.do(ctx, http.MethodPost, PathAsk, AskRequest{Question: question}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Client) LoadSampleData(ctx context.Context) (*LoadResult, error) {
	var out LoadResult
	if err := c.do(ctx, http.MethodPost, PathLoadSampleData, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("encode %s body: %v", path, err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("build %s %s: %w", method, path, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.count(path, metrics.OutcomeTransport)
		c.logger.Warn("exchange request failed", map[string]interface{}{
			"method": method, "path": path, "error": err,
		})
		return apperrors.NewTransportError(path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("exchange response", map[string]interface{}{
		"method":    method,
		"path":      path,
		"status":    resp.StatusCode,
		"requestId": req.Header.Get(commonhttp.HeaderRequestID),
		"duration":  time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.count(path, metrics.OutcomeService)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.NewServiceError(path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if ctx.Err() != nil {
				c.count(path, metrics.OutcomeTransport)
				return apperrors.NewTransportError(path, ctx.Err())
			}
			c.count(path, metrics.OutcomeMalformed)
			return apperrors.NewMalformedResponseError(path, err)
		}
		if v, ok := out.(responseValidator); ok {
			if err := v.validate(); err != nil {
				c.count(path, metrics.OutcomeMalformed)
				return apperrors.NewMalformedResponseError(path, err)
			}
		}
	}

	c.count(path, metrics.OutcomeOK)
	return nil
}

type responseValidator interface {
	validate() error
}

func (c *Client) count(path, outcome string) {
	metrics.ExchangeRequests.WithLabelValues(path, outcome).Inc()
}
