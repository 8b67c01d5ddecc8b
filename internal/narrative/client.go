// Package narrative talks to the external narrative-summary service and
// caches its answers in Redis.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// Summarizer produces a narrative for classified findings
type Summarizer interface {
	Summarize(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error)
}

// Config holds narrative service settings
type Config struct {
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DefaultConfig returns settings with the service disabled
func DefaultConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		CacheTTL: time.Hour,
	}
}

// Enabled reports whether a service URL is configured
func (c *Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Validate validates the narrative configuration
func (c *Config) Validate() error {
	if c.Enabled() && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("narrative URL must be http or https, got %q", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("narrative timeout must be positive, got %s", c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("narrative cache TTL cannot be negative")
	}
	return nil
}

// HTTPNarrator posts the request as JSON and decodes a NarrativeSummary
type HTTPNarrator struct {
	client *http.Client
	url    string
	apiKey string
	logger logger.Logger
}

// NewHTTPNarrator creates a client for the service at cfg.URL
func NewHTTPNarrator(cfg *Config) (*HTTPNarrator, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "narrative.url", nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "narrative", cfg.URL, err)
	}
	return &HTTPNarrator{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		logger: logger.GetGlobalLogger().WithComponent("narrative"),
	}, nil
}

var _ Summarizer = (*HTTPNarrator)(nil)

// Summarize implements Summarizer
func (n *HTTPNarrator) Summarize(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.InternalError(errors.CodeNarrativeFailed, "encode narrative request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.CollaboratorError(errors.CodeNarrativeFailed, "narrative", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if n.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	start := time.Now()
	resp, err := n.client.Do(httpReq)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, errors.CollaboratorError(errors.CodeNarrativeTimeout, "narrative", err)
		}
		return nil, errors.CollaboratorError(errors.CodeNarrativeFailed, "narrative", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.CollaboratorError(errors.CodeNarrativeFailed, "narrative",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var summary models.NarrativeSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, errors.CollaboratorError(errors.CodeNarrativeFailed, "narrative",
			fmt.Errorf("decode response: %w", err))
	}

	n.logger.WithFields(logger.Fields{
		"invoice_number": req.InvoiceNumber,
		"severity":       summary.Severity,
		"duration":       time.Since(start),
	}).Debug("Narrative summary received")

	return &summary, nil
}
