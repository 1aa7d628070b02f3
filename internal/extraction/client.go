package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/docuscan/docuscan/internal/entity"
)

// Config for the extraction service client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // http client timeout

	// RetryAttempts is the total number of attempts per call; 1 means no
	// retry. Only transport failures are retried.
	RetryAttempts  uint
	RetryBaseDelay time.Duration
}

// Client calls the remote OCR/AI extraction service over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client with sane defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// envelope is the wire shape of an extraction response.
type envelope struct {
	Success          bool              `json:"success"`
	ExtractedData    map[string]string `json:"extracted_data"`
	ConfidenceScore  float64           `json:"confidence_score"`
	ScanID           string            `json:"scan_id"`
	ValidationErrors map[string]string `json:"validation_errors"`
	DetectedType     string            `json:"detected_type"`
	Error            string            `json:"error"`
}

// Extract sends one document for extraction. Failures come back as *Error
// with the kind set; the caller maps any failure to a failed item.
func (c *Client) Extract(ctx context.Context, req Request) (*Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("extract.call.start",
		"req_id", rid,
		"template_key", req.TemplateKey,
		"org_id", req.OrgID,
		"filename", req.Filename,
		"image_bytes", len(req.Image),
	)

	body := map[string]any{
		"image_base64":    base64.StdEncoding.EncodeToString(req.Image),
		"template_key":    req.TemplateKey,
		"organization_id": req.OrgID,
		"filename":        req.Filename,
	}

	var result *Result
	err := retry.Do(
		func() error {
			var attemptErr error
			result, attemptErr = c.extractOnce(ctx, rid, body)
			return attemptErr
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.Delay(c.cfg.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var xe *Error
			return errors.As(err, &xe) && xe.Kind == KindTransport
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("extract.call.retry", "req_id", rid, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		c.logger.Error("extract.call.failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("extract.call.ok",
		"req_id", rid,
		"scan_id", result.ScanID,
		"confidence", result.ConfidenceScore,
		"detected_type", result.DetectedType,
		"fields", len(result.ExtractedData),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (c *Client) extractOnce(ctx context.Context, rid string, body map[string]any) (*Result, error) {
	raw, status, err := c.post(ctx, "/extract", body)
	if err != nil {
		if status > 0 {
			return nil, &Error{
				Kind:    KindService,
				Message: fmt.Sprintf("service returned status %d: %s", status, snippet(raw)),
				Cause:   err,
			}
		}
		return nil, &Error{Kind: KindTransport, Message: "could not reach extraction service", Cause: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "unparsable response body", Cause: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "service reported failure without detail"
		}
		return nil, &Error{Kind: KindService, Message: msg}
	}
	if err := validateJSONAgainstSchema(successEnvelopeSchema(), raw); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "response violates envelope schema", Cause: err}
	}

	return &Result{
		ExtractedData:    env.ExtractedData,
		ConfidenceScore:  env.ConfidenceScore,
		ScanID:           env.ScanID,
		ValidationErrors: env.ValidationErrors,
		DetectedType:     env.DetectedType,
	}, nil
}

// ListTemplates fetches the template catalogue, used once at batch start.
func (c *Client) ListTemplates(ctx context.Context) ([]entity.Template, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/templates"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "could not reach extraction service", Cause: err}
	}
	defer c.closeBody(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &Error{
			Kind:    KindService,
			Message: fmt.Sprintf("template listing returned status %d: %s", resp.StatusCode, snippet(raw)),
		}
	}

	var out struct {
		Templates []entity.Template `json:"templates"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "unparsable template listing", Cause: err}
	}
	return out.Templates, nil
}

// post sends JSON and returns the raw body. A non-2xx status comes back as an
// error alongside the status code so the caller can classify it.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer c.closeBody(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Warn("extract.http.response_body_close_error", "error", err)
	}
}

func snippet(raw []byte) string {
	const max = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
