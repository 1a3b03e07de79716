// Package arkmint talks to the lightweight ARK minter service: mint a new
// ARK under the configured NAAN and shoulder, update descriptive fields, and
// fetch details for an existing ARK.
package arkmint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"arkline/internal/config"
	"arkline/internal/logging"
)

// HTTPDoer describes the HTTP client used by the minter adapter.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin adapter over the minter's Bearer-authenticated JSON API.
type Client struct {
	baseURL    string
	naan       string
	shoulder   string
	token      string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// NewClient constructs a minter client from explicit collaborators.
func NewClient(cfg config.Ark, httpClient HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		naan:       strings.TrimSpace(cfg.NAAN),
		shoulder:   strings.TrimSpace(cfg.Shoulder),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		logger:     logging.WithComponent(logger, "arkmint"),
	}
}

// NewConfiguredClient applies the configured request timeout.
func NewConfiguredClient(cfg config.Ark, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClient(cfg, &http.Client{Timeout: timeout}, logger)
}

// Mint registers a new ARK carrying the given descriptive fields and returns
// the minted identifier.
func (c *Client) Mint(ctx context.Context, details map[string]string) (string, error) {
	body := map[string]string{
		"naan":     c.naan,
		"shoulder": c.shoulder,
	}
	for key, value := range details {
		body[key] = value
	}

	var minted struct {
		ARK string `json:"ark"`
	}
	if err := c.do(ctx, http.MethodPost, "/mint", body, &minted); err != nil {
		return "", err
	}
	if minted.ARK == "" {
		return "", fmt.Errorf("minter returned no ark")
	}
	c.logger.Info("ark minted", logging.String("ark", minted.ARK))
	return minted.ARK, nil
}

// Update rewrites the descriptive fields of an existing ARK.
func (c *Client) Update(ctx context.Context, ark string, details map[string]string) error {
	body := map[string]string{"ark": ark}
	for key, value := range details {
		body[key] = value
	}
	return c.do(ctx, http.MethodPut, "/update", body, nil)
}

// Details fetches the stored fields for an ARK resolver URL.
func (c *Client) Details(ctx context.Context, arkURL string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arkURL+"?json", nil)
	if err != nil {
		return nil, fmt.Errorf("build details request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ark details: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ark details returned %d", resp.StatusCode)
	}
	var details map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decode ark details: %w", err)
	}
	return details, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal minter request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build minter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("minter %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("minter %s %s returned %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode minter response: %w", err)
		}
	}
	return nil
}
