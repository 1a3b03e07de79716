package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"arkline/internal/config"
	"arkline/internal/logging"
)

// Value indexes and ownership constants used in handle records.
const (
	urlValueIndex      = 1
	adminValueIndex    = 100
	locationValueIndex = 1000

	adminPermissions = "011111110011"
	adminOwnerIndex  = 200
)

// HTTPDoer describes the HTTP client used by the registry adapter.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a Handle registry. The authenticated session is the one
// piece of shared mutable state; it is guarded by the client lock and
// treated as advisory: a stale probe triggers re-authentication, never a
// failure by itself.
type Client struct {
	baseURL     string
	prefix      string
	identity    string
	adminHandle string
	signer      *Signer
	httpClient  HTTPDoer
	logger      *slog.Logger

	mu               sync.Mutex
	sessionID        string
	serverNonce      string
	serverNonceBytes []byte
}

// NewClient constructs a registry client from explicit collaborators.
func NewClient(cfg config.Handle, signer *Signer, httpClient HTTPDoer, logger *slog.Logger) *Client {
	adminHandle := strings.TrimSpace(cfg.AdminHandle)
	identity := adminHandle
	if cfg.AdminIndex > 0 {
		identity = fmt.Sprintf("%d:%s", cfg.AdminIndex, adminHandle)
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		prefix:      strings.TrimSpace(cfg.Prefix),
		identity:    identity,
		adminHandle: adminHandle,
		signer:      signer,
		httpClient:  httpClient,
		logger:      logging.WithComponent(logger, "handle"),
	}
}

// NewConfiguredClient loads the signing key from disk and applies the
// configured request timeout.
func NewConfiguredClient(cfg config.Handle, logger *slog.Logger) (*Client, error) {
	signer, err := LoadSigner(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClient(cfg, signer, &http.Client{Timeout: timeout}, logger), nil
}

// Prefix returns the configured registry prefix.
func (c *Client) Prefix() string {
	return c.prefix
}

// Exists probes whether a candidate identifier is already registered. The
// probe needs no authenticated session.
func (c *Client) Exists(ctx context.Context, noid string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/handles/%s/%s", c.baseURL, c.prefix, noid), nil)
	if err != nil {
		return false, fmt.Errorf("build existence probe: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, registryError(fmt.Sprintf("existence probe %s/%s: %v", c.prefix, noid, err))
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// Create registers a new plain handle resolving to the given URL. Fails with
// ErrAlreadyExists when the candidate is taken.
func (c *Client) Create(ctx context.Context, noid, resolveTo string) (string, error) {
	exists, err := c.Exists(ctx, noid)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s/%s", ErrAlreadyExists, c.prefix, noid)
	}
	return c.put(ctx, noid, c.plainValues(resolveTo), "create")
}

// Update rewrites an existing plain handle's resolution target.
func (c *Client) Update(ctx context.Context, noid, resolveTo string) (string, error) {
	return c.put(ctx, noid, c.plainValues(resolveTo), "update")
}

// CreateWithLocations registers a new location-based handle whose 10320/loc
// value carries a weighted resolution list.
func (c *Client) CreateWithLocations(ctx context.Context, noid string, locations []Location) (string, error) {
	exists, err := c.Exists(ctx, noid)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s/%s", ErrAlreadyExists, c.prefix, noid)
	}
	return c.put(ctx, noid, c.locationValues(locations), "create")
}

// UpdateWithLocations rewrites an existing location-based handle.
func (c *Client) UpdateWithLocations(ctx context.Context, noid string, locations []Location) (string, error) {
	return c.put(ctx, noid, c.locationValues(locations), "update")
}

type handleValue struct {
	Index int             `json:"index"`
	Type  string          `json:"type"`
	Data  handleValueData `json:"data"`
}

type handleValueData struct {
	Format string `json:"format"`
	Value  any    `json:"value"`
}

type adminValue struct {
	Handle      string `json:"handle"`
	Index       int    `json:"index"`
	Permissions string `json:"permissions"`
}

func (c *Client) adminEntry() handleValue {
	return handleValue{
		Index: adminValueIndex,
		Type:  "HS_ADMIN",
		Data: handleValueData{
			Format: "admin",
			Value: adminValue{
				Handle:      c.adminHandle,
				Index:       adminOwnerIndex,
				Permissions: adminPermissions,
			},
		},
	}
}

func (c *Client) plainValues(resolveTo string) []handleValue {
	return []handleValue{
		{
			Index: urlValueIndex,
			Type:  "URL",
			Data:  handleValueData{Format: "string", Value: resolveTo},
		},
		c.adminEntry(),
	}
}

func (c *Client) locationValues(locations []Location) []handleValue {
	return []handleValue{
		c.adminEntry(),
		{
			Index: locationValueIndex,
			Type:  "10320/loc",
			Data:  handleValueData{Format: "string", Value: locationsXML(locations)},
		},
	}
}

// put performs the authenticated PUT for both create and update paths. The
// action only flavors the error messages.
func (c *Client) put(ctx context.Context, noid string, values []handleValue, action string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSession(ctx); err != nil {
		return "", err
	}

	header, err := c.authorizationHeader(c.sessionID, c.serverNonceBytes)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{"values": values})
	if err != nil {
		return "", fmt.Errorf("marshal handle record: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/api/handles/%s/%s", c.baseURL, c.prefix, noid),
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("build handle %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", registryError(fmt.Sprintf("%s handle %s/%s: %v", action, c.prefix, noid, err))
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RegistryError{
			UserMessage: fmt.Sprintf(
				"Could not %s handle %s/%s - please try again, and contact your admin if the issue persists.",
				action, c.prefix, noid),
			AdminMessage: fmt.Sprintf("Could not %s handle %s/%s - response: %d - %s",
				action, c.prefix, noid, resp.StatusCode, body),
		}
	}

	handleName := fmt.Sprintf("%s/%s", c.prefix, noid)
	c.logger.Info("handle written",
		logging.String("handle", handleName),
		logging.String("action", action))
	return handleName, nil
}
