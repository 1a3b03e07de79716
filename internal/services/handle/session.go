package handle

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	Nonce     string `json:"nonce"`
}

// sessionActive probes the cached session. A negative result is not an
// error; the caller re-authenticates. Transport failures surface as
// RegistryError so callers never crash on a dead registry.
func (c *Client) sessionActive(ctx context.Context) (bool, error) {
	if c.sessionID == "" || c.serverNonce == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions/this", nil)
	if err != nil {
		return false, fmt.Errorf("build session probe: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Handle sessionId=%q", c.sessionID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, registryError(fmt.Sprintf("session probe: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}
	var probe sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil {
		return false, nil
	}
	return probe.SessionID == c.sessionID && probe.Nonce == c.serverNonce, nil
}

// authenticate establishes a fresh signed session: obtain a session id and
// server nonce, then confirm the session with a signed challenge response.
func (c *Client) authenticate(ctx context.Context) error {
	sessionsURL := c.baseURL + "/api/sessions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionsURL, nil)
	if err != nil {
		return fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Handle version=0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return registryError(fmt.Sprintf("open session: %v", err))
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return registryError(fmt.Sprintf("read session response: %v", readErr))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RegistryError{
			UserMessage:  "Could not authenticate at handle server. Please try again later, and contact your admin if the issue persists.",
			AdminMessage: fmt.Sprintf("Session could not be opened: %d - %s", resp.StatusCode, body),
		}
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return registryError(fmt.Sprintf("decode session response: %v", err))
	}
	serverNonceBytes, err := base64.StdEncoding.DecodeString(session.Nonce)
	if err != nil {
		return registryError(fmt.Sprintf("decode server nonce: %v", err))
	}

	header, err := c.authorizationHeader(session.SessionID, serverNonceBytes)
	if err != nil {
		return err
	}

	confirm, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionsURL+"/this", bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("build session confirm: %w", err)
	}
	confirm.Header.Set("Content-Type", "application/json")
	confirm.Header.Set("Authorization", header)

	confirmResp, err := c.httpClient.Do(confirm)
	if err != nil {
		return registryError(fmt.Sprintf("confirm session: %v", err))
	}
	confirmBody, _ := io.ReadAll(confirmResp.Body)
	confirmResp.Body.Close()
	if confirmResp.StatusCode < 200 || confirmResp.StatusCode >= 300 {
		return &RegistryError{
			UserMessage:  "Could not authenticate at handle server. Please try again later, and contact your admin if the issue persists.",
			AdminMessage: fmt.Sprintf("Session could not be established: %d - %s", confirmResp.StatusCode, confirmBody),
		}
	}

	c.sessionID = session.SessionID
	c.serverNonce = session.Nonce
	c.serverNonceBytes = serverNonceBytes
	return nil
}

// authorizationHeader builds the signed Handle authorization header with a
// fresh client nonce for each request.
func (c *Client) authorizationHeader(sessionID string, serverNonceBytes []byte) (string, error) {
	clientNonce := make([]byte, 16)
	if _, err := rand.Read(clientNonce); err != nil {
		return "", fmt.Errorf("generate client nonce: %w", err)
	}
	signature, err := c.signer.Sign(serverNonceBytes, clientNonce)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`Handle sessionId="%s", cnonce="%s", id="%s", type="HS_PUBKEY", alg="SHA256", signature="%s"`,
		sessionID,
		base64.StdEncoding.EncodeToString(clientNonce),
		c.identity,
		base64.StdEncoding.EncodeToString(signature),
	), nil
}

// ensureSession reuses the cached session when the liveness probe accepts
// it, otherwise re-authenticates exactly once. Callers hold the client lock.
func (c *Client) ensureSession(ctx context.Context) error {
	active, err := c.sessionActive(ctx)
	if err != nil {
		return err
	}
	if active {
		return nil
	}
	return c.authenticate(ctx)
}
