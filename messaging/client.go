// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gantry-foundation/gantry/lib/netutil"
	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/lib/secret"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "http://localhost:8008").
	HomeserverURL string
	// ASToken is the appservice token from the bridge's registration
	// file. It authenticates every request the bridge makes.
	ASToken string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is the bridge's connection to the Matrix homeserver. It holds
// the homeserver URL, the appservice token, and the HTTP transport,
// shared across every Intent and UserSession.
//
// The appservice token is stored in a secret.Buffer (mmap-backed,
// locked against swap, excluded from core dumps). Call Close when the
// Client is no longer needed.
type Client struct {
	baseURL    string
	asToken    *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Matrix client authenticated by an appservice token.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	// Validate the URL structure. We store the string form (with trailing
	// slash stripped) and build request URLs by direct concatenation. This
	// avoids double-encoding issues with Go's url.URL.String(), which
	// re-encodes Path even when RawPath is set if it doesn't consider
	// RawPath a valid encoding of Path.
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}

	if config.ASToken == "" {
		return nil, fmt.Errorf("messaging: ASToken is required")
	}
	asToken, err := secret.NewFromBytes([]byte(config.ASToken))
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting appservice token: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		asToken:    asToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Close releases the appservice token memory (zeros, unlocks, unmaps).
// Idempotent. Intents created from this client stop working after Close.
func (c *Client) Close() error {
	return c.asToken.Close()
}

// ServerVersions returns the Matrix protocol versions and unstable features
// supported by the homeserver. This is an unauthenticated endpoint — useful
// for checking whether the homeserver is reachable before doing real work.
func (c *Client) ServerVersions(ctx context.Context) (*ServerVersionsResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/versions", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: server versions failed: %w", err)
	}

	var response ServerVersionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse versions response: %w", err)
	}
	return &response, nil
}

// LoginSharedSecret logs a bridge user in to their own Matrix account
// using the homeserver's shared-secret auth: the password is the
// hex-encoded HMAC-SHA512 of the full user ID keyed by the shared
// secret. Returns a UserSession owning the resulting access token.
//
// The sharedSecret Buffer is read but not closed — the caller retains
// ownership.
func (c *Client) LoginSharedSecret(ctx context.Context, userID ref.UserID, sharedSecret *secret.Buffer) (*UserSession, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("messaging: user ID is required for shared-secret login")
	}
	if sharedSecret == nil {
		return nil, fmt.Errorf("messaging: shared secret is required for shared-secret login")
	}

	request := loginRequest{
		Type:                     "m.login.password",
		Identifier:               userIdentifier{Type: "m.id.user", User: userID.String()},
		Password:                 sharedSecretPassword(userID, sharedSecret),
		InitialDeviceDisplayName: "gantry",
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", nil, request)
	if err != nil {
		return nil, fmt.Errorf("messaging: shared-secret login for %q failed: %w", userID, err)
	}

	var authResponse AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}

	tokenBuffer, err := secret.NewFromBytes([]byte(authResponse.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}

	c.logger.Info("logged in bridge user",
		"user_id", authResponse.UserID,
		"device_id", authResponse.DeviceID,
	)

	return &UserSession{
		client:      c,
		accessToken: tokenBuffer,
		userID:      authResponse.UserID,
		deviceID:    authResponse.DeviceID,
	}, nil
}

// sharedSecretPassword derives the login password for a user from the
// homeserver's shared secret: hex(HMAC-SHA512(secret, user_id)). The
// homeserver's auth provider derives the same value, so no per-user
// password ever exists.
func sharedSecretPassword(userID ref.UserID, sharedSecret *secret.Buffer) string {
	mac := hmac.New(sha512.New, sharedSecret.Bytes())
	mac.Write([]byte(userID.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// doRequest performs an HTTP request to the homeserver and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns a *MatrixError.
// accessToken may be nil for unauthenticated endpoints.
// query may be nil for endpoints without query parameters.
func (c *Client) doRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query ...url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape.
	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		// Server returned non-JSON error. This should not happen with a
		// spec-compliant server, but fail loud with the raw body.
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return responseBody, &matrixErr
}

// doRequestRaw performs an HTTP request with a raw (non-JSON) body and
// returns the response body and its Content-Type. Used for media
// transfer in both directions: uploads send the media as the request
// body, downloads receive it as the response body.
func (c *Client) doRequestRaw(ctx context.Context, method, path string, accessToken *secret.Buffer, contentType string, body io.Reader, query ...url.Values) ([]byte, string, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, "", fmt.Errorf("messaging: failed to create request: %w", err)
	}

	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, "", fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, response.Header.Get("Content-Type"), nil
	}

	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		return nil, "", fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return nil, "", &matrixErr
}
