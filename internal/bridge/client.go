package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"autosms-dashboard/backend/pkg/config"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/resilience"
	"autosms-dashboard/backend/pkg/secrets"
)

// apiKeySecret is the secrets-manager key for the dispatch service credential
const apiKeySecret = "instagram-api-key"

// Client talks to the remote messaging dispatch and OAuth initiation
// services. Both are opaque HTTP collaborators: this client never sees
// Instagram itself, only the bridge endpoints.
type Client struct {
	httpClient *http.Client
	apiURL     string
	connectURL string
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// SendResult is the dispatch service's response to a human-agent send
type SendResult struct {
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}

// bridgeError is the error body returned on non-2xx responses
type bridgeError struct {
	Error string `json:"error"`
}

// NewClient creates a bridge client from the application configuration
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Bridge.Timeout},
		apiURL:     cfg.Bridge.InstagramAPIURL,
		connectURL: cfg.Bridge.ConnectURL,
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultConfig("instagram-bridge"), log),
		log:        log,
	}
}

// SendHumanAgent delivers a human-agent message through the dispatch service.
// A non-2xx response or transport error comes back as a BRIDGE_FAILURE.
func (c *Client) SendHumanAgent(ctx context.Context, chatID, recipientPSID, message string) (*SendResult, error) {
	payload := map[string]string{
		"chatId":        chatID,
		"recipientPsid": recipientPSID,
		"message":       message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/messages/human-agent", c.apiURL)

	var result SendResult
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create send request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if key := secrets.GetSecretWithDefault(ctx, apiKeySecret, ""); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return decodeBridgeError(resp)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			// Delivery already succeeded; the caller falls back to a
			// locally generated message id.
			c.log.Warn("Failed to decode send response", "error", err.Error())
		}
		return nil
	})

	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.NewBridgeFailureError("Failed to send message", err.Error())
	}

	return &result, nil
}

// InstagramAuthURL asks the OAuth initiation service for the URL that starts
// the account connect flow for a profile
func (c *Client) InstagramAuthURL(ctx context.Context, profileID string) (string, error) {
	endpoint := fmt.Sprintf("%s/auth/instagram?profileId=%s", c.connectURL, url.QueryEscape(profileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create connect request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewBridgeFailureError("Failed to reach connect service", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeBridgeError(resp)
	}

	var result struct {
		AuthURL string `json:"authUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode connect response: %w", err)
	}
	if result.AuthURL == "" {
		return "", errors.NewBridgeFailureError("Connect service returned no auth URL", nil)
	}

	return result.AuthURL, nil
}

// BreakerState reports the send circuit's current state for health checks
func (c *Client) BreakerState() string {
	return string(c.breaker.GetState())
}

// decodeBridgeError turns a non-2xx bridge response into a BRIDGE_FAILURE
func decodeBridgeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var be bridgeError
	if err := json.Unmarshal(body, &be); err == nil && be.Error != "" {
		return errors.NewBridgeFailureError(be.Error, map[string]int{"status": resp.StatusCode})
	}

	return errors.NewBridgeFailureError(
		fmt.Sprintf("bridge returned status %d", resp.StatusCode),
		string(body),
	)
}
