package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clustereye/clustereye/pkg/metrics"
	"github.com/clustereye/clustereye/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SchedulerClient talks to the GPU scheduler's REST API. Authentication uses
// the client-credentials flow; the bearer token is cached and refreshed
// shortly before expiry.
type SchedulerClient struct {
	host         string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type ClientConfig struct {
	Host         string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

func NewSchedulerClient(config ClientConfig) *SchedulerClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SchedulerClient{
		host:         strings.TrimSuffix(config.Host, "/"),
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type workloadsResponse struct {
	Workloads []types.Workload `json:"workloads"`
}

// ListWorkloads returns every workload the credentials can see, optionally
// filtered to one project.
func (c *SchedulerClient) ListWorkloads(ctx context.Context, project string) ([]types.Workload, error) {
	var result workloadsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/api/v1/workloads", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list workloads: %w", err)
	}

	if project == "" {
		return result.Workloads, nil
	}

	filtered := make([]types.Workload, 0, len(result.Workloads))
	for _, w := range result.Workloads {
		if w.Project == project {
			filtered = append(filtered, w)
		}
	}
	return filtered, nil
}

func (c *SchedulerClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SchedulerAPIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	}()

	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	fullURL := c.host + endpoint
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// bearerToken returns a cached token, refreshing it when less than a minute
// of validity remains.
func (c *SchedulerClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grantType": "app_token",
		"AppId":     c.clientID,
		"AppSecret": c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = token.AccessToken
	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 900
	}
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)

	return c.token, nil
}
