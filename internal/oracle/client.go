// Package oracle implements the client for the external visibility scoring
// service. The oracle runs probes against AI platforms and exposes the
// aggregated intelligence reads (platform visibility, opportunities,
// competitive analysis, coverage health) once a probe completes.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/beaivisible/discovery-engine/internal/config"
	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/pkg/httpretry"
)

// Client is the scoring-oracle API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new oracle API client.
func NewClient(cfg config.OracleConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the oracle API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oracle API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// ========== Probe Control ==========

// StartProbe dispatches a visibility probe and returns its job handle.
func (c *Client) StartProbe(ctx context.Context, req ProbeRequest) (string, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/probes", req)
	if err != nil {
		return "", err
	}

	var response startProbeResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if response.JobHandle == "" {
		return "", fmt.Errorf("oracle returned empty job handle")
	}

	return response.JobHandle, nil
}

// GetProbeStatus retrieves the current state of a dispatched probe.
func (c *Client) GetProbeStatus(ctx context.Context, handle string) (*ProbeStatus, error) {
	endpoint := fmt.Sprintf("/api/probes/%s", url.PathEscape(handle))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var status ProbeStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &status, nil
}

// ========== Intelligence Reads ==========

// PlatformVisibility returns the per-platform visibility score map for a
// completed probe. Platforms without a score are absent from the map.
func (c *Client) PlatformVisibility(ctx context.Context, handle string) (map[string]float64, error) {
	endpoint := fmt.Sprintf("/api/probes/%s/platform-visibility", url.PathEscape(handle))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response platformVisibilityResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return response.Platforms, nil
}

// Opportunities returns the ranked content-gap opportunities for a
// completed probe, ordered by priority tier then descending impact score.
func (c *Client) Opportunities(ctx context.Context, handle string, limit int) ([]domain.Opportunity, error) {
	endpoint := fmt.Sprintf("/api/probes/%s/opportunities", url.PathEscape(handle))
	if limit > 0 {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		endpoint = endpoint + "?" + params.Encode()
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response opportunitiesResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]domain.Opportunity, 0, len(response.Items))
	for _, item := range response.Items {
		out = append(out, domain.Opportunity{
			Topic:       item.Topic,
			Description: item.Description,
			Priority:    domain.OpportunityPriority(item.Priority),
			ImpactScore: item.ImpactScore,
		})
	}
	SortOpportunities(out)

	return out, nil
}

// CompetitiveAnalysis returns the competitor ranking for a completed
// probe, ordered by rank.
func (c *Client) CompetitiveAnalysis(ctx context.Context, handle string) ([]domain.CompetitorRank, error) {
	endpoint := fmt.Sprintf("/api/probes/%s/competitive-analysis", url.PathEscape(handle))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response competitiveResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]domain.CompetitorRank, 0, len(response.Competitors))
	for _, item := range response.Competitors {
		out = append(out, domain.CompetitorRank{
			Domain:          item.Domain,
			VisibilityScore: item.VisibilityScore,
			Rank:            item.Rank,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	return out, nil
}

// CoverageHealth returns the overall topic-coverage health score (0-100)
// for a completed probe.
func (c *Client) CoverageHealth(ctx context.Context, handle string) (float64, error) {
	endpoint := fmt.Sprintf("/api/probes/%s/coverage-health", url.PathEscape(handle))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	var response coverageHealthResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return response.HealthScore, nil
}

// SortOpportunities orders opportunities HIGH before MEDIUM before LOW,
// ties broken by descending impact score.
func SortOpportunities(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].Priority.Rank() != opps[j].Priority.Rank() {
			return opps[i].Priority.Rank() < opps[j].Priority.Rank()
		}
		return opps[i].ImpactScore > opps[j].ImpactScore
	})
}
