package cloud

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

	"github.com/latoulicious/rpsync/pkg/logging"
)

// HTTPClient is a Gateway talking to the REST API served by NewHandler
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logging.Logger
}

// NewHTTPClient creates a client for baseURL (e.g. https://host/api).
// An empty token sends no Authorization header
func NewHTTPClient(baseURL, token string, timeout time.Duration, logger logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.WithPipeline("gateway"),
	}
}

var _ Gateway = (*HTTPClient)(nil)

// ListProfiles fetches GET /profiles
func (c *HTTPClient) ListProfiles(ctx context.Context) ([]CloudProfile, error) {
	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/profiles", nil, &out); err != nil {
		return nil, err
	}
	if out.Profiles == nil {
		out.Profiles = []CloudProfile{}
	}
	return out.Profiles, nil
}

// GetProfile fetches GET /profiles/{id}
func (c *HTTPClient) GetProfile(ctx context.Context, id string) (*CloudProfile, error) {
	var out CloudProfile
	if err := c.do(ctx, http.MethodGet, profilePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProfile sends POST /profiles
func (c *HTTPClient) CreateProfile(ctx context.Context, data ProfileData) (*CloudProfile, error) {
	var out CloudProfile
	if err := c.do(ctx, http.MethodPost, "/profiles", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile sends PUT /profiles/{id}. The server keys the update by id,
// not by data.ID
func (c *HTTPClient) UpdateProfile(ctx context.Context, id string, data ProfileData) (*CloudProfile, error) {
	var out CloudProfile
	if err := c.do(ctx, http.MethodPut, profilePath(id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProfile sends DELETE /profiles/{id}
func (c *HTTPClient) DeleteProfile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, profilePath(id), nil, nil)
}

// GetVersions fetches the stored history, newest first
func (c *HTTPClient) GetVersions(ctx context.Context, id string) ([]ProfileVersion, error) {
	var out versionsResponse
	if err := c.do(ctx, http.MethodGet, profilePath(id)+"/versions", nil, &out); err != nil {
		return nil, err
	}
	if out.Versions == nil {
		out.Versions = []ProfileVersion{}
	}
	return out.Versions, nil
}

// Rollback sends POST /profiles/{id}/rollback
func (c *HTTPClient) Rollback(ctx context.Context, id string, version int) (*CloudProfile, error) {
	var out CloudProfile
	if err := c.do(ctx, http.MethodPost, profilePath(id)+"/rollback", rollbackRequest{Version: version}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func profilePath(id string) string {
	return "/profiles/" + url.PathEscape(id)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Gateway request", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
