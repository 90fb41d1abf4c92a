package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reelvault/reelvault/internal/biz"
	"github.com/reelvault/reelvault/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const packMembersCacheTTL = 5 * time.Minute

var errCatalogNotFound = errors.New("not found")

type catalogClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	data       *Data
	log        *log.Helper
}

// NewCatalogClient creates the client for the external catalog collaborator.
// Pack membership changes rarely, so member lists are cached in Redis.
func NewCatalogClient(c *conf.Catalog, data *Data, logger log.Logger) biz.CatalogClient {
	return &catalogClient{
		client: &http.Client{
			Timeout: c.Timeout.AsDuration(),
		},
		baseURL:    c.Url,
		apiKey:     c.ApiKey,
		maxRetries: int(c.MaxRetries),
		data:       data,
		log:        log.NewHelper(logger),
	}
}

func (c *catalogClient) AssetExists(ctx context.Context, assetID string) (bool, error) {
	err := c.withRetry(ctx, fmt.Sprintf("asset %s", assetID), func() error {
		return c.head(ctx, fmt.Sprintf("%s/assets/%s", c.baseURL, assetID))
	})
	if errors.Is(err, errCatalogNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *catalogClient) PackMembers(ctx context.Context, packID string) ([]string, error) {
	// Try cache first if Redis is available
	cacheKey := fmt.Sprintf("catalog:pack:%s", packID)
	if c.data.rdb != nil {
		cached, err := c.data.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var members []string
			if err := json.Unmarshal([]byte(cached), &members); err == nil {
				c.log.Debugf("cache hit for pack members: %s", packID)
				return members, nil
			}
		}
	}

	var members []string
	err := c.withRetry(ctx, fmt.Sprintf("pack %s", packID), func() error {
		var err error
		members, err = c.fetchPackMembers(ctx, packID)
		return err
	})
	if errors.Is(err, errCatalogNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Cache result if Redis is available
	if c.data.rdb != nil {
		if data, err := json.Marshal(members); err == nil {
			c.data.rdb.Set(ctx, cacheKey, data, packMembersCacheTTL)
		}
	}

	return members, nil
}

// withRetry runs fn with exponential backoff. 404 is a definite answer, not
// a transient failure, so it is never retried.
func (c *catalogClient) withRetry(ctx context.Context, what string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.log.Infof("retrying catalog request for %s, attempt %d/%d", what, attempt, c.maxRetries)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, errCatalogNotFound) {
			return err
		}
	}
	c.log.Warnf("catalog request for %s failed after %d attempts: %v", what, c.maxRetries+1, lastErr)
	return lastErr
}

func (c *catalogClient) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return errCatalogNotFound
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func (c *catalogClient) fetchPackMembers(ctx context.Context, packID string) ([]string, error) {
	url := fmt.Sprintf("%s/packs/%s/members", c.baseURL, packID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errCatalogNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response struct {
		AssetIDs []string `json:"assetIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response.AssetIDs, nil
}
