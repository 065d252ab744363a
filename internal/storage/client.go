package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Uploader is the storage collaborator for quiz cover and question media.
// The core only keeps the returned content IDs.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, contentID string) ([]byte, error)
}

// HTTPClient uploads media to the storage network over its HTTP gateway and
// caches fetched content with a TTL. Concurrent fetches of the same ID are
// collapsed through singleflight.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedContent
}

type cachedContent struct {
	data      []byte
	expiresAt time.Time
}

func NewHTTPClient(baseURL string, timeout, cacheTTL time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		ttl:     cacheTTL,
		clock:   time.Now,
		cache:   make(map[string]cachedContent),
	}
}

func (c *HTTPClient) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/content", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	var out struct {
		ContentID string `json:"contentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return out.ContentID, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[contentID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.data, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(contentID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[contentID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.data, nil
		}
		c.mu.RUnlock()

		data, err := c.fetchRemote(ctx, contentID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[contentID] = cachedContent{data: data, expiresAt: now.Add(c.ttl)}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *HTTPClient) fetchRemote(ctx context.Context, contentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/content/"+contentID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("content %s not found", contentID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
