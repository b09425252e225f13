package scripture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"biblestudy/internal/domain"
)

// LookupResult is the outcome of resolving a reference against the external
// Bible text source.
type LookupResult struct {
	Valid       bool
	Text        string
	Translation string
}

// Client resolves scripture references to verse text. Implementations return
// domain.ErrVerseNotFound for references the source does not know; any other
// error is an API failure and must not be cached.
type Client interface {
	Lookup(ctx context.Context, reference, translation string) (*LookupResult, error)
}

const httpDefaultTimeout = 15 * time.Second

// HTTPClient talks to a bible-api.com style endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOptions configures the scripture lookup client.
type HTTPOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://bible-api.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: httpDefaultTimeout}
	}
	return &HTTPClient{baseURL: baseURL, client: client}
}

type lookupResponse struct {
	Reference       string `json:"reference"`
	Text            string `json:"text"`
	TranslationID   string `json:"translation_id"`
	TranslationName string `json:"translation_name"`
	Error           string `json:"error"`
}

// Lookup fetches the verse text for a reference.
func (c *HTTPClient) Lookup(ctx context.Context, reference, translation string) (*LookupResult, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(reference)
	if translation != "" {
		endpoint += "?translation=" + url.QueryEscape(translation)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup verse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrVerseNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scripture api status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	if payload.Error != "" || strings.TrimSpace(payload.Text) == "" {
		return nil, domain.ErrVerseNotFound
	}

	tr := payload.TranslationID
	if tr == "" {
		tr = translation
	}
	return &LookupResult{Valid: true, Text: strings.TrimSpace(payload.Text), Translation: tr}, nil
}
