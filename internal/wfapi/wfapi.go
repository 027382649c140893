// Package wfapi fetches workflow documents from the registry API. Fetched
// documents are cached on disk so a workflow keeps running across registry
// outages; the cache is consulted only when the API is unreachable, never to
// skip a fetch.
package wfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/schema"
)

// DefaultBaseURL is the public registry endpoint.
const DefaultBaseURL = "https://api.roboflow.com"

// APIError reports a non-2xx registry response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry responded with status %d: %s", e.StatusCode, e.Body)
}

// MalformedWorkflowResponseError reports a 2xx registry response whose body
// does not carry a workflow document.
type MalformedWorkflowResponseError struct {
	Reason string
}

func (e *MalformedWorkflowResponseError) Error() string {
	return "malformed workflow response: " + e.Reason
}

// Options configures a registry client.
type Options struct {
	// BaseURL overrides the registry endpoint. Empty means DefaultBaseURL.
	BaseURL string
	// APIKey authenticates every request.
	APIKey string
	// CacheDir is the root of the on-disk definition cache. Empty disables
	// caching.
	CacheDir string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
}

// Client fetches workflow documents from the registry.
type Client struct {
	http   *resty.Client
	apiKey string
	cache  *definitionCache
}

// New builds a registry client.
func New(opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := resty.New().SetBaseURL(base)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	var cache *definitionCache
	if opts.CacheDir != "" {
		cache = &definitionCache{dir: opts.CacheDir}
	}
	return &Client{http: httpClient, apiKey: opts.APIKey, cache: cache}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// envelope is the registry's response shape: the workflow config is a JSON
// document serialized into a string field.
type envelope struct {
	Workflow struct {
		Config string `json:"config"`
	} `json:"workflow"`
}

// WorkflowSpecification fetches, parses and validates the named workflow's
// document. On a transport failure it falls back to the last cached copy;
// API-level errors (bad key, unknown workflow) are returned as-is.
func (c *Client) WorkflowSpecification(ctx context.Context, workspace, workflowID string) (*schema.Document, error) {
	logger := ctxlog.FromContext(ctx)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		SetPathParam("workspace", workspace).
		SetPathParam("workflow", workflowID).
		Get("/{workspace}/workflows/{workflow}")
	if err != nil {
		if c.cache == nil {
			return nil, fmt.Errorf("fetching workflow %s/%s: %w", workspace, workflowID, err)
		}
		logger.Warn("Registry unreachable, falling back to cached definition.",
			"workspace", workspace, "workflow", workflowID, "error", err)
		doc, cacheErr := c.cache.load(workspace, workflowID)
		if cacheErr != nil {
			return nil, fmt.Errorf("fetching workflow %s/%s: %w (cache fallback: %v)", workspace, workflowID, err, cacheErr)
		}
		return doc, nil
	}
	if res.IsError() {
		return nil, &APIError{StatusCode: res.StatusCode(), Body: res.String()}
	}

	spec, err := decodeEnvelope(res.Bytes())
	if err != nil {
		return nil, err
	}
	doc, err := schema.Parse(spec)
	if err != nil {
		return nil, &MalformedWorkflowResponseError{Reason: err.Error()}
	}
	if c.cache != nil {
		if err := c.cache.store(workspace, workflowID, spec); err != nil {
			logger.Warn("Failed to cache workflow definition.", "workspace", workspace, "workflow", workflowID, "error", err)
		}
	}
	return doc, nil
}

// decodeEnvelope unwraps the doubly-encoded response down to the raw
// specification document.
func decodeEnvelope(body []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedWorkflowResponseError{Reason: "response is not a JSON object: " + err.Error()}
	}
	if env.Workflow.Config == "" {
		return nil, &MalformedWorkflowResponseError{Reason: "response carries no workflow config"}
	}
	var config struct {
		Specification json.RawMessage `json:"specification"`
	}
	if err := json.Unmarshal([]byte(env.Workflow.Config), &config); err != nil {
		return nil, &MalformedWorkflowResponseError{Reason: "workflow config is not valid JSON: " + err.Error()}
	}
	if len(config.Specification) == 0 {
		return nil, &MalformedWorkflowResponseError{Reason: "workflow config carries no specification"}
	}
	return config.Specification, nil
}
