package wfapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `{
	"version": "1.0",
	"inputs": [{"type": "InferenceImage", "name": "image"}],
	"steps": [{"type": "Detector", "name": "detect", "images": "$inputs.image"}],
	"outputs": [{"name": "predictions", "selector": "$steps.detect.predictions"}]
}`

func envelopeBody(t *testing.T, spec string) []byte {
	t.Helper()
	config, err := json.Marshal(map[string]json.RawMessage{"specification": json.RawMessage(spec)})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{"workflow": map[string]any{"config": string(config)}})
	require.NoError(t, err)
	return body
}

func TestWorkflowSpecificationFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/my-workspace/workflows/wf-1", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Write(envelopeBody(t, sampleSpec))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, APIKey: "secret"})
	defer client.Close()

	doc, err := client.WorkflowSpecification(context.Background(), "my-workspace", "wf-1")
	require.NoError(t, err)
	require.Len(t, doc.Steps, 1)
	assert.Equal(t, "Detector", doc.Steps[0].Type)
}

func TestWorkflowSpecificationAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, APIKey: "bad"})
	defer client.Close()

	_, err := client.WorkflowSpecification(context.Background(), "ws", "wf")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestWorkflowSpecificationMalformedEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":      "<html>hello</html>",
		"no config":     `{"workflow": {}}`,
		"config broken": `{"workflow": {"config": "not-json"}}`,
		"no spec":       `{"workflow": {"config": "{}"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			client := New(Options{BaseURL: srv.URL})
			defer client.Close()

			_, err := client.WorkflowSpecification(context.Background(), "ws", "wf")
			var malformed *MalformedWorkflowResponseError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestWorkflowSpecificationCacheFallback(t *testing.T) {
	cacheDir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(envelopeBody(t, sampleSpec))
	}))
	client := New(Options{BaseURL: srv.URL, CacheDir: cacheDir})
	_, err := client.WorkflowSpecification(context.Background(), "ws", "wf")
	require.NoError(t, err)
	require.NoError(t, client.Close())
	srv.Close()

	// Same base URL, server gone: the transport error must fall back to the
	// cached copy.
	offline := New(Options{BaseURL: srv.URL, CacheDir: cacheDir})
	defer offline.Close()

	doc, err := offline.WorkflowSpecification(context.Background(), "ws", "wf")
	require.NoError(t, err)
	assert.Equal(t, "detect", doc.Steps[0].Name)
}

func TestWorkflowSpecificationCorruptCacheRemoved(t *testing.T) {
	cacheDir := t.TempDir()
	path := filepath.Join(cacheDir, "workflow_definitions", "ws_wf.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := New(Options{BaseURL: srv.URL, CacheDir: cacheDir})
	defer client.Close()

	_, err := client.WorkflowSpecification(context.Background(), "ws", "wf")
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt cache file must be removed")
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "my-workspace", sanitizeSegment("my-workspace"))
	assert.Equal(t, "a_b_c__", sanitizeSegment("a/b/c.."))
}
