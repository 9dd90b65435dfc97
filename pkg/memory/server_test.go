package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	store := openTestStore(t, keywordEmbedder{})
	srv := httptest.NewServer(NewServer(store))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, 0, 1, 5*time.Second)
}

func TestServer_Health(t *testing.T) {
	srv, client := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "service": "memory-api"}, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	assert.NoError(t, client.Health(context.Background()))
}

func TestServer_ClientRoundTrip(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	saved, err := client.Save(ctx, "The user's favorite color is blue", "")
	require.NoError(t, err)
	assert.Equal(t, "general", saved.Category)
	assert.True(t, saved.HasEmbedding)

	results, err := client.Search(ctx, "What color does the user like?", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, saved.ID, results[0].ID)

	list, err := client.List(ctx, "general", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, client.Delete(ctx, saved.ID))
	assert.ErrorIs(t, client.Delete(ctx, saved.ID), ErrNotFound)
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		detail string
	}{
		{"search without q", http.MethodGet, "/memories/search", "", http.StatusBadRequest, "Query parameter 'q' is required"},
		{"delete missing", http.MethodDelete, "/memories/42", "", http.StatusNotFound, "Memory not found"},
		{"delete bad id", http.MethodDelete, "/memories/abc", "", http.StatusUnprocessableEntity, "id must be an integer"},
		{"create bad json", http.MethodPost, "/memories", "{", http.StatusUnprocessableEntity, "invalid request body"},
		{"create empty content", http.MethodPost, "/memories", `{"content":""}`, http.StatusBadRequest, "content is required"},
		{"bad limit", http.MethodGet, "/memories?limit=-1", "", http.StatusUnprocessableEntity, "limit must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.detail, body["detail"])
		})
	}
}

func TestServer_SearchPost(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "name is Alex", "personal")
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/memories/search", "application/json", strings.NewReader(`{"query":"my name"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body searchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "my name", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "name is Alex", body.Results[0].Content)
}
