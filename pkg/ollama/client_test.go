package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestLocateFaces(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "llava",
			"message": map[string]any{
				"role":    "assistant",
				"content": `{"faces":[{"confidence":0.9,"box":{"x":0.4,"y":0.2,"w":0.2,"h":0.25}},{"confidence":0.6,"box":{"x":0.7,"y":0.3,"w":0.1,"h":0.1}}]}`,
			},
			"done": true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	faces, err := c.LocateFaces(context.Background(), "llava", "find faces", "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, faces.Faces, 2)
	assert.InDelta(t, 0.4, faces.Faces[0].Box.X, 1e-9)

	assert.Equal(t, "llava", req["model"])
	assert.NotNil(t, req["format"])
}

func TestLocateFacesBadBase64(t *testing.T) {
	c, err := NewClient("http://localhost:1")
	require.NoError(t, err)

	_, err = c.LocateFaces(context.Background(), "m", "p", "%%%")
	assert.Error(t, err)
}
