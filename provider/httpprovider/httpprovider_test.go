package httpprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-artinet-project/router"
)

func TestDoDecodesBareConnectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req router.ConnectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(router.ConnectResponse{
			Message: router.Message{Role: router.RoleAssistant, Content: "hi"},
		})
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL})
	resp, err := p(context.Background(), router.ConnectRequest{Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Message.Content)
}

func TestDoDecodesEnvelopedConnectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"body": router.ConnectResponse{Message: router.Message{Content: "wrapped"}},
		})
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL})
	resp, err := p(context.Background(), router.ConnectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "wrapped", resp.Message.Content)
}

func TestDoSurfacesStatusErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, MaxRetries: 0})
	_, err := p(context.Background(), router.ConnectRequest{})

	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad request")
}

func TestDoSendsAuthHeaderWhenConfigured(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(router.ConnectResponse{})
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, AuthHeader: "Authorization", AuthToken: "Bearer xyz"})
	_, err := p(context.Background(), router.ConnectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer xyz", gotHeader)
}

func TestDoWithoutURLErrors(t *testing.T) {
	t.Setenv("ARTINET_API_URL", "")
	p := New(Config{})
	_, err := p(context.Background(), router.ConnectRequest{})
	assert.Error(t, err)
}
