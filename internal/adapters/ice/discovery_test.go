package ice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *Discoverer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewDiscoverer(srv.URL)
}

func TestDiscoverConfiguredServers(t *testing.T) {
	d := serve(t, http.StatusOK, `{
		"iceServers": [
			{"urls": ["stun:stun.example.com:3478"]},
			{"urls": ["turn:turn.example.com:3478"], "username": "u", "credential": "secret"}
		]
	}`)

	servers := d.Discover(context.Background())
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "secret", servers[1].Credential)
}

func TestDiscoverFallsBackOnBadStatus(t *testing.T) {
	d := serve(t, http.StatusInternalServerError, "boom")
	assert.Equal(t, DefaultServers(), d.Discover(context.Background()))
}

func TestDiscoverFallsBackOnMalformedBody(t *testing.T) {
	d := serve(t, http.StatusOK, "{not json")
	assert.Equal(t, DefaultServers(), d.Discover(context.Background()))
}

func TestDiscoverFallsBackOnEmptyList(t *testing.T) {
	d := serve(t, http.StatusOK, `{"iceServers": []}`)
	assert.Equal(t, DefaultServers(), d.Discover(context.Background()))
}

func TestDiscoverFallsBackOnUnreachableBackend(t *testing.T) {
	d := NewDiscoverer("http://127.0.0.1:1/ice-config")
	assert.Equal(t, DefaultServers(), d.Discover(context.Background()))
}

func TestDiscoverFallsBackWithoutURL(t *testing.T) {
	d := NewDiscoverer("")
	assert.Equal(t, DefaultServers(), d.Discover(context.Background()))
}
