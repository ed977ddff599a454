// Package ice resolves the ICE server list for peer links. Discovery never
// fails: any problem falls back to a fixed public STUN list silently, so a
// room join is never blocked on ICE config.
package ice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const fetchTimeout = 5 * time.Second

// DefaultServers is the fallback STUN list.
func DefaultServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}
}

type iceConfigResponse struct {
	ICEServers []struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username,omitempty"`
		Credential string   `json:"credential,omitempty"`
	} `json:"iceServers"`
}

// Discoverer fetches /ice-config from the signaling backend.
type Discoverer struct {
	URL    string
	Client *http.Client
}

func NewDiscoverer(url string) *Discoverer {
	return &Discoverer{
		URL:    url,
		Client: &http.Client{Timeout: fetchTimeout},
	}
}

// Discover returns the configured ICE servers, or the default STUN list on
// any failure: network error, bad status, malformed body, empty list. The
// fallback is logged at debug only and never surfaced.
func (d *Discoverer) Discover(ctx context.Context) []webrtc.ICEServer {
	servers, err := d.fetch(ctx)
	if err != nil {
		log.Debug().Err(err).Str("module", "ice").Msg("ice discovery failed, using default STUN list")
		return DefaultServers()
	}
	return servers
}

func (d *Discoverer) fetch(ctx context.Context) ([]webrtc.ICEServer, error) {
	if d.URL == "" {
		return nil, fmt.Errorf("no ice config url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ice config status %d", resp.StatusCode)
	}
	var body iceConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding ice config: %w", err)
	}
	if len(body.ICEServers) == 0 {
		return nil, fmt.Errorf("empty ice server list")
	}

	servers := make([]webrtc.ICEServer, 0, len(body.ICEServers))
	for _, s := range body.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers, nil
}
