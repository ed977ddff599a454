// Package rtc wraps pion PeerConnections as mesh peer links.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
)

var ErrLinkClosed = errors.New("peer link closed")

// PeerLink is one direct WebRTC connection to a remote peer. Lifecycle and
// locally generated signals are reported through the emit func as PeerEvents;
// remote signals come in through Signal. Trickle ICE: candidates are emitted
// as they gather, and candidates arriving before the remote description are
// buffered here rather than rejected.
type PeerLink struct {
	pc   *webrtc.PeerConnection
	cfg  core.LinkConfig
	emit func(core.PeerEvent)

	mu        sync.Mutex
	senders   map[core.TrackKind]*webrtc.RTPSender
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	stream    core.RemoteStream
	closed    bool
	cancel    context.CancelFunc
}

// NewPeerLink implements core.Connector.
func NewPeerLink(cfg core.LinkConfig, emit func(core.PeerEvent)) (core.MediaConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	l := &PeerLink{
		pc:      pc,
		cfg:     cfg,
		emit:    emit,
		senders: make(map[core.TrackKind]*webrtc.RTPSender),
	}

	for _, track := range cfg.LocalTracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("adding local track: %w", err)
		}
		l.senders[core.TrackKind(track.Kind().String())] = sender
	}
	if cfg.Initiator && len(cfg.LocalTracks) == 0 {
		// Observer mode: recvonly transceivers so the offer still carries
		// media sections.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("adding recvonly transceiver: %w", err)
			}
		}
	}

	return l, nil
}

func (l *PeerLink) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		ci := cand.ToJSON()
		p := core.SignalPayload{
			Kind:          core.SignalCandidate,
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		}
		l.emit(core.PeerEvent{Kind: core.PeerSignal, Signal: &p})
	})

	l.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(l.cfg.Remote)).
			Str("state", s.String()).
			Msg("peer connection state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			l.emit(core.PeerEvent{Kind: core.PeerConnected})
		case webrtc.PeerConnectionStateDisconnected:
			l.emit(core.PeerEvent{Kind: core.PeerDisconnected})
		case webrtc.PeerConnectionStateFailed:
			l.emit(core.PeerEvent{Kind: core.PeerFailed, Err: fmt.Errorf("peer connection %s failed", l.cfg.Remote)})
		case webrtc.PeerConnectionStateClosed:
			l.emit(core.PeerEvent{Kind: core.PeerClosed})
		}
	})

	l.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(l.cfg.Remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")

		l.mu.Lock()
		l.stream.ID = track.StreamID()
		l.stream.Tracks = append(l.stream.Tracks, core.RemoteTrack{
			ID:   track.ID(),
			Kind: core.TrackKind(track.Kind().String()),
		})
		snap := l.stream.Clone()
		l.mu.Unlock()

		l.emit(core.PeerEvent{Kind: core.PeerStream, Stream: &snap})
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	if l.cfg.Initiator {
		return l.sendOffer(nil)
	}
	return nil
}

// sendOffer creates and emits an SDP offer. opts carries the ICE restart
// flag.
func (l *PeerLink) sendOffer(opts *webrtc.OfferOptions) error {
	offer, err := l.pc.CreateOffer(opts)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local offer: %w", err)
	}
	p := core.SignalPayload{Kind: core.SignalOffer, SDP: offer.SDP}
	l.emit(core.PeerEvent{Kind: core.PeerSignal, Signal: &p})
	return nil
}

func (l *PeerLink) Signal(p core.SignalPayload) error {
	if l.IsClosed() {
		return ErrLinkClosed
	}
	switch p.Kind {
	case core.SignalOffer:
		return l.applyOffer(p)
	case core.SignalAnswer:
		return l.applyRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP})
	case core.SignalCandidate:
		return l.addCandidate(p)
	}
	return fmt.Errorf("unknown signal kind %q", p.Kind)
}

func (l *PeerLink) applyOffer(p core.SignalPayload) error {
	if err := l.applyRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}); err != nil {
		return err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local answer: %w", err)
	}
	out := core.SignalPayload{Kind: core.SignalAnswer, SDP: answer.SDP}
	l.emit(core.PeerEvent{Kind: core.PeerSignal, Signal: &out})
	return nil
}

func (l *PeerLink) applyRemote(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, ci := range pending {
		if err := l.pc.AddICECandidate(ci); err != nil {
			// Late or duplicate candidates are tolerated, not fatal.
			log.Debug().Err(err).Str("module", "rtc").Str("peer", string(l.cfg.Remote)).Msg("buffered candidate rejected")
		}
	}
	return nil
}

func (l *PeerLink) addCandidate(p core.SignalPayload) error {
	ci := webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	}
	l.mu.Lock()
	if !l.remoteSet {
		l.pending = append(l.pending, ci)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(ci); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("peer", string(l.cfg.Remote)).Msg("candidate rejected")
	}
	return nil
}

// ReplaceTrack swaps the outgoing track of one kind. An in-place swap on an
// existing sender never renegotiates, so the remote side's connection state
// is untouched by a device change. Attaching a kind with no sender yet
// changes the SDP and therefore re-offers once; this is the observer-upgrade
// path, not a device switch.
func (l *PeerLink) ReplaceTrack(kind core.TrackKind, track webrtc.TrackLocal) error {
	if l.IsClosed() {
		return ErrLinkClosed
	}
	l.mu.Lock()
	sender, ok := l.senders[kind]
	l.mu.Unlock()

	if !ok {
		if track == nil {
			return nil
		}
		sender, err := l.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("adding %s track: %w", kind, err)
		}
		l.mu.Lock()
		l.senders[kind] = sender
		l.mu.Unlock()
		return l.sendOffer(nil)
	}
	if err := sender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("replacing %s track: %w", kind, err)
	}
	return nil
}

// RestartICE re-offers with the ICE restart flag set. Only meaningful on a
// disconnected link.
func (l *PeerLink) RestartICE() error {
	if l.IsClosed() {
		return ErrLinkClosed
	}
	return l.sendOffer(&webrtc.OfferOptions{ICERestart: true})
}

func (l *PeerLink) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(l.cfg.Remote)).Msg("close error")
	}
}

func (l *PeerLink) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
