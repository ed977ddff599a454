package mesh

import (
	"context"

	"github.com/dkeye/Babel/internal/app/routing"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// SwitchDevice acquires a track from the requested device and swaps it into
// every open peer link in place. Swapping an already-sent kind never
// renegotiates, so remote connection states do not flicker; attaching a kind
// this side was not sending (the observer upgrade) re-offers on each link.
// The previous track is stopped only after every link points at the new one.
func (c *Coordinator) SwitchDevice(ctx context.Context, kind core.TrackKind, deviceID string) error {
	next, err := c.deps.Devices.AcquireTrack(ctx, kind, deviceID)
	if err != nil {
		return err
	}

	var swapErr error
	ok := c.call(func() {
		if !c.joined {
			swapErr = ErrNotJoined
			return
		}
		if c.local == nil {
			// Switching a device while in observer mode upgrades us to a
			// sending participant.
			c.local = &core.LocalStream{}
			c.observer = false
		}
		var old *core.LocalTrack
		switch kind {
		case core.TrackAudio:
			old, c.local.Audio = c.local.Audio, next
		case core.TrackVideo:
			old, c.local.Video = c.local.Video, next
		}
		for id, e := range c.reg.entries {
			if e.link == nil || e.link.IsClosed() {
				continue
			}
			if err := e.link.ReplaceTrack(kind, next.Track); err != nil {
				// One bad link never blocks the switch for the others.
				log.Error().Err(err).
					Str("module", "mesh").
					Str("peer", string(id)).
					Str("kind", string(kind)).
					Msg("replacing track")
			}
		}
		if old != nil && old.Stop != nil {
			old.Stop()
		}
		log.Info().Str("module", "mesh").Str("kind", string(kind)).Str("device", deviceID).Msg("device switched")
	})
	if swapErr != nil || !ok {
		if next.Stop != nil {
			next.Stop()
		}
		if swapErr != nil {
			return swapErr
		}
		return ErrLeft
	}
	return nil
}

func (c *Coordinator) SetMicOn(on bool) {
	c.post(func() {
		if c.micOn == on {
			return
		}
		c.micOn = on
		c.broadcastPatch(StatePatch{MicOn: boolPtr(on)})
	})
}

func (c *Coordinator) SetCameraOn(on bool) {
	c.post(func() {
		if c.cameraOn == on {
			return
		}
		c.cameraOn = on
		c.broadcastPatch(StatePatch{CameraOn: boolPtr(on)})
	})
}

func (c *Coordinator) SetHandRaised(raised bool) {
	c.post(func() {
		if c.handRaised == raised {
			return
		}
		c.handRaised = raised
		c.broadcastPatch(StatePatch{HandRaised: boolPtr(raised)})
	})
}

func (c *Coordinator) SetPresenting(on bool) {
	c.post(func() {
		if c.presenting == on {
			return
		}
		c.presenting = on
		c.broadcastPatch(StatePatch{Presenting: boolPtr(on)})
	})
}

// SetLanguage switches the channel an interpreter broadcasts on. Ignored for
// non-interpreter roles and for languages the room does not allow.
func (c *Coordinator) SetLanguage(l domain.LanguageCode) {
	c.post(func() {
		if !c.identity.Role.IsInterpreter() {
			log.Warn().Str("module", "mesh").Msg("SetLanguage on non-interpreter role")
			return
		}
		if !c.room.AllowsLanguage(l) {
			log.Warn().Str("module", "mesh").Str("language", string(l)).Msg("language not allowed in room")
			return
		}
		if c.identity.Role.Language == l {
			return
		}
		c.identity.Role.Language = l
		c.broadcastPatch(StatePatch{Language: langPtr(l)})
	})
}

// Gains computes playback volumes for the current registry under the given
// listener selection. Pure per call: two listeners with different selections
// never share state.
func (c *Coordinator) Gains(sel routing.Selection, balance int) map[domain.UserID]float64 {
	var out map[domain.UserID]float64
	c.call(func() {
		out = routing.Gains(c.identity.UserID, c.reg.snapshot(c.room.HostID), sel, balance)
	})
	return out
}
