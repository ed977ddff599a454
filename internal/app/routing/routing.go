// Package routing computes per-peer playback volumes for the two-bus mixer:
// the floor bus (original audio) and the interpreter bus (one language
// channel). Everything here is pure; each listener calls it with their own
// selection and applies the gains locally.
package routing

import (
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// Selection is what the listener tuned into: the floor, or one language
// channel.
type Selection struct {
	lang domain.LanguageCode
}

// Floor selects the original, non-interpreted audio.
func Floor() Selection { return Selection{} }

// Channel selects the interpreter channel for language l.
func Channel(l domain.LanguageCode) Selection { return Selection{lang: l} }

func (s Selection) IsFloor() bool { return s.lang == "" }

func (s Selection) Language() domain.LanguageCode { return s.lang }

func clampBalance(balance int) int {
	if balance < 0 {
		return 0
	}
	if balance > 100 {
		return 100
	}
	return balance
}

// Volume returns the playback gain in [0,1] the listener applies to peer's
// audio. balance is the interpreter/floor blend in percent: at 100 only the
// selected channel plays, at 0 only the floor.
func Volume(listener domain.UserID, peer core.RemotePeer, sel Selection, balance int) float64 {
	if peer.UserID == listener {
		return 0
	}
	balance = clampBalance(balance)

	switch peer.Role.Kind {
	case domain.RoleInterpreter:
		if sel.IsFloor() {
			return 0
		}
		if peer.Role.Language == sel.Language() {
			return float64(balance) / 100
		}
		return 0
	case domain.RoleParticipant, domain.RoleHost, domain.RoleAdmin:
		if sel.IsFloor() {
			return 1.0
		}
		return float64(100-balance) / 100
	}
	return 0
}

// Gains computes the volume for every peer in a snapshot.
func Gains(listener domain.UserID, peers []core.RemotePeer, sel Selection, balance int) map[domain.UserID]float64 {
	out := make(map[domain.UserID]float64, len(peers))
	for _, p := range peers {
		out[p.UserID] = Volume(listener, p, sel, balance)
	}
	return out
}
