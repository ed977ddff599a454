package mesh

import (
	"github.com/dkeye/Babel/internal/domain"
)

// StatePatch carries ephemeral attribute changes between peers. Nil fields
// are absent; merging is last-write-wins per field, so applying the same
// patch twice, or two patches out of order touching different fields, always
// converges. No acks or retries: a later change or presence re-announce
// self-heals a lost patch.
type StatePatch struct {
	MicOn      *bool                `json:"micOn,omitempty"`
	CameraOn   *bool                `json:"cameraOn,omitempty"`
	HandRaised *bool                `json:"handRaised,omitempty"`
	Presenting *bool                `json:"presenting,omitempty"`
	Language   *domain.LanguageCode `json:"language,omitempty"`
}

// StateMsg is the wire shape of a metadata broadcast.
type StateMsg struct {
	From  domain.UserID `json:"from"`
	Patch StatePatch    `json:"patch"`
}

// apply merges a patch into a registry entry field by field. Idempotent and
// order-independent across distinct fields.
func (p StatePatch) apply(e *peerEntry) {
	if p.MicOn != nil {
		e.micOn = *p.MicOn
	}
	if p.CameraOn != nil {
		e.cameraOn = *p.CameraOn
	}
	if p.HandRaised != nil {
		e.handRaised = *p.HandRaised
	}
	if p.Presenting != nil {
		e.presenting = *p.Presenting
	}
	if p.Language != nil && e.rec.Role.IsInterpreter() {
		e.rec.Role.Language = *p.Language
	}
}

func boolPtr(v bool) *bool { return &v }

func langPtr(l domain.LanguageCode) *domain.LanguageCode { return &l }
