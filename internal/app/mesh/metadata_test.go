package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

func TestPatchApplyIdempotent(t *testing.T) {
	e := &peerEntry{rec: core.PresenceRecord{UserID: "bob", Role: domain.ParticipantRole()}}
	p := StatePatch{MicOn: boolPtr(true), HandRaised: boolPtr(true)}

	p.apply(e)
	p.apply(e)

	assert.True(t, e.micOn)
	assert.True(t, e.handRaised)
	assert.False(t, e.cameraOn)
	assert.False(t, e.presenting)
}

func TestPatchApplyOrderIndependentAcrossFields(t *testing.T) {
	mic := StatePatch{MicOn: boolPtr(true)}
	cam := StatePatch{CameraOn: boolPtr(true)}

	forward := &peerEntry{rec: core.PresenceRecord{UserID: "bob"}}
	mic.apply(forward)
	cam.apply(forward)

	reverse := &peerEntry{rec: core.PresenceRecord{UserID: "bob"}}
	cam.apply(reverse)
	mic.apply(reverse)

	assert.Equal(t, forward.micOn, reverse.micOn)
	assert.Equal(t, forward.cameraOn, reverse.cameraOn)
}

func TestPatchApplyLastWriteWinsPerField(t *testing.T) {
	e := &peerEntry{rec: core.PresenceRecord{UserID: "bob"}}

	StatePatch{MicOn: boolPtr(true)}.apply(e)
	StatePatch{MicOn: boolPtr(false)}.apply(e)

	assert.False(t, e.micOn)
}

func TestPatchLanguageOnlyForInterpreters(t *testing.T) {
	interp := &peerEntry{rec: core.PresenceRecord{UserID: "ivan", Role: domain.InterpreterRole("es")}}
	StatePatch{Language: langPtr("fr")}.apply(interp)
	assert.Equal(t, domain.LanguageCode("fr"), interp.rec.Role.Language)

	plain := &peerEntry{rec: core.PresenceRecord{UserID: "bob", Role: domain.ParticipantRole()}}
	StatePatch{Language: langPtr("fr")}.apply(plain)
	assert.Empty(t, plain.rec.Role.Language)
}
