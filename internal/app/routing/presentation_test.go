package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

func TestTilesCameraOnly(t *testing.T) {
	p := core.RemotePeer{
		UserID: "bob",
		Stream: core.RemoteStream{Tracks: []core.RemoteTrack{
			{ID: "mic", Kind: core.TrackAudio},
			{ID: "cam", Kind: core.TrackVideo},
		}},
	}

	tiles := Tiles(p)
	require.Len(t, tiles, 1)
	assert.Equal(t, "bob", tiles[0].ID)
	assert.Equal(t, "cam", tiles[0].TrackID)
	assert.False(t, tiles[0].Presentation)
}

func TestTilesWithPresentation(t *testing.T) {
	p := core.RemotePeer{
		UserID: "bob",
		Stream: core.RemoteStream{Tracks: []core.RemoteTrack{
			{ID: "cam", Kind: core.TrackVideo},
			{ID: "screen", Kind: core.TrackVideo},
		}},
	}

	tiles := Tiles(p)
	require.Len(t, tiles, 2)
	assert.Equal(t, "bob", tiles[0].ID)
	assert.Equal(t, "cam", tiles[0].TrackID)
	assert.Equal(t, "bob-presentation", tiles[1].ID)
	assert.Equal(t, "screen", tiles[1].TrackID)
	assert.True(t, tiles[1].Presentation)

	assert.Equal(t, PresentationTileID(domain.UserID("bob")), tiles[1].ID)
}

func TestTilesNoVideo(t *testing.T) {
	p := core.RemotePeer{UserID: "bob"}

	tiles := Tiles(p)
	require.Len(t, tiles, 1)
	assert.Empty(t, tiles[0].TrackID)
}
