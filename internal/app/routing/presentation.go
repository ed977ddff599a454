package routing

import (
	"fmt"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// Tile is a renderable video surface derived from one peer. A presentation
// tile is a projection over the peer's extra video track; it never exists in
// the registry.
type Tile struct {
	ID           string
	UserID       domain.UserID
	TrackID      string
	Presentation bool
}

// PresentationTileID derives the view identity for a peer's screen-share
// surface.
func PresentationTileID(id domain.UserID) string {
	return fmt.Sprintf("%s-presentation", id)
}

// Tiles projects a peer snapshot into its view tiles: the camera tile, plus
// a presentation tile when the peer carries more than one video track.
// Computed statelessly on every call so there is a single source of truth
// for the identity.
func Tiles(peer core.RemotePeer) []Tile {
	var video []core.RemoteTrack
	for _, t := range peer.Stream.Tracks {
		if t.Kind == core.TrackVideo {
			video = append(video, t)
		}
	}

	tiles := []Tile{{
		ID:     string(peer.UserID),
		UserID: peer.UserID,
	}}
	if len(video) > 0 {
		tiles[0].TrackID = video[0].ID
	}
	if len(video) > 1 {
		tiles = append(tiles, Tile{
			ID:           PresentationTileID(peer.UserID),
			UserID:       peer.UserID,
			TrackID:      video[len(video)-1].ID,
			Presentation: true,
		})
	}
	return tiles
}
