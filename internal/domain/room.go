package domain

type RoomID string

// Room is read-only context for the mesh: the coordinator never mutates it.
type Room struct {
	ID        RoomID
	HostID    UserID
	Languages []LanguageCode
}

func (r Room) AllowsLanguage(l LanguageCode) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, allowed := range r.Languages {
		if allowed == l {
			return true
		}
	}
	return false
}
