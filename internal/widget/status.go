package widget

import (
	"context"
	"errors"
)

// ErrUnknownRoom is returned when a provider has no status for a room.
var ErrUnknownRoom = errors.New("unknown room")

// Status is the playback state of one room.
type Status struct {
	Transport string `json:"transport" yaml:"transport" toml:"transport"`
	Title     string `json:"title" yaml:"title" toml:"title"`
	Artist    string `json:"artist" yaml:"artist" toml:"artist"`
	Album     string `json:"album" yaml:"album" toml:"album"`
	ImageSrc  string `json:"img_src" yaml:"img_src" toml:"img_src"`
	// Channel names the station when playing radio; radio has no artwork.
	Channel string `json:"channel" yaml:"channel" toml:"channel"`
}

// Normalize applies the radio fallback: without artwork the channel becomes
// the title and artist/album are cleared.
func (s Status) Normalize() Status {
	if s.ImageSrc != "" {
		return s
	}
	if s.Channel != "" {
		s.Title = s.Channel
	}
	s.Artist = ""
	s.Album = ""
	return s
}

// Provider looks up the status of a named room.
type Provider interface {
	Status(ctx context.Context, name string) (*Status, error)
}
