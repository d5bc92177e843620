package model

// PlaybackState is the normalized result of one playback-source sample.
// A nil TrackID means the source explicitly reported nothing playing.
type PlaybackState struct {
	TrackID   *string `json:"trackId"`
	IsPlaying bool    `json:"isPlaying"`
}

// Track is denormalized track metadata fetched from the playback source,
// used by viewers to render a participant's current song.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	AlbumName   string   `json:"albumName"`
	AlbumArtURL string   `json:"albumArtUrl,omitempty"`
}
