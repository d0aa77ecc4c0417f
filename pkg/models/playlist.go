package models

// PlaylistRecord is the persisted form of a playlist. It is either a
// ManualPlaylist or an AutoPlaylist; a record never changes variant.
type PlaylistRecord interface {
	PlaylistName() string
	isPlaylistRecord()
}

// ManualPlaylist stores an explicit ordered list of song ids
type ManualPlaylist struct {
	Name  string `json:"name"`
	Songs []int  `json:"songs"`
}

// AutoPlaylist stores a search query; membership is computed on demand
type AutoPlaylist struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

func (p ManualPlaylist) PlaylistName() string { return p.Name }
func (p AutoPlaylist) PlaylistName() string   { return p.Name }

func (ManualPlaylist) isPlaylistRecord() {}
func (AutoPlaylist) isPlaylistRecord()   {}
