package models

import (
	"encoding/json"
	"fmt"
)

// ExportDocument is the portable playlist export format. Song ids inside the
// document are local to it and carry no meaning in any library.
type ExportDocument struct {
	Songs     map[int]ExportedSong `json:"songs"`
	Playlists []ExportedPlaylist   `json:"playlists"`
}

// ExportedSong identifies a song by its tags
type ExportedSong struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// ExportedPlaylist is either {name, songs} or {name, query}
type ExportedPlaylist struct {
	Name  string
	Songs []int
	Query string
	Auto  bool
}

type exportedPlaylistJSON struct {
	Name  string  `json:"name"`
	Songs []int   `json:"songs,omitempty"`
	Query *string `json:"query,omitempty"`
}

func (p ExportedPlaylist) MarshalJSON() ([]byte, error) {
	if p.Auto {
		query := p.Query
		return json.Marshal(exportedPlaylistJSON{Name: p.Name, Query: &query})
	}
	songs := p.Songs
	if songs == nil {
		songs = []int{}
	}
	return json.Marshal(struct {
		Name  string `json:"name"`
		Songs []int  `json:"songs"`
	}{p.Name, songs})
}

func (p *ExportedPlaylist) UnmarshalJSON(data []byte) error {
	var raw exportedPlaylistJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("playlist entry without a name")
	}
	*p = ExportedPlaylist{Name: raw.Name, Songs: raw.Songs}
	if raw.Query != nil {
		p.Auto = true
		p.Query = *raw.Query
		p.Songs = nil
	}
	return nil
}
