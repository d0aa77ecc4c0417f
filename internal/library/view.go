package library

import (
	"fmt"
	"slices"

	"legato/internal/search"
	"legato/pkg/models"

	"github.com/samber/lo"
)

// ViewKind selects the base song set of a navigation view
type ViewKind string

const (
	ViewAll      ViewKind = "all"
	ViewArtist   ViewKind = "artist"
	ViewAlbum    ViewKind = "album"
	ViewPlaylist ViewKind = "playlist"
)

// View names one navigable song set. Artist optionally narrows an album view
// to the songs credited to that artist.
type View struct {
	Kind   ViewKind
	Name   string
	Artist string
}

// ArtistSummary is one row of the artist listing
type ArtistSummary struct {
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
	SongCount  int    `json:"songCount"`
}

// AlbumSummary is one row of an album listing
type AlbumSummary struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	SongCount int    `json:"songCount"`
}

// ArtistView is an artist with its albums and songs
type ArtistView struct {
	Name   string         `json:"name"`
	Albums []AlbumSummary `json:"albums"`
	Songs  []models.Song  `json:"songs"`
}

// AlbumView is an album with its songs
type AlbumView struct {
	Name   string        `json:"name"`
	Artist string        `json:"artist"`
	Songs  []models.Song `json:"songs"`
}

// FilteredSongs returns the songs of view v that match query, in the view's
// order: by title for library, artist and album views, and by playlist
// position for manual playlists.
func (l *Library) FilteredSongs(v View, query string) ([]models.Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	base, err := l.viewSongs(v)
	if err != nil {
		return nil, err
	}
	return records(l.filter(base, search.Parse(query))), nil
}

func (l *Library) viewSongs(v View) ([]*Song, error) {
	switch v.Kind {
	case ViewAll, "":
		return l.songs, nil
	case ViewArtist:
		artist, ok := l.artistMap[v.Name]
		if !ok {
			return nil, &NotFoundError{Kind: "artist", Name: v.Name}
		}
		return artist.songs, nil
	case ViewAlbum:
		album, ok := l.albumMap[v.Name]
		if !ok {
			return nil, &NotFoundError{Kind: "album", Name: v.Name}
		}
		if v.Artist == "" {
			return album.songs, nil
		}
		return lo.Filter(album.songs, func(s *Song, _ int) bool {
			return slices.Contains(s.aliases, v.Artist)
		}), nil
	case ViewPlaylist:
		p, ok := l.playlistMap[v.Name]
		if !ok {
			return nil, playlistNotFound(v.Name)
		}
		if p.kind == KindAuto {
			return l.matching(p.query), nil
		}
		return p.songs, nil
	}
	return nil, fmt.Errorf("unknown view %q", v.Kind)
}

func (l *Library) filter(songs []*Song, q *search.Query) []*Song {
	if q.Empty() {
		return songs
	}
	return lo.Filter(songs, func(s *Song, _ int) bool {
		return q.Matches(searchable{song: s, playlists: l.membershipNames(s.id)})
	})
}

// matching evaluates an auto playlist query against the whole library
func (l *Library) matching(q *search.Query) []*Song {
	return l.filter(l.songs, q)
}

// Artists lists every artist by name
func (l *Library) Artists() []ArtistSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return lo.Map(l.artists, func(a *Artist, _ int) ArtistSummary {
		return ArtistSummary{Name: a.name, AlbumCount: len(a.albums), SongCount: len(a.songs)}
	})
}

// Artist returns one artist with its albums and songs
func (l *Library) Artist(name string) (ArtistView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.artistMap[name]
	if !ok {
		return ArtistView{}, &NotFoundError{Kind: "artist", Name: name}
	}
	return ArtistView{
		Name: a.name,
		Albums: lo.Map(a.albums, func(al *Album, _ int) AlbumSummary {
			return AlbumSummary{Name: al.name, Artist: al.artist, SongCount: a.albumCounts[al.name]}
		}),
		Songs: records(a.songs),
	}, nil
}

// Albums lists every album by name
func (l *Library) Albums() []AlbumSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return lo.Map(l.albums, func(al *Album, _ int) AlbumSummary {
		return AlbumSummary{Name: al.name, Artist: al.artist, SongCount: len(al.songs)}
	})
}

// Album returns one album with its songs
func (l *Library) Album(name string) (AlbumView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	al, ok := l.albumMap[name]
	if !ok {
		return AlbumView{}, &NotFoundError{Kind: "album", Name: name}
	}
	return AlbumView{Name: al.name, Artist: al.artist, Songs: records(al.songs)}, nil
}
