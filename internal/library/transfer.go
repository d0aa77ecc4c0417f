package library

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"legato/pkg/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ImportResult summarizes what an import did to each playlist
type ImportResult struct {
	Created   []string `json:"created"`
	Merged    []string `json:"merged"`
	Unchanged []string `json:"unchanged"`
	Conflicts []string `json:"conflicts"`
	Matched   int      `json:"matchedSongs"`
	Unmatched int      `json:"unmatchedSongs"`
}

type songKey struct {
	title, artist, album string
}

// ExportPlaylists builds a portable document for the named playlists, or for
// every playlist when no name is given.
func (l *Library) ExportPlaylists(names ...string) (models.ExportDocument, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	selected := l.playlists
	if len(names) > 0 {
		selected = make([]*Playlist, 0, len(names))
		for _, name := range lo.Uniq(names) {
			p, ok := l.playlistMap[name]
			if !ok {
				return models.ExportDocument{}, playlistNotFound(name)
			}
			selected = append(selected, p)
		}
	}

	doc := models.ExportDocument{
		Songs:     make(map[int]models.ExportedSong),
		Playlists: make([]models.ExportedPlaylist, 0, len(selected)),
	}
	localIDs := make(map[int]int)

	for _, p := range selected {
		if p.kind == KindAuto {
			doc.Playlists = append(doc.Playlists, models.ExportedPlaylist{Name: p.name, Query: p.query.String(), Auto: true})
			continue
		}
		ids := make([]int, 0, len(p.songs))
		for _, s := range p.songs {
			local, ok := localIDs[s.id]
			if !ok {
				local = len(localIDs) + 1
				localIDs[s.id] = local
				doc.Songs[local] = exportedSong(s)
			}
			ids = append(ids, local)
		}
		doc.Playlists = append(doc.Playlists, models.ExportedPlaylist{Name: p.name, Songs: ids})
	}
	return doc, nil
}

func exportedSong(s *Song) models.ExportedSong {
	es := models.ExportedSong{Title: s.title}
	if s.artist != models.Unknown {
		es.Artist = s.artist
	}
	if s.album != models.Unknown {
		es.Album = s.album
	}
	return es
}

// ImportPlaylistsJSON decodes an export document and imports it
func (l *Library) ImportPlaylistsJSON(r io.Reader) (ImportResult, error) {
	var doc models.ExportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return ImportResult{}, fmt.Errorf("failed to decode playlist export: %w", err)
	}
	return l.ImportPlaylists(doc)
}

// ImportPlaylists merges exported playlists into the library. Songs are
// matched by exact title, artist credit and album; unmatched songs are
// skipped. New manual playlists keep the exported order, existing ones get the
// missing songs appended. A name already used by the other playlist kind is
// reported as a conflict and left alone.
func (l *Library) ImportPlaylists(doc models.ExportDocument) (ImportResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := make(map[songKey]*Song, len(l.songs))
	for _, s := range l.songs {
		k := songKey{s.title, s.artist, s.album}
		if _, ok := index[k]; !ok {
			index[k] = s
		}
	}

	var res ImportResult
	for _, ep := range doc.Playlists {
		name, err := playlistName(ep.Name)
		if err != nil {
			continue
		}
		kind := KindManual
		if ep.Auto {
			kind = KindAuto
		}

		existing := l.playlistMap[name]
		if existing != nil && existing.kind != kind {
			res.Conflicts = append(res.Conflicts, name)
			continue
		}

		if kind == KindAuto {
			if existing != nil {
				res.Unchanged = append(res.Unchanged, name)
				continue
			}
			if _, err := l.createPlaylist(name, KindAuto, ep.Query); err != nil {
				return res, err
			}
			res.Created = append(res.Created, name)
			continue
		}

		var songs []*Song
		for _, local := range ep.Songs {
			es, ok := doc.Songs[local]
			if !ok {
				res.Unmatched++
				continue
			}
			s, ok := index[songKey{orUnknown(es.Title), orUnknown(es.Artist), orUnknown(es.Album)}]
			if !ok {
				res.Unmatched++
				continue
			}
			res.Matched++
			if !slices.Contains(songs, s) {
				songs = append(songs, s)
			}
		}

		if existing == nil {
			p := &Playlist{name: name, kind: KindManual, songs: songs}
			if err := l.store.PutPlaylist(p.record()); err != nil {
				return res, storageErr("put playlist", err)
			}
			l.insertPlaylist(p)
			res.Created = append(res.Created, name)
			continue
		}

		add := lo.Filter(songs, func(s *Song, _ int) bool { return !slices.Contains(existing.songs, s) })
		if len(add) == 0 {
			res.Unchanged = append(res.Unchanged, name)
			continue
		}
		merged := append(slices.Clone(existing.songs), add...)
		if err := l.store.PutPlaylist(manualRecord(name, merged)); err != nil {
			return res, storageErr("put playlist", err)
		}
		existing.songs = merged
		for _, s := range add {
			l.addMembership(s.id, name)
		}
		res.Merged = append(res.Merged, name)
	}

	l.logger.WithFields(logrus.Fields{
		"created":   len(res.Created),
		"merged":    len(res.Merged),
		"conflicts": len(res.Conflicts),
		"matched":   res.Matched,
		"unmatched": res.Unmatched,
	}).Info("Imported playlists")
	return res, nil
}
