package library

import "legato/internal/sorted"

// attach inserts s into its album and into every artist named by its
// aliases, creating groups as needed. The album is shared by all aliases and
// holds the song once.
func (l *Library) attach(s *Song) {
	album := l.albumMap[s.album]
	if album == nil {
		album = &Album{
			name:    s.album,
			artist:  s.aliases[0],
			members: make(map[int]struct{}),
		}
		l.albumMap[album.name] = album
		l.albums = sorted.Insert(l.albums, album, l.byAlbumName)
	}
	if _, ok := album.members[s.id]; !ok {
		album.members[s.id] = struct{}{}
		album.songs = sorted.Insert(album.songs, s, l.byTitle)
	}

	for _, name := range s.aliases {
		artist := l.artistMap[name]
		if artist == nil {
			artist = &Artist{name: name, albumCounts: make(map[string]int)}
			l.artistMap[name] = artist
			l.artists = sorted.Insert(l.artists, artist, l.byArtistName)
		}
		artist.songs = sorted.Insert(artist.songs, s, l.byTitle)
		if artist.albumCounts[album.name] == 0 {
			artist.albums = sorted.Insert(artist.albums, album, l.byAlbumName)
		}
		artist.albumCounts[album.name]++
	}
}

// detach removes s from every group it belongs to and deletes groups left
// empty. Groups that do not hold s are skipped silently.
func (l *Library) detach(s *Song) {
	for _, name := range s.aliases {
		l.detachFromArtist(s, name)
	}
	l.detachFromAlbum(s)
}

func (l *Library) detachFromArtist(s *Song, name string) {
	artist := l.artistMap[name]
	if artist == nil {
		return
	}
	var removed bool
	if artist.songs, removed = sorted.Remove(artist.songs, s, l.byTitle); !removed {
		return
	}

	if n := artist.albumCounts[s.album] - 1; n > 0 {
		artist.albumCounts[s.album] = n
	} else {
		delete(artist.albumCounts, s.album)
		if album := l.albumMap[s.album]; album != nil {
			artist.albums, _ = sorted.Remove(artist.albums, album, l.byAlbumName)
		}
	}

	if len(artist.songs) == 0 {
		delete(l.artistMap, name)
		l.artists, _ = sorted.Remove(l.artists, artist, l.byArtistName)
	}
}

func (l *Library) detachFromAlbum(s *Song) {
	album := l.albumMap[s.album]
	if album == nil {
		return
	}
	if _, ok := album.members[s.id]; !ok {
		return
	}
	delete(album.members, s.id)
	album.songs, _ = sorted.Remove(album.songs, s, l.byTitle)

	if len(album.songs) == 0 {
		delete(l.albumMap, album.name)
		l.albums, _ = sorted.Remove(l.albums, album, l.byAlbumName)
		return
	}
	if !albumCredits(album, album.artist) {
		album.artist = album.songs[0].aliases[0]
	}
}

func albumCredits(album *Album, name string) bool {
	for _, s := range album.songs {
		for _, alias := range s.aliases {
			if alias == name {
				return true
			}
		}
	}
	return false
}
