package library

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"legato/pkg/models"
)

// checkIndices verifies that every index agrees with the song registry.
func checkIndices(t *testing.T, l *Library) {
	t.Helper()

	if len(l.songs) != len(l.registry) {
		t.Fatalf("song list has %d entries, registry %d", len(l.songs), len(l.registry))
	}
	if !slices.IsSortedFunc(l.songs, l.byTitle) {
		t.Error("song list not sorted by title")
	}

	for _, s := range l.songs {
		if l.registry[s.id] != s {
			t.Errorf("song %d in list is not the registry instance", s.id)
		}
		for _, alias := range s.aliases {
			artist := l.artistMap[alias]
			if artist == nil {
				t.Errorf("song %d: alias artist %q missing", s.id, alias)
				continue
			}
			if !slices.Contains(artist.songs, s) {
				t.Errorf("song %d missing from artist %q", s.id, alias)
			}
			if artist.albumCounts[s.album] == 0 {
				t.Errorf("artist %q does not count album %q", alias, s.album)
			}
		}
		album := l.albumMap[s.album]
		if album == nil {
			t.Errorf("song %d: album %q missing", s.id, s.album)
			continue
		}
		n := 0
		for _, as := range album.songs {
			if as == s {
				n++
			}
		}
		if n != 1 {
			t.Errorf("song %d listed %d times in album %q", s.id, n, s.album)
		}
	}

	if len(l.artists) != len(l.artistMap) {
		t.Errorf("artist list has %d entries, map %d", len(l.artists), len(l.artistMap))
	}
	for _, a := range l.artists {
		if len(a.songs) == 0 {
			t.Errorf("empty artist %q survived", a.name)
		}
		if !slices.IsSortedFunc(a.albums, l.byAlbumName) {
			t.Errorf("albums of %q not sorted", a.name)
		}
		total := 0
		for _, s := range a.songs {
			if !slices.Contains(s.aliases, a.name) {
				t.Errorf("artist %q holds song %d that does not credit it", a.name, s.id)
			}
		}
		for _, c := range a.albumCounts {
			total += c
		}
		if total != len(a.songs) || len(a.albumCounts) != len(a.albums) {
			t.Errorf("artist %q album counts out of sync", a.name)
		}
	}

	if len(l.albums) != len(l.albumMap) {
		t.Errorf("album list has %d entries, map %d", len(l.albums), len(l.albumMap))
	}
	for _, al := range l.albums {
		if len(al.songs) == 0 {
			t.Errorf("empty album %q survived", al.name)
		}
		if len(al.members) != len(al.songs) {
			t.Errorf("album %q membership map out of sync", al.name)
		}
		if !albumCredits(al, al.artist) {
			t.Errorf("album %q attributed to %q who has no song on it", al.name, al.artist)
		}
		for _, s := range al.songs {
			if s.album != al.name {
				t.Errorf("album %q holds song %d of album %q", al.name, s.id, s.album)
			}
		}
	}

	for _, p := range l.playlists {
		for _, s := range p.songs {
			if _, ok := l.memberships[s.id][p.name]; !ok {
				t.Errorf("membership of song %d in %q not recorded", s.id, p.name)
			}
		}
	}
	for id, names := range l.memberships {
		for name := range names {
			p := l.playlistMap[name]
			if p == nil || !slices.Contains(p.songs, l.registry[id]) {
				t.Errorf("stale membership of song %d in %q", id, name)
			}
		}
	}
}

func TestAliases(t *testing.T) {
	tests := []struct {
		credit string
		want   []string
	}{
		{"Queen", []string{"Queen"}},
		{"A, B", []string{"A, B", "A", "B"}},
		{"A,B", []string{"A,B"}},
		{"A, B,  C", []string{"A, B,  C", "A", "B", "C"}},
		{"A, A", []string{"A, A", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.credit, func(t *testing.T) {
			if got := aliasesOf(tt.credit); !slices.Equal(got, tt.want) {
				t.Errorf("aliasesOf(%q) = %q, want %q", tt.credit, got, tt.want)
			}
		})
	}
}

func TestAddSong(t *testing.T) {
	l, store, payloads := newTestLibrary(t)

	t.Run("defaults", func(t *testing.T) {
		song, err := l.AddSong(models.SongMetadata{FileName: "/music/Track 01.flac"}, []byte("x"), "audio/flac")
		if err != nil {
			t.Fatalf("AddSong failed: %v", err)
		}
		if song.Title != "Track 01" {
			t.Errorf("Expected title from file name, got %q", song.Title)
		}
		if song.Artist != models.Unknown || song.Album != models.Unknown {
			t.Errorf("Expected unknown artist and album, got %q / %q", song.Artist, song.Album)
		}
		if song.ID != 1 {
			t.Errorf("Expected first id 1, got %d", song.ID)
		}
		if _, ok := store.songs[1]; !ok {
			t.Error("Song not persisted")
		}
		if _, ok := payloads.data[1]; !ok {
			t.Error("Payload not stored")
		}
	})

	t.Run("multi artist credit", func(t *testing.T) {
		song := addSong(t, l, "Duet", "Ann, Bob", "Together")
		for _, name := range []string{"Ann, Bob", "Ann", "Bob"} {
			view, err := l.Artist(name)
			if err != nil {
				t.Fatalf("Artist(%q): %v", name, err)
			}
			if len(view.Songs) != 1 || view.Songs[0].ID != song.ID {
				t.Errorf("Artist %q songs = %v", name, view.Songs)
			}
			if len(view.Albums) != 1 || view.Albums[0].Name != "Together" {
				t.Errorf("Artist %q albums = %v", name, view.Albums)
			}
		}
		album, err := l.Album("Together")
		if err != nil {
			t.Fatal(err)
		}
		if len(album.Songs) != 1 {
			t.Errorf("Expected album to hold the song once, got %d", len(album.Songs))
		}
		if album.Artist != "Ann, Bob" {
			t.Errorf("Expected album attributed to first alias, got %q", album.Artist)
		}
	})

	t.Run("ids increase", func(t *testing.T) {
		a := addSong(t, l, "Later", "X", "Y")
		b := addSong(t, l, "Earlier", "X", "Y")
		if b.ID != a.ID+1 {
			t.Errorf("Expected consecutive ids, got %d then %d", a.ID, b.ID)
		}
	})

	t.Run("payload failure rolls back", func(t *testing.T) {
		before := l.Len()
		payloads.failPut = errInjected
		defer func() { payloads.failPut = nil }()

		_, err := l.AddSong(models.SongMetadata{Title: "Broken"}, nil, "")
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("Expected storage error, got %v", err)
		}
		if l.Len() != before {
			t.Error("Song added to memory despite payload failure")
		}
		for _, s := range store.songs {
			if s.Title == "Broken" {
				t.Error("Song record not rolled back")
			}
		}
	})

	checkIndices(t, l)
}

func TestContains(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	addSong(t, l, "Road", "Bob", "Trips")
	if _, err := l.AddSong(models.SongMetadata{FileName: "/inbox/Untitled.wav"}, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		meta models.SongMetadata
		want bool
	}{
		{"exact tags", models.SongMetadata{Title: "Road", Artist: "Bob", Album: "Trips"}, true},
		{"other album", models.SongMetadata{Title: "Road", Artist: "Bob", Album: "Live"}, false},
		{"title from file name", models.SongMetadata{FileName: "/elsewhere/Untitled.mp3"}, true},
		{"blank tags normalize", models.SongMetadata{FileName: "Untitled.flac", Artist: "  ", Album: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.Contains(tt.meta); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.meta, got, tt.want)
			}
		})
	}
}

func TestRemoveSongLeavesNoEmptyGroups(t *testing.T) {
	l, _, payloads := newTestLibrary(t)

	a := addSong(t, l, "Song1", "X", "M")
	b := addSong(t, l, "Song2", "X", "N")

	if err := l.RemoveSong(a.ID); err != nil {
		t.Fatalf("RemoveSong(A) failed: %v", err)
	}
	checkIndices(t, l)
	if _, err := l.Album("M"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected album M gone, got %v", err)
	}
	if view, err := l.Artist("X"); err != nil || len(view.Albums) != 1 {
		t.Errorf("Expected artist X with one album, got %+v, %v", view, err)
	}

	if err := l.RemoveSong(b.ID); err != nil {
		t.Fatalf("RemoveSong(B) failed: %v", err)
	}
	checkIndices(t, l)
	if n := len(l.Artists()); n != 0 {
		t.Errorf("Expected zero artists, got %d", n)
	}
	if n := len(l.Albums()); n != 0 {
		t.Errorf("Expected zero albums, got %d", n)
	}
	if len(payloads.data) != 0 {
		t.Error("Expected payloads deleted")
	}

	t.Run("unknown id", func(t *testing.T) {
		if err := l.RemoveSong(42); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})
}

func TestRemoveSongMissingPayloadIgnored(t *testing.T) {
	l, _, payloads := newTestLibrary(t)
	s := addSong(t, l, "Song", "X", "M")
	delete(payloads.data, s.ID)

	if err := l.RemoveSong(s.ID); err != nil {
		t.Fatalf("Expected missing payload to be ignored, got %v", err)
	}
}

func TestRemoveSongStoreFailureKeepsSong(t *testing.T) {
	l, store, _ := newTestLibrary(t)
	s := addSong(t, l, "Song", "X", "M")

	store.failDelete = errInjected
	if err := l.RemoveSong(s.ID); !errors.Is(err, ErrStorage) {
		t.Fatalf("Expected storage error, got %v", err)
	}
	if _, err := l.Song(s.ID); err != nil {
		t.Error("Song removed from memory although the store kept it")
	}
	checkIndices(t, l)
}

func TestSetArtistIdempotent(t *testing.T) {
	l, store, _ := newTestLibrary(t)
	s := addSong(t, l, "Song", "Ann, Bob", "M")
	puts := store.puts

	if err := l.SetArtist(s.ID, s.Artist); err != nil {
		t.Fatalf("SetArtist failed: %v", err)
	}
	if err := l.SetAlbum(s.ID, s.Album); err != nil {
		t.Fatalf("SetAlbum failed: %v", err)
	}
	if store.puts != puts {
		t.Errorf("Expected no persistence calls, got %d", store.puts-puts)
	}
	if n := len(l.Artists()); n != 3 {
		t.Errorf("Expected 3 artists untouched, got %d", n)
	}
}

func TestSetArtistMovesGroups(t *testing.T) {
	l, store, _ := newTestLibrary(t)
	s := addSong(t, l, "Song", "Ann, Bob", "M")
	addSong(t, l, "Other", "Bob", "M")

	if err := l.SetArtist(s.ID, "Cid"); err != nil {
		t.Fatalf("SetArtist failed: %v", err)
	}
	checkIndices(t, l)

	names := []string{}
	for _, a := range l.Artists() {
		names = append(names, a.Name)
	}
	if !slices.Equal(names, []string{"Bob", "Cid"}) {
		t.Errorf("Expected artists [Bob Cid], got %v", names)
	}
	if store.songs[s.ID].Artist != "Cid" {
		t.Error("New artist not persisted")
	}
	album, _ := l.Album("M")
	if album.Artist != "Bob" {
		t.Errorf("Expected album re-attributed to remaining artist Bob, got %q", album.Artist)
	}

	t.Run("store failure leaves song untouched", func(t *testing.T) {
		store.failPut = errInjected
		defer func() { store.failPut = nil }()

		if err := l.SetArtist(s.ID, "Dee"); !errors.Is(err, ErrStorage) {
			t.Fatalf("Expected storage error, got %v", err)
		}
		got, _ := l.Song(s.ID)
		if got.Artist != "Cid" {
			t.Errorf("Expected artist unchanged, got %q", got.Artist)
		}
		checkIndices(t, l)
	})
}

func TestSetAlbumAndTitle(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	a := addSong(t, l, "Alpha", "X", "M")
	addSong(t, l, "Beta", "X", "M")

	if err := l.SetAlbum(a.ID, "N"); err != nil {
		t.Fatalf("SetAlbum failed: %v", err)
	}
	if err := l.SetTitle(a.ID, "Zulu"); err != nil {
		t.Fatalf("SetTitle failed: %v", err)
	}
	checkIndices(t, l)

	songs := l.Songs()
	if songs[len(songs)-1].ID != a.ID {
		t.Errorf("Expected renamed song sorted last, got %v", songs)
	}
	view, _ := l.Artist("X")
	if len(view.Albums) != 2 {
		t.Errorf("Expected artist X to list 2 albums, got %v", view.Albums)
	}

	t.Run("blank album becomes unknown", func(t *testing.T) {
		if err := l.SetAlbum(a.ID, "  "); err != nil {
			t.Fatal(err)
		}
		got, _ := l.Song(a.ID)
		if got.Album != models.Unknown {
			t.Errorf("Expected unknown album, got %q", got.Album)
		}
	})
}

func TestBulkEdit(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	a := addSong(t, l, "A", "X", "M")
	b := addSong(t, l, "B", "Y", "N")

	album := "Compilation"
	n, err := l.BulkEdit([]int{a.ID, b.ID, 99}, Edit{Album: &album})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found for unknown id, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 songs edited before failure, got %d", n)
	}
	view, err := l.Album(album)
	if err != nil || len(view.Songs) != 2 {
		t.Errorf("Expected both songs on %q, got %+v %v", album, view, err)
	}
	checkIndices(t, l)
}

func TestRandomMutationsKeepIndicesConsistent(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	rng := rand.New(rand.NewSource(7))

	credits := []string{"A", "B", "A, B", "B, C", "C", ""}
	albums := []string{"M", "N", "O", ""}
	titles := []string{"x", "y", "z", "x"}

	var ids []int
	for step := 0; step < 300; step++ {
		switch op := rng.Intn(5); {
		case op < 2 || len(ids) == 0:
			s := addSong(t, l, titles[rng.Intn(len(titles))], credits[rng.Intn(len(credits))], albums[rng.Intn(len(albums))])
			ids = append(ids, s.ID)
		case op == 2:
			i := rng.Intn(len(ids))
			if err := l.RemoveSong(ids[i]); err != nil {
				t.Fatalf("step %d: RemoveSong: %v", step, err)
			}
			ids = slices.Delete(ids, i, i+1)
		case op == 3:
			if err := l.SetArtist(ids[rng.Intn(len(ids))], credits[rng.Intn(len(credits))]); err != nil {
				t.Fatalf("step %d: SetArtist: %v", step, err)
			}
		default:
			if err := l.SetAlbum(ids[rng.Intn(len(ids))], albums[rng.Intn(len(albums))]); err != nil {
				t.Fatalf("step %d: SetAlbum: %v", step, err)
			}
		}
		checkIndices(t, l)
		if t.Failed() {
			t.Fatalf("indices inconsistent after step %d", step)
		}
	}
}

func TestLoadAll(t *testing.T) {
	l, store, _ := newTestLibrary(t)
	store.songs[3] = models.Song{ID: 3, Title: "Gamma", Artist: "X, Y", Album: "M"}
	store.songs[7] = models.Song{ID: 7, Title: "Alpha", Artist: "X"}
	store.songs[5] = models.Song{ID: 5, Title: "Beta", Artist: "Z", Album: "M"}
	store.playlists["Mix"] = models.ManualPlaylist{Name: "Mix", Songs: []int{7, 99, 3}}
	store.playlists["Zs"] = models.AutoPlaylist{Name: "Zs", Query: "artist:z"}

	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	checkIndices(t, l)

	titles := []string{}
	for _, s := range l.Songs() {
		titles = append(titles, s.Title)
	}
	if !slices.Equal(titles, []string{"Alpha", "Beta", "Gamma"}) {
		t.Errorf("Expected title order, got %v", titles)
	}

	mix, err := l.Playlist("Mix")
	if err != nil {
		t.Fatal(err)
	}
	if len(mix.Songs) != 2 || mix.Songs[0].ID != 7 || mix.Songs[1].ID != 3 {
		t.Errorf("Expected Mix [7 3] skipping unresolved id, got %v", mix.Songs)
	}
	zs, _ := l.Playlist("Zs")
	if zs.Kind != KindAuto || len(zs.Songs) != 1 || zs.Songs[0].ID != 5 {
		t.Errorf("Expected auto playlist with song 5, got %+v", zs)
	}

	album, _ := l.Album("M")
	if len(album.Songs) != 2 {
		t.Errorf("Expected album M with 2 songs, got %d", len(album.Songs))
	}
	if s, _ := l.Song(7); s.Album != models.Unknown {
		t.Errorf("Expected missing album loaded as unknown, got %q", s.Album)
	}

	next := addSong(t, l, "New", "X", "M")
	if next.ID != 8 {
		t.Errorf("Expected next id 8, got %d", next.ID)
	}
}

func TestLoadAllResetAndRetry(t *testing.T) {
	t.Run("recovers after one failure", func(t *testing.T) {
		l, store, _ := newTestLibrary(t)
		store.songs[1] = models.Song{ID: 1, Title: "Lost"}
		store.failLoads = 1

		if err := l.LoadAll(); err != nil {
			t.Fatalf("Expected recovery, got %v", err)
		}
		if store.resets != 1 {
			t.Errorf("Expected one reset, got %d", store.resets)
		}
		if l.Len() != 0 {
			t.Errorf("Expected empty library after reset, got %d songs", l.Len())
		}
	})

	t.Run("second failure surfaces", func(t *testing.T) {
		l, store, _ := newTestLibrary(t)
		store.failLoads = 2

		err := l.LoadAll()
		var se *StorageError
		if !errors.As(err, &se) {
			t.Fatalf("Expected *StorageError, got %v", err)
		}
		if store.resets != 1 {
			t.Errorf("Expected exactly one reset, got %d", store.resets)
		}
	})
}

func TestClear(t *testing.T) {
	l, store, payloads := newTestLibrary(t)
	s := addSong(t, l, "Song", "X", "M")
	if err := l.AddSongToPlaylist(s.ID, "P"); err != nil {
		t.Fatal(err)
	}

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if l.Len() != 0 || len(l.Artists()) != 0 || len(l.Playlists()) != 0 {
		t.Error("Expected every index empty")
	}
	if len(store.songs) != 0 || len(payloads.data) != 0 {
		t.Error("Expected store and payloads emptied")
	}
	if next := addSong(t, l, "After", "X", "M"); next.ID <= s.ID {
		t.Errorf("Expected ids not to be reused, got %d", next.ID)
	}
}
