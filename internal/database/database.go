package database

import (
	"database/sql"
	"fmt"
	"time"

	"legato/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	kindManual = "manual"
	kindAuto   = "auto"
)

// Database is the SQLite-backed song and playlist store. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe; each put
// and delete runs in its own transaction.
type Database struct {
	conn   *sql.DB
	path   string
	logger *logrus.Logger

	// Prepared statements for the hot write paths
	putSongStmt            *sql.Stmt
	deleteSongStmt         *sql.Stmt
	putPlaylistStmt        *sql.Stmt
	clearPlaylistStmt      *sql.Stmt
	insertPlaylistSongStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. Caller should Close() it
// when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with few connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA auto_vacuum=INCREMENTAL;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		path:   dbPath,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT NOT NULL,
		duration INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL DEFAULT 'manual',
		query TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	// song_id carries no foreign key: the library drops a song from its
	// playlists before deleting it, and stale ids are skipped on load.
	playlistSongsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_name TEXT NOT NULL,
		song_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (playlist_name) REFERENCES playlists(name) ON DELETE CASCADE ON UPDATE CASCADE,
		PRIMARY KEY (playlist_name, song_id)
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);",
		"CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist);",
		"CREATE INDEX IF NOT EXISTS idx_songs_album ON songs(album);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_position ON playlist_songs(playlist_name, position);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_song ON playlist_songs(song_id);",
	}

	for _, table := range []string{songsTable, playlistsTable, playlistSongsTable} {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}
	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// is idempotent.
func (db *Database) runMigrations() error {
	migrations := []struct {
		table, column, ddl string
	}{
		// Databases created before query playlists existed
		{"playlists", "kind", "ALTER TABLE playlists ADD COLUMN kind TEXT NOT NULL DEFAULT 'manual'"},
		{"playlists", "query", "ALTER TABLE playlists ADD COLUMN query TEXT"},
		{"songs", "duration", "ALTER TABLE songs ADD COLUMN duration INTEGER DEFAULT 0"},
	}

	for _, m := range migrations {
		exists, err := db.columnExists(m.table, m.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.conn.Exec(m.ddl); err != nil {
			return err
		}
		db.logger.WithFields(logrus.Fields{"table": m.table, "column": m.column}).Info("Added missing column")
	}
	return nil
}

func (db *Database) columnExists(table, column string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?`, table, column).Scan(&exists)
	return exists, err
}

func (db *Database) prepareStatements() error {
	var err error

	db.putSongStmt, err = db.conn.Prepare(`
		INSERT INTO songs (id, title, artist, album, duration)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration = excluded.duration`)
	if err != nil {
		return fmt.Errorf("failed to prepare put song statement: %w", err)
	}

	db.deleteSongStmt, err = db.conn.Prepare(`DELETE FROM songs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete song statement: %w", err)
	}

	db.putPlaylistStmt, err = db.conn.Prepare(`
		INSERT INTO playlists (name, kind, query)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind,
			query = excluded.query`)
	if err != nil {
		return fmt.Errorf("failed to prepare put playlist statement: %w", err)
	}

	db.clearPlaylistStmt, err = db.conn.Prepare(`DELETE FROM playlist_songs WHERE playlist_name = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare clear playlist statement: %w", err)
	}

	db.insertPlaylistSongStmt, err = db.conn.Prepare(`
		INSERT INTO playlist_songs (playlist_name, song_id, position)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert playlist song statement: %w", err)
	}

	return nil
}

// withTx runs fn in a transaction, committing on success
func (db *Database) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}
	return tx.Commit()
}

// GetAllSongs returns every song ordered by id
func (db *Database) GetAllSongs() ([]models.Song, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, artist, album, COALESCE(duration, 0)
		FROM songs
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		var s models.Song
		if err := rows.Scan(&s.ID, &s.Title, &s.Artist, &s.Album, &s.Duration); err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// PutSong inserts a song or replaces the record with the same id
func (db *Database) PutSong(song models.Song) error {
	err := db.withTx(func(tx *sql.Tx) error {
		_, err := tx.Stmt(db.putSongStmt).Exec(song.ID, song.Title, song.Artist, song.Album, song.Duration)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithField("song_id", song.ID).Error("Failed to put song")
	}
	return err
}

// DeleteSong removes a song and any playlist entries still pointing at it
func (db *Database) DeleteSong(id int) error {
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE song_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Stmt(db.deleteSongStmt).Exec(id)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to delete song")
	}
	return err
}

// GetAllPlaylists returns every playlist record ordered by name. Manual
// playlists carry their song ids in stored order.
func (db *Database) GetAllPlaylists() ([]models.PlaylistRecord, error) {
	rows, err := db.conn.Query(`
		SELECT p.name, p.kind, COALESCE(p.query, ''), ps.song_id
		FROM playlists p
		LEFT JOIN playlist_songs ps ON ps.playlist_name = p.name
		ORDER BY p.name, ps.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		records []models.PlaylistRecord
		current *models.ManualPlaylist
	)
	flush := func() {
		if current != nil {
			records = append(records, *current)
			current = nil
		}
	}

	for rows.Next() {
		var (
			name, kind, query string
			songID            sql.NullInt64
		)
		if err := rows.Scan(&name, &kind, &query, &songID); err != nil {
			return nil, err
		}

		if kind == kindAuto {
			flush()
			records = append(records, models.AutoPlaylist{Name: name, Query: query})
			continue
		}
		if current == nil || current.Name != name {
			flush()
			current = &models.ManualPlaylist{Name: name, Songs: []int{}}
		}
		if songID.Valid {
			current.Songs = append(current.Songs, int(songID.Int64))
		}
	}
	flush()
	return records, rows.Err()
}

// PutPlaylist writes a playlist record, replacing the stored song list of a
// manual playlist.
func (db *Database) PutPlaylist(rec models.PlaylistRecord) error {
	err := db.withTx(func(tx *sql.Tx) error {
		name := rec.PlaylistName()
		switch p := rec.(type) {
		case models.AutoPlaylist:
			if _, err := tx.Stmt(db.putPlaylistStmt).Exec(name, kindAuto, p.Query); err != nil {
				return err
			}
			_, err := tx.Stmt(db.clearPlaylistStmt).Exec(name)
			return err
		case models.ManualPlaylist:
			if _, err := tx.Stmt(db.putPlaylistStmt).Exec(name, kindManual, nil); err != nil {
				return err
			}
			if _, err := tx.Stmt(db.clearPlaylistStmt).Exec(name); err != nil {
				return err
			}
			insert := tx.Stmt(db.insertPlaylistSongStmt)
			for pos, id := range p.Songs {
				if _, err := insert.Exec(name, id, pos); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("unsupported playlist record %T", rec)
	})
	if err != nil {
		db.logger.WithError(err).WithField("playlist", rec.PlaylistName()).Error("Failed to put playlist")
	}
	return err
}

// DeletePlaylist removes a playlist and its song list
func (db *Database) DeletePlaylist(name string) error {
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Stmt(db.clearPlaylistStmt).Exec(name); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM playlists WHERE name = ?`, name)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithField("playlist", name).Error("Failed to delete playlist")
	}
	return err
}

// Reset drops every table and recreates the empty schema
func (db *Database) Reset() error {
	err := db.withTx(func(tx *sql.Tx) error {
		for _, table := range []string{"playlist_songs", "playlists", "songs"} {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := db.createTables(); err != nil {
		return fmt.Errorf("failed to recreate tables: %w", err)
	}
	db.logger.WithField("db_path", db.path).Warn("Database reset")
	return nil
}

// CountSongs returns the number of stored songs
func (db *Database) CountSongs() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM songs").Scan(&n)
	return n, err
}

// Ping checks that the database is reachable
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.putSongStmt,
		db.deleteSongStmt,
		db.putPlaylistStmt,
		db.clearPlaylistStmt,
		db.insertPlaylistSongStmt,
	}
	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Warn("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
