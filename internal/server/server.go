package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"legato/internal/config"
	"legato/internal/coverart"
	"legato/internal/library"
	"legato/internal/metadata"
	"legato/internal/payload"
	"legato/internal/player"
	"legato/internal/queue"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const (
	// how often the queue is checked for finished songs
	playerPollInterval = 500 * time.Millisecond
	maxUploadSize      = 512 << 20
	maxImportSize      = 32 << 20
)

// HealthChecker is the database as seen by the health endpoint
type HealthChecker interface {
	Ping() error
	CountSongs() (int, error)
}

// Dependencies are the components the server exposes over HTTP. CoverArt
// is optional.
type Dependencies struct {
	Library   *library.Library
	Database  HealthChecker
	Payloads  *payload.Store
	Extractor *metadata.Extractor
	Queue     *queue.Queue
	Player    *player.StateManager
	CoverArt  *coverart.Client
}

// MusicServer serves the library, the playback queue and song payloads
type MusicServer struct {
	config      *config.Config
	logger      *logrus.Logger
	library     *library.Library
	db          HealthChecker
	payloads    *payload.Store
	extractor   *metadata.Extractor
	queue       *queue.Queue
	playerState *player.StateManager
	coverArt    *coverart.Client
	watcher     *fsnotify.Watcher
	ingesting   sync.Map
	httpServer  *http.Server
	startedAt   time.Time
}

// NewMusicServer creates a new music server instance
func NewMusicServer(cfg *config.Config, deps Dependencies, logger *logrus.Logger) (*MusicServer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	switch {
	case deps.Library == nil:
		return nil, fmt.Errorf("library is required")
	case deps.Payloads == nil:
		return nil, fmt.Errorf("payload store is required")
	case deps.Queue == nil:
		return nil, fmt.Errorf("queue is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = metadata.NewExtractor(cfg.Inbox.SupportedFormats, logger)
	}
	if deps.Player == nil {
		deps.Player = player.NewStateManager(logger)
	}

	ms := &MusicServer{
		config:      cfg,
		logger:      logger,
		library:     deps.Library,
		db:          deps.Database,
		payloads:    deps.Payloads,
		extractor:   deps.Extractor,
		queue:       deps.Queue,
		playerState: deps.Player,
		coverArt:    deps.CoverArt,
		startedAt:   time.Now(),
	}
	ms.httpServer = &http.Server{
		Addr:        cfg.GetAddress(),
		Handler:     ms.Handler(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}
	return ms, nil
}

// Handler returns the routed handler wrapped in the middleware chain
func (ms *MusicServer) Handler() http.Handler {
	mux := http.NewServeMux()
	ms.setupRoutes(mux)

	var handler http.Handler = mux
	handler = ms.corsMiddleware(handler)
	handler = ms.requestLoggingMiddleware(handler)
	handler = ms.requestIDMiddleware(handler)
	handler = ms.panicRecoveryMiddleware(handler)
	return handler
}

func (ms *MusicServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", ms.handleHome)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(ms.config.Server.StaticDir))))
	mux.HandleFunc("GET /health", ms.handleHealthCheck)

	// Library
	mux.HandleFunc("GET /api/songs", ms.handleGetSongs)
	mux.HandleFunc("POST /api/songs", ms.handleUploadSong)
	mux.HandleFunc("POST /api/songs/bulk", ms.handleBulkEdit)
	mux.HandleFunc("GET /api/songs/{id}", ms.handleGetSong)
	mux.HandleFunc("PATCH /api/songs/{id}", ms.handleEditSong)
	mux.HandleFunc("DELETE /api/songs/{id}", ms.handleDeleteSong)
	mux.HandleFunc("GET /api/songs/{id}/playlists", ms.handleGetSongPlaylists)
	mux.HandleFunc("GET /api/artists", ms.handleGetArtists)
	mux.HandleFunc("GET /api/artists/{name}", ms.handleGetArtist)
	mux.HandleFunc("GET /api/albums", ms.handleGetAlbums)
	mux.HandleFunc("GET /api/albums/{name}", ms.handleGetAlbum)
	mux.HandleFunc("GET /api/albumart", ms.handleAlbumArt)
	mux.HandleFunc("GET /stream/{id}", ms.handleStreamSong)

	// Playlists
	mux.HandleFunc("GET /api/playlists", ms.handleGetPlaylists)
	mux.HandleFunc("POST /api/playlists", ms.handleCreatePlaylist)
	mux.HandleFunc("GET /api/playlists/{name}", ms.handleGetPlaylist)
	mux.HandleFunc("PUT /api/playlists/{name}", ms.handleUpdatePlaylist)
	mux.HandleFunc("DELETE /api/playlists/{name}", ms.handleDeletePlaylist)
	mux.HandleFunc("POST /api/playlists/{name}/songs", ms.handleAddSongToPlaylist)
	mux.HandleFunc("DELETE /api/playlists/{name}/songs/{id}", ms.handleRemoveSongFromPlaylist)
	mux.HandleFunc("POST /api/playlists/{name}/move", ms.handleMovePlaylistSong)
	mux.HandleFunc("GET /api/export", ms.handleExportPlaylists)
	mux.HandleFunc("POST /api/import", ms.handleImportPlaylists)

	// Queue
	mux.HandleFunc("GET /api/queue", ms.handleGetQueue)
	mux.HandleFunc("POST /api/queue", ms.handleEnqueue)
	mux.HandleFunc("DELETE /api/queue/{index}", ms.handleRemoveFromQueue)
	mux.HandleFunc("POST /api/queue/move", ms.handleMoveInQueue)
	mux.HandleFunc("POST /api/queue/shuffle", ms.handleShuffleQueue)
	mux.HandleFunc("POST /api/queue/clear", ms.handleClearQueue)
	mux.HandleFunc("POST /api/queue/next", ms.handleNext)
	mux.HandleFunc("POST /api/queue/previous", ms.handlePrevious)
	mux.HandleFunc("POST /api/queue/play/{index}", ms.handlePlayAt)
	mux.HandleFunc("POST /api/queue/pause", ms.handlePause)
	mux.HandleFunc("POST /api/queue/resume", ms.handleResume)
	mux.HandleFunc("POST /api/queue/seek", ms.handleSeek)
	mux.HandleFunc("PUT /api/queue/loop", ms.handleSetLoop)

	// Player
	mux.HandleFunc("GET /api/player/state", ms.handleGetPlayerState)
	mux.HandleFunc("GET /api/player/events", ms.handlePlayerEvents)
}

// Start scans and watches the inbox as configured, then serves HTTP until
// Shutdown is called or ctx is done.
func (ms *MusicServer) Start(ctx context.Context) error {
	if ms.config.Inbox.ScanOnStartup {
		if _, err := ms.ScanInbox(); err != nil {
			ms.logger.WithError(err).Warn("Inbox scan failed")
		}
	}

	if ms.config.Inbox.WatchForChanges {
		if err := ms.startFileWatcher(); err != nil {
			ms.logger.WithError(err).Warn("Could not start inbox watcher")
		}
	}

	go ms.playerState.Run(ctx, ms.queue, playerPollInterval)

	ms.logger.WithFields(logrus.Fields{
		"address": fmt.Sprintf("http://%s", ms.config.GetAddress()),
		"songs":   ms.library.Len(),
		"inbox":   ms.config.Inbox.Path,
	}).Info("Legato server starting")

	if err := ms.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the music server
func (ms *MusicServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("Shutting down music server...")

	ms.stopFileWatcher()
	if err := ms.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	ms.logger.Info("Music server shutdown complete")
	return nil
}
