package coverart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"legato/internal/cache"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL    = "https://musicbrainz.org/ws/2"
	DefaultArchiveURL = "https://coverartarchive.org"
	DefaultUserAgent  = "legato/1.0 ( https://github.com/legato-music/legato )"
	DefaultCooldown   = 24 * time.Hour
	DefaultTimeout    = 10 * time.Second

	// MusicBrainz allows one request per second per client
	minRequestInterval = time.Second
)

// ErrPayloadFetch matches every lookup failure
var ErrPayloadFetch = errors.New("cover art fetch failed")

var creditSeparator = regexp.MustCompile(`,\s+`)

// PayloadFetchError reports a failed cover-art lookup for one album
type PayloadFetchError struct {
	Artist string
	Album  string
	Err    error
}

func (e *PayloadFetchError) Error() string {
	return fmt.Sprintf("cover art for %q by %q: %v", e.Album, e.Artist, e.Err)
}

func (e *PayloadFetchError) Unwrap() error { return e.Err }

func (e *PayloadFetchError) Is(target error) bool { return target == ErrPayloadFetch }

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL    string
	ArchiveURL string
	UserAgent  string
	Cooldown   time.Duration
	Timeout    time.Duration
}

type releaseSearch struct {
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

// Client resolves album cover URLs through a MusicBrainz release search.
// Results, misses included, are remembered for the cooldown.
type Client struct {
	baseURL    string
	archiveURL string
	userAgent  string
	httpClient *http.Client
	results    *cache.Cache[string]
	logger     *logrus.Logger

	rateMu      sync.Mutex
	lastRequest time.Time
	sleep       func(time.Duration)
}

// NewClient creates a cover-art client
func NewClient(opts Options, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ArchiveURL == "" {
		opts.ArchiveURL = DefaultArchiveURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		archiveURL: strings.TrimRight(opts.ArchiveURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		results:    cache.New[string](opts.Cooldown),
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Close stops the result cache janitor
func (c *Client) Close() {
	c.results.Close()
}

// Lookup returns the cover URL for an album, or "" when the album is unknown
// or MusicBrainz has no matching release.
func (c *Client) Lookup(ctx context.Context, artist, album string) (string, error) {
	if artist == "" || album == "" || artist == models.Unknown || album == models.Unknown {
		return "", nil
	}

	key := cacheKey(artist, album)
	if cached, ok := c.results.Get(key); ok {
		return cached, nil
	}

	query := fmt.Sprintf("%s artistname:%q", album, searchArtist(artist))
	id, err := c.searchRelease(ctx, query)
	if err != nil {
		return "", &PayloadFetchError{Artist: artist, Album: album, Err: err}
	}

	art := ""
	if id != "" {
		art = fmt.Sprintf("%s/release/%s/front-500", c.archiveURL, id)
	}
	c.results.Set(key, art)

	c.logger.WithFields(logrus.Fields{
		"artist": artist,
		"album":  album,
		"found":  art != "",
	}).Debug("Resolved cover art")
	return art, nil
}

// ArtURL is Lookup with failures logged and reported as no art
func (c *Client) ArtURL(ctx context.Context, artist, album string) string {
	art, err := c.Lookup(ctx, artist, album)
	if err != nil {
		c.logger.WithError(err).Warn("Cover art lookup failed")
		return ""
	}
	return art
}

func (c *Client) searchRelease(ctx context.Context, query string) (string, error) {
	c.waitTurn()

	endpoint := fmt.Sprintf("%s/release/?fmt=json&limit=1&query=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}

	var result releaseSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode release search: %w", err)
	}
	if len(result.Releases) == 0 {
		return "", nil
	}
	return result.Releases[0].ID, nil
}

// waitTurn blocks until a request is allowed under the rate limit
func (c *Client) waitTurn() {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := minRequestInterval - time.Since(c.lastRequest); wait > 0 {
			c.sleep(wait)
		}
	}
	c.lastRequest = time.Now()
}

// searchArtist picks the name to search by. A multi-artist credit searches
// by its first listed artist.
func searchArtist(credit string) string {
	parts := creditSeparator.Split(credit, -1)
	if len(parts) > 1 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return credit
}

func cacheKey(artist, album string) string {
	sum := md5.Sum([]byte(strings.ToLower(artist) + "|" + strings.ToLower(album)))
	return hex.EncodeToString(sum[:])
}
