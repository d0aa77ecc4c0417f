package coverart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeMusicBrainz struct {
	mu       sync.Mutex
	queries  []string
	agents   []string
	status   int
	response string
}

func (f *fakeMusicBrainz) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r.URL.Query().Get("query"))
	f.agents = append(f.agents, r.Header.Get("User-Agent"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(f.response))
}

func (f *fakeMusicBrainz) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func newTestClient(t *testing.T, mb *fakeMusicBrainz) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(mb)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c := NewClient(Options{
		BaseURL:    srv.URL,
		ArchiveURL: "https://art.example",
		UserAgent:  "legato-test",
	}, logger)
	t.Cleanup(c.Close)

	var waits []time.Duration
	c.sleep = func(d time.Duration) { waits = append(waits, d) }
	return c, &waits
}

func TestLookup(t *testing.T) {
	mb := &fakeMusicBrainz{response: `{"releases":[{"id":"abc-123"},{"id":"other"}]}`}
	c, _ := newTestClient(t, mb)
	ctx := context.Background()

	art, err := c.Lookup(ctx, "Bob", "Road")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if art != "https://art.example/release/abc-123/front-500" {
		t.Errorf("Unexpected art url %q", art)
	}
	if mb.queries[0] != `Road artistname:"Bob"` {
		t.Errorf("Unexpected query %q", mb.queries[0])
	}
	if mb.agents[0] != "legato-test" {
		t.Errorf("Expected user agent to be sent, got %q", mb.agents[0])
	}

	t.Run("cached case-insensitively", func(t *testing.T) {
		again, err := c.Lookup(ctx, "BOB", "road")
		if err != nil || again != art {
			t.Errorf("Expected cached %q, got %q %v", art, again, err)
		}
		if mb.requests() != 1 {
			t.Errorf("Expected a single request, got %d", mb.requests())
		}
	})

	t.Run("unknown skipped", func(t *testing.T) {
		for _, pair := range [][2]string{{"unknown", "Road"}, {"Bob", "unknown"}, {"", "Road"}} {
			if art, err := c.Lookup(ctx, pair[0], pair[1]); art != "" || err != nil {
				t.Errorf("Lookup(%q, %q) = %q, %v", pair[0], pair[1], art, err)
			}
		}
		if mb.requests() != 1 {
			t.Errorf("Expected no request for unknown albums, got %d", mb.requests())
		}
	})

	t.Run("multi-artist credit", func(t *testing.T) {
		if _, err := c.Lookup(ctx, "Ann, Bob", "Duets"); err != nil {
			t.Fatal(err)
		}
		if got := mb.queries[len(mb.queries)-1]; got != `Duets artistname:"Ann"` {
			t.Errorf("Unexpected query %q", got)
		}
	})
}

func TestLookupMissIsCached(t *testing.T) {
	mb := &fakeMusicBrainz{response: `{"releases":[]}`}
	c, _ := newTestClient(t, mb)

	for i := 0; i < 2; i++ {
		art, err := c.Lookup(context.Background(), "Nobody", "Nothing")
		if err != nil || art != "" {
			t.Fatalf("Expected empty miss, got %q %v", art, err)
		}
	}
	if mb.requests() != 1 {
		t.Errorf("Expected the miss to be cached, got %d requests", mb.requests())
	}
}

func TestLookupFailure(t *testing.T) {
	tests := []struct {
		name string
		mb   *fakeMusicBrainz
	}{
		{"bad status", &fakeMusicBrainz{status: http.StatusServiceUnavailable}},
		{"bad body", &fakeMusicBrainz{response: `not json`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.mb)

			_, err := c.Lookup(context.Background(), "Bob", "Road")
			if !errors.Is(err, ErrPayloadFetch) {
				t.Fatalf("Expected ErrPayloadFetch, got %v", err)
			}
			var fetchErr *PayloadFetchError
			if !errors.As(err, &fetchErr) || fetchErr.Album != "Road" || fetchErr.Artist != "Bob" {
				t.Errorf("Expected PayloadFetchError for Road by Bob, got %#v", err)
			}

			if art := c.ArtURL(context.Background(), "Bob", "Road"); art != "" {
				t.Errorf("Expected ArtURL to degrade to empty, got %q", art)
			}
			if tt.mb.requests() != 2 {
				t.Errorf("Expected failures not to be cached, got %d requests", tt.mb.requests())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	mb := &fakeMusicBrainz{response: `{"releases":[]}`}
	c, waits := newTestClient(t, mb)

	c.Lookup(context.Background(), "A", "One")
	c.Lookup(context.Background(), "B", "Two")

	if len(*waits) != 1 {
		t.Fatalf("Expected the second request to wait, got %v", *waits)
	}
	if w := (*waits)[0]; w <= 0 || w > minRequestInterval {
		t.Errorf("Unexpected wait %v", w)
	}
}
