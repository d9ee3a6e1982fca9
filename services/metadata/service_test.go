package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestService wires a Service against a fake Jikan server with the
// outbound throttle disabled and a short retry delay.
func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService(server.URL, 3, 10*time.Millisecond, testLogger())
	svc.jikan.limiter = rate.NewLimiter(rate.Inf, 0)
	return svc, server
}

const airingFullBody = `{"data":{
	"mal_id": 100,
	"title": "Weekly Show",
	"episodes": null,
	"airing": true,
	"images": {"jpg": {"large_image_url": "https://cdn.example/detail.jpg"}},
	"aired": {"from": "2026-01-04T14:00:00+00:00"},
	"broadcast": {"day": "Sundays"}
}}`

const finishedFullBody = `{"data":{
	"mal_id": 200,
	"title": "Finished Show",
	"episodes": 24,
	"airing": false,
	"images": {"jpg": {"large_image_url": "https://cdn.example/finished.jpg"}},
	"aired": {"from": "2020-01-05T00:00:00+00:00"},
	"broadcast": {"day": "Sundays", "next_aired": "2020-06-28T00:00:00+00:00"}
}}`

const picturesBody = `{"data":[
	{"jpg": {"large_image_url": "https://cdn.example/art 1.jpg"}},
	{"jpg": {"large_image_url": "https://cdn.example/art2.jpg"}}
]}`

func TestDetails_AiringProjection(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/100/full":
			io.WriteString(w, airingFullBody)
		case "/anime/100/pictures":
			io.WriteString(w, picturesBody)
		default:
			http.NotFound(w, r)
		}
	}))

	// Two weeks after the premiere.
	svc.now = func() time.Time { return time.Date(2026, 1, 18, 14, 0, 0, 0, time.UTC) }

	anime, err := svc.Details(context.Background(), 100)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}

	if !anime.Airing {
		t.Error("expected airing series")
	}
	if anime.TotalEpisodes != 3 {
		t.Errorf("expected 3 projected episodes, got %d", anime.TotalEpisodes)
	}
	if anime.NextEpisodeDate == nil || *anime.NextEpisodeDate != "2026-01-25T14:00:00Z" {
		t.Errorf("expected next episode 2026-01-25T14:00:00Z, got %v", anime.NextEpisodeDate)
	}
	// First pictures entry wins, with the stray space encoded.
	if anime.Picture != "https://cdn.example/art%201.jpg" {
		t.Errorf("unexpected picture %q", anime.Picture)
	}
}

func TestDetails_ImageFallsBackToDetailThumbnail(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/200/full":
			io.WriteString(w, finishedFullBody)
		case "/anime/200/pictures":
			io.WriteString(w, `{"data":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	anime, err := svc.Details(context.Background(), 200)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if anime.Picture != "https://cdn.example/finished.jpg" {
		t.Errorf("expected detail thumbnail fallback, got %q", anime.Picture)
	}
}

func TestDetails_NotAiringUsesSourceData(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/200/full":
			io.WriteString(w, finishedFullBody)
		case "/anime/200/pictures":
			io.WriteString(w, `{"data":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	anime, err := svc.Details(context.Background(), 200)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if anime.TotalEpisodes != 24 {
		t.Errorf("expected source episode count 24, got %d", anime.TotalEpisodes)
	}
	if anime.NextEpisodeDate == nil || *anime.NextEpisodeDate != "2020-06-28T00:00:00+00:00" {
		t.Errorf("expected source next_aired, got %v", anime.NextEpisodeDate)
	}
}

func TestDetails_UnresolvedWeekdaySkipsProjection(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/100/full":
			io.WriteString(w, `{"data":{
				"mal_id": 100, "title": "Weekly Show", "airing": true,
				"images": {"jpg": {"large_image_url": "https://cdn.example/d.jpg"}},
				"aired": {"from": "2026-01-04T14:00:00+00:00"},
				"broadcast": {"day": "Unknown"}
			}}`)
		case "/anime/100/pictures":
			io.WriteString(w, `{"data":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	anime, err := svc.Details(context.Background(), 100)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if anime.TotalEpisodes != 0 {
		t.Errorf("expected 0 episodes when weekday is unresolved, got %d", anime.TotalEpisodes)
	}
	if anime.NextEpisodeDate != nil {
		t.Errorf("expected nil next episode date, got %v", anime.NextEpisodeDate)
	}
}

func TestDetails_PicturesFailureFailsWholeLookup(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/100/full":
			io.WriteString(w, airingFullBody)
		case "/anime/100/pictures":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))

	if _, err := svc.Details(context.Background(), 100); err == nil {
		t.Fatal("expected error when pictures lookup fails, got nil")
	}
}

func TestDetails_RetriesRateLimitedResponses(t *testing.T) {
	var fullCalls atomic.Int32
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/100/full":
			if fullCalls.Add(1) == 1 {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			io.WriteString(w, airingFullBody)
		case "/anime/100/pictures":
			io.WriteString(w, picturesBody)
		default:
			http.NotFound(w, r)
		}
	}))

	if _, err := svc.Details(context.Background(), 100); err != nil {
		t.Fatalf("Details failed despite retry budget: %v", err)
	}
	if got := fullCalls.Load(); got != 2 {
		t.Errorf("expected 2 detail calls (429 then 200), got %d", got)
	}
}

func TestDetails_RateLimitRetryExhaustion(t *testing.T) {
	var fullCalls atomic.Int32
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/100/full":
			fullCalls.Add(1)
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		case "/anime/100/pictures":
			io.WriteString(w, picturesBody)
		default:
			http.NotFound(w, r)
		}
	}))

	if _, err := svc.Details(context.Background(), 100); err == nil {
		t.Fatal("expected error after retry exhaustion, got nil")
	}
	if got := fullCalls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestSearch_DegradesFailedEnrichment(t *testing.T) {
	searchBody := `{"data":[
		{"mal_id": 100, "title": "Weekly Show", "airing": true,
		 "images": {"jpg": {"large_image_url": "https://cdn.example/raw100.jpg"}}},
		{"mal_id": 300, "title": "Broken Show", "episodes": 13, "airing": true,
		 "images": {"jpg": {"large_image_url": "https://cdn.example/raw300.jpg"}}}
	]}`

	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime":
			io.WriteString(w, searchBody)
		case "/anime/100/full":
			io.WriteString(w, airingFullBody)
		case "/anime/100/pictures":
			io.WriteString(w, picturesBody)
		default:
			// Everything for mal_id 300 fails permanently.
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	svc.now = func() time.Time { return time.Date(2026, 1, 18, 14, 0, 0, 0, time.UTC) }

	results, err := svc.Search(context.Background(), "show")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected degraded item to stay in results, got %d items", len(results))
	}

	if results[0].MALID != 100 || results[0].TotalEpisodes != 3 {
		t.Errorf("expected first hit fully enriched, got %+v", results[0])
	}

	degraded := results[1]
	if degraded.MALID != 300 || degraded.Title != "Broken Show" {
		t.Errorf("unexpected degraded record %+v", degraded)
	}
	if degraded.Airing {
		t.Error("degraded record must assume the series is not airing")
	}
	if degraded.TotalEpisodes != 13 {
		t.Errorf("expected raw episode count 13, got %d", degraded.TotalEpisodes)
	}
	if degraded.NextEpisodeDate != nil {
		t.Errorf("expected nil next episode date, got %v", degraded.NextEpisodeDate)
	}
	if degraded.Picture != "https://cdn.example/raw300.jpg" {
		t.Errorf("expected raw search image, got %q", degraded.Picture)
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	if _, err := svc.Search(context.Background(), "show"); err == nil {
		t.Fatal("expected error when search itself fails, got nil")
	}
}

// Guards the URL shape so a base URL with a trailing slash is caught in review.
func TestJikanClientURLs(t *testing.T) {
	var gotPath string
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		io.WriteString(w, `{"data":[]}`)
	}))

	if _, err := svc.jikan.search(context.Background(), "one piece", 10); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if want := fmt.Sprintf("/anime?limit=10&q=%s", "one+piece"); gotPath != want {
		t.Errorf("expected request URI %q, got %q", want, gotPath)
	}
}
