package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Minimal Jikan v4 client (search, full detail and pictures endpoints we need).

// errRateLimited marks an HTTP 429 from Jikan. Only this error is retried;
// anything else fails the lookup immediately.
var errRateLimited = errors.New("jikan: rate limited")

type jikanClient struct {
	baseURL string
	httpc   *http.Client
	logger  *logrus.Logger

	// Jikan allows roughly 3 requests per second per client.
	limiter *rate.Limiter

	retryAttempts uint
	retryDelay    time.Duration
}

func newJikanClient(baseURL string, httpc *http.Client, retryAttempts int, retryDelay time.Duration, logger *logrus.Logger) *jikanClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &jikanClient{
		baseURL:       baseURL,
		httpc:         httpc,
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(3), 3),
		retryAttempts: uint(retryAttempts),
		retryDelay:    retryDelay,
	}
}

// jikanImageSet is the per-format image block Jikan attaches to anime and pictures.
type jikanImageSet struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
}

// jikanAnime is the subset of a Jikan anime object this service reads.
type jikanAnime struct {
	MALID    int           `json:"mal_id"`
	Title    string        `json:"title"`
	Episodes int           `json:"episodes"`
	Airing   bool          `json:"airing"`
	Images   jikanImageSet `json:"images"`
	Aired    struct {
		From *string `json:"from"`
	} `json:"aired"`
	Broadcast struct {
		Day       string  `json:"day"`
		NextAired *string `json:"next_aired"`
	} `json:"broadcast"`
}

func (c *jikanClient) search(ctx context.Context, query string, limit int) ([]jikanAnime, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var out struct {
		Data []jikanAnime `json:"data"`
	}
	if err := c.getJSON(ctx, "/anime?"+params.Encode(), &out); err != nil {
		return nil, fmt.Errorf("search anime %q: %w", query, err)
	}
	return out.Data, nil
}

func (c *jikanClient) animeFull(ctx context.Context, malID int) (*jikanAnime, error) {
	var out struct {
		Data jikanAnime `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/anime/%d/full", malID), &out); err != nil {
		return nil, fmt.Errorf("fetch anime %d: %w", malID, err)
	}
	return &out.Data, nil
}

func (c *jikanClient) animePictures(ctx context.Context, malID int) ([]jikanImageSet, error) {
	var out struct {
		Data []jikanImageSet `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/anime/%d/pictures", malID), &out); err != nil {
		return nil, fmt.Errorf("fetch anime %d pictures: %w", malID, err)
	}
	return out.Data, nil
}

// getJSON performs a GET against the Jikan API with outbound throttling and a
// bounded fixed-delay retry that fires only on rate-limited responses.
func (c *jikanClient) getJSON(ctx context.Context, path string, out any) error {
	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			return c.doGET(ctx, path, out)
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRateLimited) }),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"path":    path,
				"attempt": n + 1,
			}).Warn("Jikan rate limited, retrying")
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

func (c *jikanClient) doGET(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return errRateLimited
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("jikan: unexpected status %s: %s", resp.Status, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jikan: decode response: %w", err)
	}
	return nil
}
