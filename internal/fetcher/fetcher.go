package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/normalizer"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxErrorBody     = 256
)

// OddsSource returns the odds-stream envelopes of one cycle. Failures yield
// an empty slice.
type OddsSource interface {
	FetchEnvelopes(ctx context.Context) []normalizer.Envelope
}

// CatalogSource returns the game catalog of one cycle. Failures yield an
// empty slice.
type CatalogSource interface {
	FetchGames(ctx context.Context) []catalog.Game
}

// ScheduleSource returns the merged per-sport schedule of one cycle.
// Failures yield an empty schedule.
type ScheduleSource interface {
	FetchSchedule(ctx context.Context) catalog.Schedule
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api error (%d)", e.Source, e.Code)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Source, e.Code, e.Body)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func userAgent(ua string) string {
	if ua = strings.TrimSpace(ua); ua != "" {
		return ua
	}
	return defaultUserAgent
}

// do sends req and returns the body of a 2xx response.
func do(client *http.Client, req *http.Request, source string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := strings.TrimSpace(string(payload))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Source: source, Code: resp.StatusCode, Body: body}
	}
	return payload, nil
}

func getJSON(ctx context.Context, client *http.Client, url, ua, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ua)
	return do(client, req, source)
}
