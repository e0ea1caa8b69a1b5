package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// DefaultTimeout bounds a playlist fetch when the caller passes zero.
const DefaultTimeout = 10 * time.Second

// FetchM3U downloads the playlist at url and parses it.
// Transport failures, non-200 responses and interrupted bodies wrap models.ErrNetwork.
func FetchM3U(ctx context.Context, url string, userAgent string, timeout time.Duration) ([]models.Channel, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", models.ErrNetwork, resp.StatusCode)
	}
	channels, err := ParseM3U(resp.Body)
	if err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("ParseM3U: %w", err)
		}
		// Anything else the scanner reports came from reading the body.
		return nil, fmt.Errorf("%w: read body: %w", models.ErrNetwork, err)
	}
	return channels, nil
}
