package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Лента больше этого размера считается битой
const maxFeedSize = 16 << 20

const defaultUserAgent = "feed-sync/1.0"

// Загружает тело ленты. Отмена и таймаут приходят через ctx,
// любая ошибка на этом этапе - FetchError
func loadBody(ctx context.Context, client *http.Client, userAgent, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return body, nil
}
