// Package source загружает ленты и мапит их элементы в model.Item
package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

const (
	KindGoFeed = "gofeed"
	KindRSS    = "rss"
)

// Parser загружает ленту по адресу
type Parser interface {
	Fetch(ctx context.Context, url string) (model.RemoteFeed, error)
}

// New возвращает парсер по имени из конфига
func New(kind string, client *http.Client, userAgent string) (Parser, error) {
	switch kind {
	case KindGoFeed, "":
		return NewGoFeed(client, userAgent), nil
	case KindRSS:
		return NewRSS(client, userAgent), nil
	default:
		return nil, fmt.Errorf("unknown parser %q", kind)
	}
}
