package source

import (
	"context"
	"net/http"

	"github.com/SlyMarbo/rss"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

const wallClockLayout = "2006-01-02 15:04:05"

// RSS клиент на базе SlyMarbo/rss.
// Загрузку делаем сами, чтобы работали таймаут и отмена через ctx
type RSS struct {
	client    *http.Client
	userAgent string
}

func NewRSS(client *http.Client, userAgent string) *RSS {
	if client == nil {
		client = http.DefaultClient
	}

	return &RSS{client: client, userAgent: userAgent}
}

// Загружает ленту и мапит ее элементы в наши модельки
func (s *RSS) Fetch(ctx context.Context, url string) (model.RemoteFeed, error) {
	body, err := loadBody(ctx, s.client, s.userAgent, url)
	if err != nil {
		return model.RemoteFeed{}, err
	}

	feed, err := rss.Parse(body)
	if err != nil {
		return model.RemoteFeed{}, &ParseError{URL: url, Err: err}
	}

	items := make([]model.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, itemFromRSS(item))
	}

	return model.RemoteFeed{
		Title: feed.Title,
		URL:   url,
		Items: items,
	}, nil
}

// Библиотека не хранит исходную строку даты. Если дату разобрали, но не
// смогли загрузить таймзону (DateValid = false), отдаем время на часах
// без зоны, нормализатор разберет его как UTC
func itemFromRSS(item *rss.Item) model.Item {
	next := model.Item{
		Title:   item.Title,
		Summary: item.Summary,
		Content: item.Content,
		Link:    item.Link,
		Tags:    item.Categories,
	}

	switch {
	case item.DateValid:
		published := item.Date
		next.Published = &published
	case !item.Date.IsZero():
		next.PublishedRaw = item.Date.Format(wallClockLayout)
	}

	return next
}
