package source

import (
	"bytes"
	"context"
	"net/http"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

// Клиент для RSS, Atom и JSON лент на базе gofeed
type GoFeed struct {
	client    *http.Client
	userAgent string
}

func NewGoFeed(client *http.Client, userAgent string) *GoFeed {
	if client == nil {
		client = http.DefaultClient
	}

	return &GoFeed{client: client, userAgent: userAgent}
}

func (s *GoFeed) Fetch(ctx context.Context, url string) (model.RemoteFeed, error) {
	body, err := loadBody(ctx, s.client, s.userAgent, url)
	if err != nil {
		return model.RemoteFeed{}, err
	}

	// Парсер не потокобезопасный, поэтому на каждую ленту свой
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return model.RemoteFeed{}, &ParseError{URL: url, Err: err}
	}

	canonical := feed.FeedLink
	if canonical == "" {
		canonical = url
	}

	return model.RemoteFeed{
		Title: feed.Title,
		URL:   canonical,
		Items: lo.Map(feed.Items, func(item *gofeed.Item, _ int) model.Item {
			return itemFromGoFeed(item)
		}),
	}, nil
}

func itemFromGoFeed(item *gofeed.Item) model.Item {
	// В Atom обязательна только дата обновления
	published, raw := item.PublishedParsed, item.Published
	if published == nil && raw == "" {
		published, raw = item.UpdatedParsed, item.Updated
	}

	return model.Item{
		Title:        item.Title,
		Summary:      item.Description,
		Content:      item.Content,
		Link:         item.Link,
		Published:    published,
		PublishedRaw: raw,
		Tags:         item.Categories,
	}
}
