package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
	"github.com/kovalyov-valentin/feed-sync/internal/slug"
	"github.com/kovalyov-valentin/feed-sync/internal/storage"
)

var ErrNoTitle = errors.New("remote feed has no title")

type FeedStorage interface {
	FeedByURL(ctx context.Context, url string) (*model.Feed, error)
	Add(ctx context.Context, feed model.Feed) (int64, error)
}

type Parser interface {
	Fetch(ctx context.Context, url string) (model.RemoteFeed, error)
}

type Discoverer struct {
	feeds  FeedStorage
	parser Parser
}

func New(feeds FeedStorage, parser Parser) *Discoverer {
	return &Discoverer{feeds: feeds, parser: parser}
}

// Discover возвращает ленту по адресу. Если такой ленты еще нет, загружаем
// ее и создаем: имя берем из заголовка, slug из имени.
// Второе значение true, если лента создана сейчас
func (d *Discoverer) Discover(ctx context.Context, url string, frequency model.Frequency) (*model.Feed, bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, errors.New("feed url is empty")
	}
	if frequency != "" && !frequency.Valid() {
		return nil, false, fmt.Errorf("unknown publication frequency %q", frequency)
	}

	existing, err := d.feeds.FeedByURL(ctx, url)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	remote, err := d.parser.Fetch(ctx, url)
	if err != nil {
		return nil, false, err
	}

	title := strings.TrimSpace(remote.Title)
	if title == "" {
		return nil, false, ErrNoTitle
	}

	feed := model.Feed{
		Name:                 title,
		Slug:                 slug.Make(title),
		URL:                  url,
		PublicationFrequency: frequency,
	}

	id, err := d.feeds.Add(ctx, feed)
	if err != nil {
		// Параллельный вызов мог успеть добавить ту же ленту, тогда url
		// уже занят и отдаем существующую
		if existing, findErr := d.feeds.FeedByURL(ctx, url); findErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	// Перечитываем, чтобы вернуть значения по умолчанию из хранилища
	created, err := d.feeds.FeedByURL(ctx, url)
	if err != nil {
		return nil, false, err
	}

	log.WithFields(log.Fields{
		"feed_id": id,
		"feed":    created.Name,
		"url":     url,
	}).Info("feed discovered")

	return created, true, nil
}
