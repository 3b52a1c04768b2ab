package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tomakado/containers/set"
	"golang.org/x/sync/errgroup"

	"github.com/kovalyov-valentin/feed-sync/internal/keyword"
	"github.com/kovalyov-valentin/feed-sync/internal/model"
	"github.com/kovalyov-valentin/feed-sync/internal/normalize"
	"github.com/kovalyov-valentin/feed-sync/internal/source"
)

const (
	DefaultWorkers      = 4
	DefaultFetchTimeout = 30 * time.Second
)

type PostStorage interface {
	PostExists(ctx context.Context, feedID int64, slug string) (bool, error)
	Ingest(ctx context.Context, post model.Post, keywords []string) (model.Ingestion, error)
}

type FeedProvider interface {
	Feeds(ctx context.Context) ([]model.Feed, error)
}

// Источник лент. Реализован в пакете source для gofeed и SlyMarbo/rss
type Parser interface {
	Fetch(ctx context.Context, url string) (model.RemoteFeed, error)
}

type Config struct {
	// Сколько лент обрабатываем параллельно
	Workers int
	// Таймаут на загрузку одной ленты
	FetchTimeout time.Duration
	// Элементы, у которых в заголовке или категориях есть эти слова, пропускаем
	FilterKeywords []string
}

// Структура сборщика: один вызов Fetch - один проход по всем лентам
type Fetcher struct {
	posts  PostStorage
	feeds  FeedProvider
	parser Parser

	workers        int
	fetchTimeout   time.Duration
	filterKeywords []string
}

func NewFetcher(posts PostStorage, feeds FeedProvider, parser Parser, cfg Config) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	filter := make([]string, 0, len(cfg.FilterKeywords))
	for _, kw := range cfg.FilterKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			filter = append(filter, kw)
		}
	}

	return &Fetcher{
		posts:          posts,
		feeds:          feeds,
		parser:         parser,
		workers:        cfg.Workers,
		fetchTimeout:   cfg.FetchTimeout,
		filterKeywords: filter,
	}
}

// Fetch делает один полный проход синхронизации.
// Список лент берем один раз в начале. Ленты обрабатываются параллельно,
// не больше workers одновременно, и ошибка одной ленты не влияет на остальные
func (f *Fetcher) Fetch(ctx context.Context) (model.PassReport, error) {
	report := model.PassReport{StartedAt: time.Now()}

	feeds, err := f.feeds.Feeds(ctx)
	if err != nil {
		return report, err
	}

	report.Feeds = make([]model.FeedReport, len(feeds))

	var g errgroup.Group
	g.SetLimit(f.workers)

	for i, feed := range feeds {
		i, feed := i, feed
		g.Go(func() error {
			// Каждая горутина пишет только в свой элемент, мьютекс не нужен
			report.Feeds[i] = f.syncFeed(ctx, feed)
			return nil
		})
	}

	_ = g.Wait()
	report.Duration = time.Since(report.StartedAt)

	log.WithFields(log.Fields{
		"feeds":    len(feeds),
		"ingested": report.Ingested(),
		"failed":   report.Failed(),
		"duration": report.Duration,
	}).Info("sync pass finished")

	return report, ctx.Err()
}

func (f *Fetcher) syncFeed(ctx context.Context, feed model.Feed) model.FeedReport {
	report := model.FeedReport{
		FeedID:   feed.ID,
		FeedName: feed.Name,
		Status:   model.FeedSynced,
	}
	logger := log.WithFields(log.Fields{"feed_id": feed.ID, "feed": feed.Name})

	// Таймаут только на загрузку, чтобы одна недоступная лента не держала весь проход
	fetchCtx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	remote, err := f.parser.Fetch(fetchCtx, feed.URL)
	cancel()
	if err != nil {
		report.Status = model.FeedFailed
		report.Failure = failureKind(err)
		report.Err = err
		logger.WithError(err).WithField("kind", report.Failure).Error("failed to fetch feed")
		return report
	}

	if err := f.processItems(ctx, feed, remote.Items, &report); err != nil {
		report.Status = model.FeedFailed
		report.Failure = model.FailureStorage
		report.Err = err
		logger.WithError(err).Error("failed to process feed items")
		return report
	}

	logger.WithFields(log.Fields{
		"ingested":    report.Ingested,
		"existing":    report.Existing,
		"malformed":   report.Malformed,
		"filtered":    report.Filtered,
		"read_states": report.ReadStates,
		"keywords":    report.Keywords,
	}).Debug("feed synced")

	return report
}

// Элементы одной ленты обрабатываем строго по порядку: если в ленте два
// элемента с одинаковым slug, сохранится первый
func (f *Fetcher) processItems(ctx context.Context, feed model.Feed, items []model.Item, report *model.FeedReport) error {
	for _, item := range items {
		entry, err := normalize.Entry(item)
		if err != nil {
			report.Malformed++
			log.WithError(err).WithFields(log.Fields{
				"feed_id": feed.ID,
				"title":   item.Title,
			}).Warn("skipping malformed entry")
			continue
		}

		if f.itemShouldBeSkipped(entry) {
			report.Filtered++
			continue
		}

		exists, err := f.posts.PostExists(ctx, feed.ID, entry.Slug)
		if err != nil {
			return err
		}
		if exists {
			report.Existing++
			continue
		}

		res, err := f.posts.Ingest(ctx, model.Post{
			FeedID:        feed.ID,
			Name:          entry.Title,
			Slug:          entry.Slug,
			Content:       entry.Body,
			URL:           entry.Link,
			PublishedDate: entry.PublishedUTC,
		}, keyword.Names(entry.Tags))
		if err != nil {
			return err
		}

		// Кто-то успел вставить этот пост раньше нас, это не ошибка
		if !res.Created {
			report.Existing++
			continue
		}

		report.Ingested++
		report.ReadStates += res.ReadStates
		report.Keywords += res.Keywords

		log.WithFields(log.Fields{
			"feed_id":     feed.ID,
			"post_id":     res.PostID,
			"slug":        entry.Slug,
			"read_states": res.ReadStates,
		}).Debug("post ingested")
	}

	return nil
}

// Проходимся по ключевым словам фильтра и смотрим, есть ли они
// в заголовке или среди тегов элемента
func (f *Fetcher) itemShouldBeSkipped(entry model.Entry) bool {
	if len(f.filterKeywords) == 0 {
		return false
	}

	tags := make([]string, 0, len(entry.Tags))
	for _, tag := range entry.Tags {
		tags = append(tags, strings.ToLower(tag))
	}
	// Сет, чтобы быстро проверять наличие слова среди тегов
	tagSet := set.New(tags...)
	title := strings.ToLower(entry.Title)

	for _, kw := range f.filterKeywords {
		if tagSet.Contains(kw) || strings.Contains(title, kw) {
			return true
		}
	}

	return false
}

func failureKind(err error) model.FailureKind {
	var parseErr *source.ParseError
	if errors.As(err, &parseErr) {
		return model.FailureParse
	}

	return model.FailureFetch
}
