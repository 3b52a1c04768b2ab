package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
	"github.com/kovalyov-valentin/feed-sync/internal/slug"
)

// Элемент ленты, который нельзя превратить в пост. Такой элемент пропускаем,
// остальные элементы ленты обрабатываются дальше
var ErrMalformedEntry = errors.New("malformed entry")

// Форматы, которыми пробуем разобрать дату, если парсер ленты не справился.
// Форматы без таймзоны считаем UTC
var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Entry приводит элемент ленты к каноническому виду
func Entry(item model.Item) (model.Entry, error) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return model.Entry{}, fmt.Errorf("%w: empty title", ErrMalformedEntry)
	}

	published, err := publishedUTC(item)
	if err != nil {
		return model.Entry{}, err
	}

	body := item.Summary
	if strings.TrimSpace(body) == "" {
		body = item.Content
	}

	return model.Entry{
		Slug:         slug.Make(title),
		Title:        title,
		Body:         body,
		Link:         strings.TrimSpace(item.Link),
		PublishedUTC: published,
		Tags:         Tags(item.Tags),
	}, nil
}

// Tags убирает пустые и повторяющиеся теги, порядок сохраняется
func Tags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}

	return lo.Uniq(lo.FilterMap(raw, func(tag string, _ int) (string, bool) {
		tag = strings.TrimSpace(tag)
		return tag, tag != ""
	}))
}

func publishedUTC(item model.Item) (time.Time, error) {
	if item.Published != nil && !item.Published.IsZero() {
		return item.Published.UTC(), nil
	}

	raw := strings.TrimSpace(item.PublishedRaw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: no publication date", ErrMalformedEntry)
	}

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unparsable publication date %q", ErrMalformedEntry, raw)
}
