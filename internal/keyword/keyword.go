// Package keyword получает ключевые слова ленты из тегов элементов
package keyword

import (
	"strings"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/slug"
)

// Names прогоняет теги через slug, выкидывает пустые и повторы.
// Порядок - по первому появлению
func Names(tags []string) []string {
	names := lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		name := slug.Make(strings.TrimSpace(tag))
		return name, name != ""
	})

	return lo.Uniq(names)
}
