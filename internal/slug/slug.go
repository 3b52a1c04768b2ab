// Package slug делает из заголовков идентификаторы для урлов
package slug

import (
	"regexp"
	"strings"
)

var (
	separators = regexp.MustCompile(`[/:.'\s]+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Make приводит s к нижнему регистру и заменяет каждую серию слешей,
// двоеточий, точек, апострофов и пробелов одним дефисом, повторные дефисы
// схлопывает. Make(Make(s)) == Make(s)
func Make(s string) string {
	out := strings.ToLower(s)
	out = separators.ReplaceAllString(out, "-")
	return hyphens.ReplaceAllString(out, "-")
}
