package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// rule — правило извлечения одного поля.
type rule[T any] struct {
	// name — описание источника (для тестов и отладки).
	name string

	// predicate — применимо ли правило к записи.
	predicate func(raw gjson.Result) bool

	// extract — значение поля; вызывается только если predicate вернул true.
	extract func(raw gjson.Result) T
}

// firstMatch применяет правила по порядку и возвращает первое совпадение.
func firstMatch[T any](raw gjson.Result, rules []rule[T], fallback T) T {
	for _, r := range rules {
		if r.predicate(raw) {
			return r.extract(raw)
		}
	}
	return fallback
}

// stringAt — непустая строка или число по пути path.
func stringAt(path string) rule[string] {
	return rule[string]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			_, ok := scalarString(raw.Get(path))
			return ok
		},
		extract: func(raw gjson.Result) string {
			s, _ := scalarString(raw.Get(path))
			return s
		},
	}
}

// refAt — ссылка на сущность по пути path: скаляр или объект с _id/id/name.
func refAt(path string) rule[string] {
	return rule[string]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			_, ok := reference(raw.Get(path))
			return ok
		},
		extract: func(raw gjson.Result) string {
			s, _ := reference(raw.Get(path))
			return s
		},
	}
}

// numberAt — конечное число (или числовая строка) по пути path.
func numberAt(path string) rule[float64] {
	return rule[float64]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			_, ok := number(raw.Get(path))
			return ok
		},
		extract: func(raw gjson.Result) float64 {
			f, _ := number(raw.Get(path))
			return f
		},
	}
}

// timeAt — распознаваемая метка времени по пути path.
func timeAt(path string) rule[time.Time] {
	return rule[time.Time]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			_, ok := timestamp(raw.Get(path))
			return ok
		},
		extract: func(raw gjson.Result) time.Time {
			t, _ := timestamp(raw.Get(path))
			return t
		},
	}
}

// scalarString возвращает непустое строковое представление строки или числа.
func scalarString(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String, gjson.Number:
		s := strings.TrimSpace(v.String())
		return s, s != ""
	default:
		return "", false
	}
}

// reference извлекает идентификатор из скаляра или вложенного объекта.
func reference(v gjson.Result) (string, bool) {
	if s, ok := scalarString(v); ok {
		return s, true
	}
	if !v.IsObject() {
		return "", false
	}
	for _, key := range []string{"_id", "id", "name"} {
		if s, ok := scalarString(v.Get(key)); ok {
			return s, true
		}
	}
	return "", false
}

// number возвращает конечное число из числа или числовой строки.
func number(v gjson.Result) (float64, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// timeLayouts — поддерживаемые форматы строковых дат.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestamp распознаёт строку даты или unix-время (секунды или миллисекунды).
func timestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		return fromUnix(v.Int())
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n)
		}
		return time.Time{}, false
	case gjson.JSON:
		// {"$date": ...} — расширенный JSON MongoDB.
		if inner := v.Get("$date"); inner.Exists() {
			return timestamp(inner)
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// fromUnix трактует большие значения как миллисекунды.
func fromUnix(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e11 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
