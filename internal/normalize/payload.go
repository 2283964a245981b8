package normalize

import (
	"github.com/tidwall/gjson"
)

// Shape описывает, как ответ списка может быть завёрнут.
type Shape struct {
	// Wrappers — ключи-обёртки по приоритету ("workers", "data.workers").
	Wrappers []string

	// Identity — поля, по которым объект без обёртки признаётся записью.
	Identity []string
}

// Records разворачивает ответ списка в отдельные записи-объекты.
//
// Массив верхнего уровня возвращается поэлементно. Для объекта проверяются
// ключи Wrappers по порядку: первый, указывающий на массив, выигрывает.
// Если обёртка есть, но массива в ней нет ({"workers":null},
// {"data":{"items":[]}}), результат пуст. Объект без обёрток считается
// одиночной записью, только если в нём есть хотя бы одно поле Identity;
// так конверты ошибок вида {"success":false} не превращаются в записи.
// Элементы, не являющиеся объектами, пропускаются. Невалидный JSON даёт nil.
func Records(body []byte, shape Shape) []gjson.Result {
	if !gjson.ValidBytes(body) {
		return nil
	}
	root := gjson.ParseBytes(body)

	switch {
	case root.IsArray():
		return objects(root)
	case root.IsObject():
		wrapped := false
		for _, key := range shape.Wrappers {
			v := root.Get(key)
			if v.IsArray() {
				return objects(v)
			}
			if v.Exists() {
				wrapped = true
			}
		}
		if wrapped || !hasAny(root, shape.Identity) {
			return nil
		}
		return []gjson.Result{root}
	default:
		return nil
	}
}

func hasAny(raw gjson.Result, paths []string) bool {
	for _, path := range paths {
		if v := raw.Get(path); v.Exists() && v.Type != gjson.Null {
			return true
		}
	}
	return false
}

func objects(arr gjson.Result) []gjson.Result {
	items := arr.Array()
	out := make([]gjson.Result, 0, len(items))
	for _, item := range items {
		if item.IsObject() {
			out = append(out, item)
		}
	}
	return out
}

// FirstString возвращает первое непустое строковое или числовое значение
// по путям paths, иначе "".
func FirstString(raw gjson.Result, paths ...string) string {
	for _, path := range paths {
		if s, ok := scalarString(raw.Get(path)); ok {
			return s
		}
	}
	return ""
}
