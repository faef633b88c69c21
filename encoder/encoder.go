// Package encoder renders gateway operation results as human-readable JSON:
// sorted keys, four-space indentation, relation references flattened to
// [id, label] pairs. Values that cannot be encoded degrade to the literal
// string "error" instead of failing the whole response, matching what API
// consumers of the legacy endpoint already parse.
package encoder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-gateway/core"
)

// DefaultMaxDepth bounds recursion into nested containers. Anything nested
// deeper degrades to "error" rather than recursing without limit.
const DefaultMaxDepth = 32

const errorLiteral = "error"

const timeLayout = "2006-01-02 15:04:05"

type Encoder struct {
	maxDepth int
}

func New() *Encoder {
	return &Encoder{maxDepth: DefaultMaxDepth}
}

func NewWithDepth(maxDepth int) *Encoder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Encoder{maxDepth: maxDepth}
}

// Encode renders value as indented JSON. It never returns an encoding error
// for hostile values; Sanitize already degraded those to "error".
func (e *Encoder) Encode(value any) ([]byte, error) {
	sanitized := e.Sanitize(value)
	out, err := json.MarshalIndent(sanitized, "", "    ")
	if err != nil {
		// Sanitize left only encodable shapes; anything that still trips
		// the marshaler collapses to the error literal.
		return json.MarshalIndent(errorLiteral, "", "    ")
	}
	return out, nil
}

// Sanitize converts value into a tree of plain JSON-encodable Go values,
// applying the gateway rendering rules at every level.
func (e *Encoder) Sanitize(value any) any {
	maxDepth := e.maxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return sanitize(value, maxDepth)
}

func sanitize(value any, depth int) any {
	if depth <= 0 {
		return errorLiteral
	}
	switch typed := value.(type) {
	case nil:
		return nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return typed
	case json.Number:
		return typed
	case []byte:
		return decodeBytes(typed)
	case time.Time:
		return typed.UTC().Format(timeLayout)
	case time.Duration:
		return int64(typed / time.Second)
	case core.RelationRef:
		return []any{typed.ID, typed.Label}
	case *core.RelationRef:
		if typed == nil {
			return nil
		}
		return []any{typed.ID, typed.Label}
	case []core.RelationRef:
		refs := make([]any, 0, len(typed))
		for _, ref := range typed {
			refs = append(refs, []any{ref.ID, ref.Label})
		}
		return refs
	case core.Record:
		return sanitizeMap(map[string]any(typed), depth)
	case map[string]any:
		return sanitizeMap(typed, depth)
	case []any:
		items := make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, sanitize(item, depth-1))
		}
		return items
	case error:
		return typed.Error()
	case fmt.Stringer:
		return typed.String()
	}
	return sanitizeReflect(value, depth)
}

func sanitizeMap(values map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = sanitize(value, depth-1)
	}
	return out
}

// sanitizeReflect handles shapes the type switch does not enumerate:
// arbitrary slices, maps with non-string keys, structs and pointers.
func sanitizeReflect(value any, depth int) any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitize(rv.Elem().Interface(), depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		items := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items = append(items, sanitize(rv.Index(i).Interface(), depth-1))
		}
		return items
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value().Interface(), depth-1)
		}
		return out
	case reflect.Struct:
		return sanitizeStruct(rv, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return errorLiteral
	default:
		return fmt.Sprint(value)
	}
}

// sanitizeStruct renders a struct as its exported-attribute map, honoring
// json tags for names and skipping fields tagged "-".
func sanitizeStruct(rv reflect.Value, depth int) any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := cutTag(tag)
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = sanitize(rv.Field(i).Interface(), depth-1)
	}
	return out
}

// decodeBytes renders byte payloads as text when they are valid UTF-8 and
// as base64 otherwise, so binary attachment content still serializes.
func decodeBytes(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func cutTag(tag string) (name string, options string, found bool) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i], tag[i+1:], true
		}
	}
	return tag, "", false
}
