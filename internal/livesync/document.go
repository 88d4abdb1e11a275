package livesync

import (
	"fmt"
	"time"
)

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp asks the backend to fill the field with its own clock when the write is applied.
var ServerTimestamp = serverTimestamp{}

// UnionValue adds elements to an array field without duplicates when the write is applied.
type UnionValue struct {
	Elems []interface{}
}

func ArrayUnion(elems ...interface{}) UnionValue {
	return UnionValue{Elems: elems}
}

// Document is a schemaless record as delivered by a Backend.
type Document struct {
	ID          string
	Data        map[string]interface{}
	Provisional bool
}

// Clone returns a copy whose top-level map can be mutated freely.
func (d Document) Clone() Document {
	data := make(map[string]interface{}, len(d.Data))
	for k, v := range d.Data {
		data[k] = v
	}
	return Document{ID: d.ID, Data: data, Provisional: d.Provisional}
}

func (d Document) Value(field string) (interface{}, bool) {
	if d.Data == nil {
		return nil, false
	}
	v, ok := d.Data[field]
	return v, ok
}

func (d Document) String(field string) string {
	v, _ := d.Value(field)
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

func (d Document) Bool(field string) bool {
	v, _ := d.Value(field)
	b, _ := v.(bool)
	return b
}

func (d Document) Int64(field string) int64 {
	v, _ := d.Value(field)
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func (d Document) Float64(field string) float64 {
	v, _ := d.Value(field)
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// Time returns the field as a wall-clock instant. Missing, nil or unparseable values yield the zero time,
// which every sort in this package treats as the epoch.
func (d Document) Time(field string) time.Time {
	v, _ := d.Value(field)
	return asTime(v)
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case int64:
		return time.UnixMilli(t)
	case float64:
		return time.UnixMilli(int64(t))
	}
	return time.Time{}
}

func (d Document) Strings(field string) []string {
	v, _ := d.Value(field)
	return toStrings(v)
}

func toStrings(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func (d Document) Map(field string) map[string]interface{} {
	v, _ := d.Value(field)
	m, _ := v.(map[string]interface{})
	return m
}

// StringSets reads a map of string -> []string, e.g. message reactions.
func (d Document) StringSets(field string) map[string][]string {
	raw := d.Map(field)
	if raw == nil {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		out[k] = toStrings(v)
	}
	return out
}

