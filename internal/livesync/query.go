package livesync

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

type Op string

const (
	OpEqual         Op = "=="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

func Where(field string, op Op, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Match evaluates the filter against a document on the client side.
func (f Filter) Match(d Document) bool {
	v, ok := d.Value(f.Field)
	switch f.Op {
	case OpEqual:
		return ok && valuesEqual(v, f.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range asSlice(f.Value) {
			if valuesEqual(v, candidate) {
				return true
			}
		}
		return false
	case OpArrayContains:
		if !ok {
			return false
		}
		for _, item := range asSlice(v) {
			if valuesEqual(item, f.Value) {
				return true
			}
		}
		return false
	}
	return false
}

type Order struct {
	Field     string
	Direction Direction
}

// Query describes a live result set: equality/membership filters over one collection, an optional
// ordering and an optional cap.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    *Order
	Limit      int
}

func (q Query) Where(field string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Where(field, op, value))
	return q
}

func (q Query) Ordered(field string, dir Direction) Query {
	q.OrderBy = &Order{Field: field, Direction: dir}
	return q
}

func (q Query) Limited(n int) Query {
	q.Limit = n
	return q
}

// Key is stable for equal queries and is used as the projection store key.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|%s %s %v", f.Field, f.Op, f.Value)
	}
	if q.OrderBy != nil {
		dir := "asc"
		if q.OrderBy.Direction == Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order %s %s", q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit %d", q.Limit)
	}
	return b.String()
}

// Matches reports whether d satisfies every filter.
func (q Query) Matches(d Document) bool {
	for _, f := range q.Filters {
		if !f.Match(d) {
			return false
		}
	}
	return true
}

// Evaluate runs the whole query client-side over an unordered document set.
func (q Query) Evaluate(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy != nil {
		SortDocuments(out, ByField(q.OrderBy.Field, q.OrderBy.Direction))
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// LessFunc orders two documents.
type LessFunc func(a, b Document) bool

// SortDocuments sorts in place; ties are broken by id so views are stable.
func SortDocuments(docs []Document, less LessFunc) {
	sort.SliceStable(docs, func(i, j int) bool {
		if less(docs[i], docs[j]) {
			return true
		}
		if less(docs[j], docs[i]) {
			return false
		}
		return docs[i].ID < docs[j].ID
	})
}

// ByTime orders by a timestamp field. Missing timestamps are the epoch: first ascending, last descending.
func ByTime(field string, dir Direction) LessFunc {
	return func(a, b Document) bool {
		ta, tb := a.Time(field), b.Time(field)
		if dir == Desc {
			return ta.After(tb)
		}
		return ta.Before(tb)
	}
}

// ByField orders by any comparable field value (timestamps, strings, numbers, bools).
func ByField(field string, dir Direction) LessFunc {
	return func(a, b Document) bool {
		va, _ := a.Value(field)
		vb, _ := b.Value(field)
		c := compareValues(va, vb)
		if dir == Desc {
			return c > 0
		}
		return c < 0
	}
}

func compareValues(a, b interface{}) int {
	if ta, ok := timeValue(a); ok {
		tb, _ := timeValue(b)
		return ta.Compare(tb)
	}
	if tb, ok := timeValue(b); ok {
		return time.Time{}.Compare(tb)
	}
	if fa, ok := number(a); ok {
		fb, _ := number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(orEmpty(a)), fmt.Sprint(orEmpty(b))
	return strings.Compare(sa, sb)
}

func timeValue(v interface{}) (time.Time, bool) {
	switch v.(type) {
	case time.Time, *time.Time:
		return asTime(v), true
	}
	return time.Time{}, false
}

func orEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if ta, ok := timeValue(a); ok {
		tb, ok := timeValue(b)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func asSlice(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
