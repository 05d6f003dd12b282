package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter restricts a query on a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks the collection, field names and operators.
func (q Query) Validate() error {
	if err := validSegment(q.Collection); err != nil {
		return fmt.Errorf("%w: collection: %v", ErrInvalidPath, err)
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
		switch f.Op {
		case OpEq, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("docstore: invalid operator %q", f.Op)
		}
		if _, ok := normalizeValue(f.Value); !ok {
			return fmt.Errorf("docstore: unsupported filter value %T for %q", f.Value, f.Field)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("docstore: invalid order field %q", q.OrderBy)
	}
	return nil
}

// valueKind classifies filter values so every backend compares them alike.
type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindTime
	kindBool
)

type normalized struct {
	kind valueKind
	str  string
	num  decimal.Decimal
	at   time.Time
	b    bool
}

func normalizeValue(v any) (normalized, bool) {
	switch val := v.(type) {
	case string:
		return normalized{kind: kindString, str: val}, true
	case decimal.Decimal:
		return normalized{kind: kindNumber, num: val}, true
	case time.Time:
		return normalized{kind: kindTime, at: val.UTC()}, true
	case fmt.Stringer:
		return normalized{kind: kindString, str: val.String()}, true
	case bool:
		return normalized{kind: kindBool, b: val}, true
	case int:
		return normalized{kind: kindNumber, num: decimal.NewFromInt(int64(val))}, true
	case int64:
		return normalized{kind: kindNumber, num: decimal.NewFromInt(val)}, true
	case float64:
		return normalized{kind: kindNumber, num: decimal.NewFromFloat(val)}, true
	}
	// named string types such as status enums
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return normalized{kind: kindString, str: rv.String()}, true
	}
	return normalized{}, false
}

// coerce interprets a raw JSON field value as the kind of want.
func coerce(raw any, kind valueKind) (normalized, bool) {
	switch kind {
	case kindString:
		s, ok := raw.(string)
		return normalized{kind: kindString, str: s}, ok
	case kindBool:
		b, ok := raw.(bool)
		return normalized{kind: kindBool, b: b}, ok
	case kindTime:
		s, ok := raw.(string)
		if !ok {
			return normalized{}, false
		}
		at, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return normalized{}, false
		}
		return normalized{kind: kindTime, at: at.UTC()}, true
	case kindNumber:
		var text string
		switch n := raw.(type) {
		case json.Number:
			text = n.String()
		case string:
			text = n
		default:
			return normalized{}, false
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return normalized{}, false
		}
		return normalized{kind: kindNumber, num: d}, true
	}
	return normalized{}, false
}

func compare(a, b normalized) int {
	switch a.kind {
	case kindNumber:
		return a.num.Cmp(b.num)
	case kindTime:
		return a.at.Compare(b.at)
	case kindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	default:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		}
		return 0
	}
}

func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		want, _ := normalizeValue(f.Value)
		raw, ok := fields[f.Field]
		if !ok {
			return false
		}
		got, ok := coerce(raw, want.kind)
		if !ok {
			return false
		}
		c := compare(got, want)
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		}
	}
	return true
}

// applyQuery filters, orders and limits in-process candidates.
func applyQuery(candidates []Snapshot, q Query) ([]Snapshot, error) {
	type row struct {
		snap   Snapshot
		fields map[string]any
	}
	rows := make([]row, 0, len(candidates))
	for _, snap := range candidates {
		fields, err := decodeFields(snap.Data)
		if err != nil {
			return nil, fmt.Errorf("docstore: decode %s: %w", snap.Path, err)
		}
		if matches(fields, q.Filters) {
			rows = append(rows, row{snap: snap, fields: fields})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if q.OrderBy == "" {
			return rows[i].snap.Path.ID < rows[j].snap.Path.ID
		}
		c := compareRaw(rows[i].fields[q.OrderBy], rows[j].fields[q.OrderBy])
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	out := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.snap)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func compareRaw(a, b any) int {
	for _, kind := range []valueKind{kindNumber, kindTime, kindString, kindBool} {
		na, okA := coerce(a, kind)
		nb, okB := coerce(b, kind)
		if okA && okB {
			return compare(na, nb)
		}
	}
	switch {
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	return 0
}
