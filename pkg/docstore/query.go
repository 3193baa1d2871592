package docstore

import (
	"fmt"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	Eq  Op = "=="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

// Direction is a sort direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by Field.
type Order struct {
	Field string
	Dir   Direction
}

// Query is an immutable query description. Builder methods return copies, so
// a base query can be shared.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
}

// From starts a query over collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

// Where adds a filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy adds a sort key after any existing ones.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Dir: dir})
	return q
}

// String renders q for logs.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " where %s %s %v", f.Field, f.Op, f.Value)
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Dir == Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order by %s %s", o.Field, dir)
	}
	return b.String()
}

// indexShape returns the key sequence an index must have to serve q, or nil
// when q can be served by single-field indexes alone. Equality fields come
// first (in any order), then range fields, then sort keys.
func (q Query) indexShape() (eq []string, rest []Order) {
	ordered := map[string]bool{}
	for _, o := range q.Orders {
		ordered[o.Field] = true
	}
	var ranges []Order
	for _, f := range q.Filters {
		if ordered[f.Field] {
			continue
		}
		if f.Op == Eq {
			eq = append(eq, f.Field)
		} else {
			ranges = append(ranges, Order{Field: f.Field, Dir: Asc})
		}
	}
	rest = append(ranges, q.Orders...)

	fields := map[string]bool{}
	for _, f := range eq {
		fields[f] = true
	}
	for _, o := range rest {
		fields[o.Field] = true
	}
	if len(fields) < 2 || len(q.Orders) == 0 {
		return nil, nil
	}
	return eq, rest
}

// serves reports whether idx can serve a query with the given shape.
func (idx Index) serves(eq []string, rest []Order) bool {
	if len(idx.Keys) != len(eq)+len(rest) {
		return false
	}
	want := map[string]bool{}
	for _, f := range eq {
		want[f] = true
	}
	for _, k := range idx.Keys[:len(eq)] {
		if !want[k.Field] {
			return false
		}
	}
	for i, o := range rest {
		k := idx.Keys[len(eq)+i]
		if k.Field != o.Field || k.Dir != o.Dir {
			return false
		}
	}
	return true
}
