package docstore

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-process query evaluation for the memory driver. Comparison follows
// MongoDB's BSON ordering: values of different types never match a filter,
// and sort places them by type bracket (null < numbers < strings < ... <
// booleans < dates).

const (
	rankNull = iota + 1
	rankNumber
	rankString
	rankObject
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankOther
)

// normalize folds numeric and time representations into float64 and
// milliseconds-since-epoch respectively.
func normalize(v any) (rank int, val any) {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull, nil
	case int:
		return rankNumber, float64(x)
	case int8:
		return rankNumber, float64(x)
	case int16:
		return rankNumber, float64(x)
	case int32:
		return rankNumber, float64(x)
	case int64:
		return rankNumber, float64(x)
	case uint:
		return rankNumber, float64(x)
	case uint32:
		return rankNumber, float64(x)
	case uint64:
		return rankNumber, float64(x)
	case float32:
		return rankNumber, float64(x)
	case float64:
		return rankNumber, x
	case string:
		return rankString, x
	case bool:
		return rankBool, x
	case time.Time:
		return rankDate, x.UnixMilli()
	case primitive.DateTime:
		return rankDate, int64(x)
	case primitive.ObjectID:
		return rankObjectID, x.Hex()
	case bson.M, bson.D, map[string]any:
		return rankObject, nil
	case bson.A, []any:
		return rankArray, nil
	case primitive.Binary, []byte:
		return rankBinary, nil
	}
	return rankOther, nil
}

// compareValues returns -1, 0 or +1. ok is false when a and b are in
// different type brackets.
func compareValues(a, b any) (cmp int, ok bool) {
	ra, va := normalize(a)
	rb, vb := normalize(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}
	switch x := va.(type) {
	case float64:
		y := vb.(float64)
		return three(x < y, x > y), true
	case string:
		y := vb.(string)
		return three(x < y, x > y), true
	case int64:
		y := vb.(int64)
		return three(x < y, x > y), true
	case bool:
		y := vb.(bool)
		return three(!x && y, x && !y), true
	}
	return 0, true
}

func three(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func matchesFilter(doc bson.M, f Filter) bool {
	v, present := doc[f.Field]
	if f.Field == "_id" {
		v, present = doc["_id"], true
	}
	if !present {
		return false
	}
	cmp, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case Eq:
		return cmp == 0
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	}
	return false
}

func matchesAll(doc bson.M, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(doc, f) {
			return false
		}
	}
	return true
}

type evaluated struct {
	doc    Document
	fields bson.M
}

// sortEvaluated orders rows by orders; ties keep insertion order.
func sortEvaluated(rows []evaluated, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			cmp, _ := compareValues(rows[i].fields[o.Field], rows[j].fields[o.Field])
			if cmp == 0 {
				continue
			}
			if o.Dir == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
