package docstore

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is one stored document: its id and its raw BSON body.
type Document struct {
	ID  string
	Raw bson.Raw
}

// Decode unmarshals the document body into v. Unknown fields are ignored;
// type mismatches are errors.
func (d Document) Decode(v any) error {
	if err := bson.Unmarshal(d.Raw, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.ID, err)
	}
	return nil
}

// Lookup returns a top-level field value, or nil when it is absent.
func (d Document) Lookup(field string) any {
	rv, err := d.Raw.LookupErr(field)
	if err != nil {
		return nil
	}
	var out any
	if err := rv.Unmarshal(&out); err != nil {
		return nil
	}
	return out
}

// rawID extracts a string form of the _id field.
func rawID(raw bson.Raw) string {
	v, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return v.String()
}

// toD converts data (a struct, map or Fields) into an ordered document with
// _id set first. ServerTimestamp values in maps are replaced with now.
func toD(id string, data any, now time.Time) (bson.D, error) {
	if f, ok := asFields(data); ok {
		resolved, _ := resolveFields(f, now)
		data = map[string]any(resolved)
	}
	raw, err := bson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var body bson.D
	if err := bson.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	out := make(bson.D, 0, len(body)+1)
	out = append(out, bson.E{Key: "_id", Value: id})
	for _, e := range body {
		if e.Key == "_id" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func asFields(data any) (Fields, bool) {
	switch v := data.(type) {
	case Fields:
		return v, true
	case map[string]any:
		return Fields(v), true
	case bson.M:
		return Fields(v), true
	}
	return nil, false
}
