// Package validate checks request inputs and decoded documents against
// `validate` struct tags.
//
// Rules, comma-separated:
//
//	required     not zero; strings must hold more than whitespace
//	nullable     an empty value skips the remaining rules
//	email        an address of the form local@domain.tld
//	url          an absolute http or https URL
//	min=N max=N  string length in code points, or numeric bounds
//	gt=N gte=N   numeric lower bounds
//	in=a,b,c     one of the listed values; must be the last rule in the tag
//
// Non-nil pointers are validated through to their target, which is how
// partial updates (*float64, *string) are checked.
//
//	type NewProduct struct {
//	    Name  string  `json:"name"  validate:"required,max=200"`
//	    Price float64 `json:"price" validate:"gte=0"`
//	}
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Errors maps a JSON field name to its first failing rule's message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = e[f]
	}
	return strings.Join(msgs, " ")
}

// Struct validates every tagged field of v (a struct or pointer to one).
// The result is empty, never nil, when v is valid.
func Struct(v any) map[string]string {
	errs := map[string]string{}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}

	for _, f := range fieldsOf(rv.Type()) {
		value := rv.Field(f.index)
		if f.nullable && isEmpty(value) {
			continue
		}
		if value.Kind() == reflect.Pointer && !value.IsNil() {
			value = value.Elem()
		}
		for _, r := range f.rules {
			if msg := r.check(f.name, value); msg != "" {
				errs[f.name] = msg
				break
			}
		}
	}
	return errs
}

// HasErrors reports whether Struct found anything.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// Check is Struct as an error: Errors when v is invalid, otherwise nil.
func Check(v any) error {
	if errs := Struct(v); HasErrors(errs) {
		return Errors(errs)
	}
	return nil
}

// ── Compiled tags ────────────────────────────────────────────────────────────

type rule struct {
	check func(field string, v reflect.Value) string
}

type field struct {
	index    int
	name     string
	nullable bool
	rules    []rule
}

var compiled sync.Map // reflect.Type → []field

func fieldsOf(t reflect.Type) []field {
	if fs, ok := compiled.Load(t); ok {
		return fs.([]field)
	}
	var fs []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("validate")
		if tag == "" || !sf.IsExported() {
			continue
		}
		f := field{index: i, name: jsonName(sf)}
		for _, token := range splitRules(tag) {
			if token == "nullable" {
				f.nullable = true
				continue
			}
			if r, ok := parseRule(token); ok {
				f.rules = append(f.rules, r)
			}
		}
		fs = append(fs, f)
	}
	compiled.Store(t, fs)
	return fs
}

// splitRules splits on commas; everything after "in=" belongs to the list.
func splitRules(tag string) []string {
	var list string
	if strings.HasPrefix(tag, "in=") {
		tag, list = "", tag
	} else if i := strings.Index(tag, ",in="); i >= 0 {
		tag, list = tag[:i], tag[i+1:]
	}
	var out []string
	for _, t := range strings.Split(tag, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if list != "" {
		out = append(out, list)
	}
	return out
}

func parseRule(token string) (rule, bool) {
	key, param, _ := strings.Cut(token, "=")
	n, _ := strconv.ParseFloat(strings.TrimSpace(param), 64)

	switch key {
	case "required":
		return rule{func(f string, v reflect.Value) string {
			if isEmpty(v) {
				return fmt.Sprintf("The %s field is required.", f)
			}
			return ""
		}}, true
	case "email":
		return rule{func(f string, v reflect.Value) string {
			if !emailRE.MatchString(text(v)) {
				return fmt.Sprintf("The %s must be a valid email address.", f)
			}
			return ""
		}}, true
	case "url":
		return rule{func(f string, v reflect.Value) string {
			u, err := url.ParseRequestURI(text(v))
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Sprintf("The %s must be a valid URL.", f)
			}
			return ""
		}}, true
	case "min":
		return rule{func(f string, v reflect.Value) string {
			if x, ok := number(v); ok {
				if x < n {
					return fmt.Sprintf("The %s must be at least %s.", f, param)
				}
			} else if float64(utf8.RuneCountInString(text(v))) < n {
				return fmt.Sprintf("The %s must be at least %s characters.", f, param)
			}
			return ""
		}}, true
	case "max":
		return rule{func(f string, v reflect.Value) string {
			if x, ok := number(v); ok {
				if x > n {
					return fmt.Sprintf("The %s must not be greater than %s.", f, param)
				}
			} else if float64(utf8.RuneCountInString(text(v))) > n {
				return fmt.Sprintf("The %s must not exceed %s characters.", f, param)
			}
			return ""
		}}, true
	case "gt":
		return rule{func(f string, v reflect.Value) string {
			if x, _ := number(v); x <= n {
				return fmt.Sprintf("The %s must be greater than %s.", f, param)
			}
			return ""
		}}, true
	case "gte":
		return rule{func(f string, v reflect.Value) string {
			if x, _ := number(v); x < n {
				return fmt.Sprintf("The %s must be greater than or equal to %s.", f, param)
			}
			return ""
		}}, true
	case "in":
		allowed := map[string]bool{}
		for _, a := range strings.Split(param, ",") {
			allowed[strings.TrimSpace(a)] = true
		}
		return rule{func(f string, v reflect.Value) string {
			if !allowed[text(v)] {
				return fmt.Sprintf("The selected %s is invalid.", f)
			}
			return ""
		}}, true
	}
	return rule{}, false
}

// ── Values ───────────────────────────────────────────────────────────────────

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	}
	if x, ok := number(v); ok {
		return x == 0
	}
	return false
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func text(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return ""
	}
	return fmt.Sprint(v.Interface())
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}
