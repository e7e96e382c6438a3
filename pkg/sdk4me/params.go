package sdk4me

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"
)

// Kind identifies the casting rule applied to a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindDate
	KindTimeOfDay
	KindDateTime
	KindList
	KindMap
	KindOther
)

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04"
	dateTimeLayout  = "2006-01-02T15:04:05-07:00"
)

// Value is a parameter value tagged with the way it must be serialized in a
// query string and in a JSON body.
type Value struct {
	kind  Kind
	b     bool
	s     string
	t     time.Time
	items []any
	raw   any
}

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// Date renders only the calendar date of t.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// TimeOfDay renders only the hours and minutes of t.
func TimeOfDay(t time.Time) Value { return Value{kind: KindTimeOfDay, t: t} }

// DateTime renders t as ISO-8601 in UTC.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// List is joined with commas in query strings (filter "IN" semantics) and
// sent untouched in write bodies.
func List(items ...any) Value { return Value{kind: KindList, items: items} }

// Map is sent as a nested structure in write bodies.
func Map(m any) Value { return Value{kind: KindMap, raw: m} }

// Other covers numbers and any value without a dedicated rule.
func Other(v any) Value { return Value{kind: KindOther, raw: v} }

// ValueOf resolves a plain Go value to its Value. time.Time becomes a
// DateTime; use Date or TimeOfDay explicitly for the other renderings.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Value:
		if x == nil {
			return Null()
		}
		return *x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case fmt.Stringer:
		if t, ok := v.(time.Time); ok {
			return DateTime(t)
		}
		return String(x.String())
	case []any:
		return List(x...)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return List(items...)
	case map[string]any:
		return Map(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null()
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return List(items...)
	case reflect.Map:
		return Map(v)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	}
	return Other(v)
}

func (v Value) Kind() Kind { return v.kind }

// Query returns the URL-query-safe rendering.
func (v Value) Query() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return boolString(v.b)
	case KindString:
		return uriEscape(v.s)
	case KindDate:
		return v.t.Format(dateLayout)
	case KindTimeOfDay:
		return v.t.Format(timeOfDayLayout)
	case KindDateTime:
		return uriEscape(v.t.UTC().Format(dateTimeLayout))
	case KindList:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = ValueOf(item).Query()
		}
		return strings.Join(parts, ",")
	case KindMap:
		return uriEscape(jsonString(v.raw))
	default:
		return jsonString(v.raw)
	}
}

// Body returns the representation placed in a JSON request body.
func (v Value) Body() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindDate:
		return v.t.Format(dateLayout)
	case KindTimeOfDay:
		return v.t.Format(timeOfDayLayout)
	case KindDateTime:
		return v.t.UTC().Format(dateTimeLayout)
	case KindList:
		items := make([]any, len(v.items))
		for i, item := range v.items {
			switch x := item.(type) {
			case Value:
				items[i] = x.Body()
			case *Value:
				items[i] = ValueOf(x).Body()
			default:
				items[i] = item
			}
		}
		return items
	case KindMap:
		return v.raw
	default:
		return fmt.Sprint(v.raw)
	}
}

// Param is a single query parameter. Keys may end in a filter operator such
// as "created_at=>" or "id!=".
type Param struct {
	Key   string
	Value Value
}

// P builds a Param from a plain Go value.
func P(key string, value any) Param {
	return Param{Key: key, Value: ValueOf(value)}
}

// Encode renders "key=value", keeping a trailing operator in the key intact.
func (p Param) Encode() string {
	key := strings.ReplaceAll(uriEscape(p.Key), "%3D", "=")
	if !strings.Contains(p.Key, "=") {
		key += "="
	}
	return key + p.Value.Query()
}

// Params is an ordered list of query parameters.
type Params []Param

// Encode renders the query string without the leading "?".
func (p Params) Encode() string {
	parts := make([]string, len(p))
	for i, param := range p {
		parts[i] = param.Encode()
	}
	return strings.Join(parts, "&")
}

// Merge returns base with overrides applied. An override of an existing key
// replaces its value in place; new keys are appended in order.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p), len(p)+len(overrides))
	copy(out, p)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Key == o.Key {
				out[i].Value = o.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

// Data is the payload of a write request. Values are cast with Value.Body;
// keys ending in "_attachments" trigger the attachment upload.
type Data map[string]any

// Body is the JSON body the data is sent as.
func (d Data) Body() map[string]any {
	body := make(map[string]any, len(d))
	for k, v := range d {
		body[k] = ValueOf(v).Body()
	}
	return body
}

func (d Data) clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// uriEscape percent-encodes a value. Spaces become %20 and dots %2E so values
// are never mistaken for path segments.
func uriEscape(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, ".", "%2E")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
