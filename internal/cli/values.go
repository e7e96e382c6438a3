package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

var (
	dateValue      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeOfDayValue = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	dateTimeValue  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{1,2}:\d{2}`)
	integerValue   = regexp.MustCompile(`^-?\d+$`)
)

// filterOperators prefix a filter value, as in created_at=>2024-01-01.
var filterOperators = []string{"<=", ">=", "!", "<", ">"}

// ParseValue infers the typed value of a command line argument:
// null, booleans, integers, dates (2024-01-31), times of day (08:30),
// date-times and comma separated lists. Everything else is a string.
func ParseValue(raw string, loc *time.Location) sdk4me.Value {
	switch raw {
	case "null":
		return sdk4me.Null()
	case "true":
		return sdk4me.Bool(true)
	case "false":
		return sdk4me.Bool(false)
	}

	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		items := make([]any, len(parts))
		for i, part := range parts {
			items[i] = ParseValue(strings.TrimSpace(part), loc)
		}
		return sdk4me.List(items...)
	}

	switch {
	case integerValue.MatchString(raw):
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return sdk4me.Other(n)
		}
	case dateValue.MatchString(raw):
		if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
			return sdk4me.Date(t)
		}
	case timeOfDayValue.MatchString(raw):
		if t, err := time.ParseInLocation("15:04", raw, loc); err == nil {
			return sdk4me.TimeOfDay(t)
		}
	case dateTimeValue.MatchString(raw):
		if t, err := dateparse.ParseIn(raw, loc); err == nil {
			return sdk4me.DateTime(t)
		}
	}
	return sdk4me.String(raw)
}

// splitPair splits key=value at the first '='.
func splitPair(arg string) (string, string, error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid argument %q: expected key=value", arg)
	}
	return key, value, nil
}

// ParseParams turns key=value arguments into query parameters. Typed
// arguments go through ParseValue, raw ones stay strings. A value starting
// with a filter operator moves it into the key: "created_at=>2024-01-01"
// becomes key "created_at=>" with a Date value.
func ParseParams(typed, raw []string, loc *time.Location) (sdk4me.Params, error) {
	var params sdk4me.Params
	for _, arg := range typed {
		key, value, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		for _, op := range filterOperators {
			if rest, ok := strings.CutPrefix(value, op); ok {
				key += "=" + op
				value = rest
				break
			}
		}
		params = append(params, sdk4me.Param{Key: key, Value: ParseValue(value, loc)})
	}
	for _, arg := range raw {
		key, value, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		params = append(params, sdk4me.P(key, value))
	}
	return params, nil
}

// ParseData builds a write payload. The JSON body, when given, is the base;
// typed and raw fields are applied on top, then attachments are appended to
// their "*_attachments" field.
func ParseData(body string, typed, raw, attachments []string, loc *time.Location) (sdk4me.Data, error) {
	data := sdk4me.Data{}
	if strings.TrimSpace(body) != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for k, v := range parsed {
			data[k] = v
		}
	}

	for _, arg := range typed {
		key, value, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		data[key] = ParseValue(value, loc)
	}
	for _, arg := range raw {
		key, value, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		data[key] = value
	}

	for _, arg := range attachments {
		field, path, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		if !strings.HasSuffix(field, sdk4me.AttachmentsSuffix) {
			field += sdk4me.AttachmentsSuffix
		}
		files, _ := data[field].([]string)
		data[field] = append(files, path)
	}
	return data, nil
}
