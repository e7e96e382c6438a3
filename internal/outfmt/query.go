package outfmt

import (
	"context"
	"io"
	"reflect"

	"github.com/sdk4me/sdk4me-go/internal/filter"
)

type queryKey struct{}

// WithQuery adds a jq query to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq query from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// WriteJSONFiltered writes JSON with optional jq filtering.
func WriteJSONFiltered(w io.Writer, v any, query string, compact bool) error {
	result, err := ApplyQuery(v, query)
	if err != nil {
		return err
	}
	return WriteJSON(w, result, compact)
}

// ApplyQuery applies a jq query to structured data and returns the filtered
// value. Nil slices become empty lists so that `.[]` keeps working.
func ApplyQuery(v any, query string) (any, error) {
	v = emptyList(v)
	if query == "" {
		return v, nil
	}
	return filter.Apply(v, query)
}

func emptyList(v any) any {
	if v == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() && rv.Type().Elem().Kind() != reflect.Uint8 {
		return []any{}
	}
	return v
}
