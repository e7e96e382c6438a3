package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sdk4me/sdk4me-go/internal/filter"
)

// maxColumns bounds the columns picked automatically for a record table.
const maxColumns = 6

// leadingColumns are shown first when a record has them.
var leadingColumns = []string{"id", "name", "subject", "status", "category", "primary_email"}

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx       context.Context
	out       io.Writer
	errOut    io.Writer
	tabWriter *tabwriter.Writer

	query *filter.Query
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:       ctx,
		out:       out,
		errOut:    errOut,
		tabWriter: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes data as JSON, through a template, or as a text table.
func (f *Formatter) Output(data any) error {
	if tmpl := GetTemplate(f.ctx); tmpl != "" {
		filtered, err := ApplyQuery(data, GetQuery(f.ctx))
		if err != nil {
			return err
		}
		return WriteTemplate(f.out, filtered, tmpl)
	}
	if IsJSONL(f.ctx) {
		if items, ok := listItems(data); ok {
			for _, item := range items {
				if err := f.Stream(item); err != nil {
					return err
				}
			}
			return nil
		}
		return f.Stream(data)
	}
	if IsJSON(f.ctx) {
		return WriteJSONFiltered(f.out, data, GetQuery(f.ctx), IsCompact(f.ctx))
	}

	if GetQuery(f.ctx) != "" {
		filtered, err := ApplyQuery(data, GetQuery(f.ctx))
		if err != nil {
			return err
		}
		data = filtered
	}
	if items, ok := listItems(data); ok {
		records := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if m, ok := asMap(item); ok {
				records = append(records, m)
			}
		}
		if len(records) == len(items) {
			return f.Records(records, nil)
		}
		for _, item := range items {
			_, _ = fmt.Fprintln(f.out, Cell(item))
		}
		return nil
	}
	if m, ok := asMap(data); ok {
		return f.Record(m)
	}
	_, _ = fmt.Fprintln(f.out, Cell(data))
	return nil
}

// Stream writes a single record as one compact JSON line, after applying the
// jq query of the context.
func (f *Formatter) Stream(record any) error {
	if q := GetQuery(f.ctx); q != "" {
		if f.query == nil {
			compiled, err := filter.Compile(q)
			if err != nil {
				return err
			}
			f.query = compiled
		}
		result, err := f.query.Run(record)
		if err != nil {
			return err
		}
		record = result
	}
	return WriteJSON(f.out, record, true)
}

// Record writes one record as a two column field/value table.
func (f *Formatter) Record(record map[string]any) error {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f.StartTable([]string{"FIELD", "VALUE"})
	for _, k := range keys {
		f.Row(k, Cell(record[k]))
	}
	return f.EndTable()
}

// Records writes records as a table. Without columns they are picked from
// the record keys.
func (f *Formatter) Records(records []map[string]any, columns []string) error {
	if len(records) == 0 {
		f.Empty("No records found")
		return nil
	}
	if len(columns) == 0 {
		columns = Columns(records)
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	f.StartTable(headers)
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = Cell(r[c])
		}
		f.Row(row...)
	}
	return f.EndTable()
}

// Columns picks the table columns for records: the well known leading
// fields first, then other scalar fields in alphabetical order.
func Columns(records []map[string]any) []string {
	scalar := map[string]bool{}
	for _, r := range records {
		for k, v := range r {
			switch v.(type) {
			case map[string]any, []any:
				if !scalar[k] {
					scalar[k] = false
				}
			default:
				scalar[k] = true
			}
		}
	}

	var columns []string
	for _, k := range leadingColumns {
		if _, ok := scalar[k]; ok {
			columns = append(columns, k)
			delete(scalar, k)
		}
	}
	var rest []string
	for k, ok := range scalar {
		if ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	columns = append(columns, rest...)
	if len(columns) > maxColumns {
		columns = columns[:maxColumns]
	}
	return columns
}

// Cell renders a value for a table cell. Nested records show their name,
// subject or id.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	if m, ok := asMap(v); ok {
		for _, k := range []string{"name", "subject", "id"} {
			if inner, ok := m[k]; ok && inner != nil {
				return Cell(inner)
			}
		}
	}
	if items, ok := listItems(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = Cell(item)
		}
		return strings.Join(parts, ", ")
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

// asMap accepts map[string]any and named map types such as sdk4me.Object.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	if !rv.Type().ConvertibleTo(reflect.TypeOf(map[string]any{})) {
		return nil, false
	}
	return rv.Convert(reflect.TypeOf(map[string]any{})).Interface().(map[string]any), true
}

func listItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// StartTable writes table headers. Returns true if in text mode.
func (f *Formatter) StartTable(headers []string) bool {
	if IsJSON(f.ctx) {
		return false
	}

	for i, h := range headers {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, h)
	}
	_, _ = fmt.Fprintln(f.tabWriter)
	return true
}

// Row writes a single row to the table. Tabs and newlines inside a column
// are flattened so they cannot break the layout.
func (f *Formatter) Row(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, flatten(col))
	}
	_, _ = fmt.Fprintln(f.tabWriter)
}

var flattener = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ")

func flatten(s string) string {
	return flattener.Replace(s)
}

// EndTable flushes the table output.
func (f *Formatter) EndTable() error {
	return f.tabWriter.Flush()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}
