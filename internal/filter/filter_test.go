package filter

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

func TestApplyEmptyExpression(t *testing.T) {
	data := map[string]any{"subject": "test"}
	result, err := Apply(data, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result, data) {
		t.Error("empty expression should return data unchanged")
	}
}

func TestApplySelectField(t *testing.T) {
	result, err := Apply(map[string]any{"subject": "Printer on fire", "id": 12}, ".subject")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Printer on fire" {
		t.Errorf("got %v", result)
	}
}

func TestApplyNamedTypes(t *testing.T) {
	records := []sdk4me.Object{
		{"id": float64(1), "status": "assigned"},
		{"id": float64(2), "status": "completed"},
	}
	result, err := Apply(records, `[.[] | select(.status != "completed") | .id]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result, []any{float64(1)}) {
		t.Errorf("got %#v", result)
	}
}

func TestApplyShellEscapes(t *testing.T) {
	result, err := Apply(map[string]any{"status": "new"}, `.status \!= "new"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != false {
		t.Errorf("got %v", result)
	}
}

func TestApplyMultipleResults(t *testing.T) {
	result, err := ApplyFromJSON([]byte(`[{"id":1},{"id":2}]`), ".[].id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result, []any{float64(1), float64(2)}) {
		t.Errorf("got %#v", result)
	}
}

func TestApplyErrors(t *testing.T) {
	if _, err := Apply(map[string]any{}, ".["); err == nil || !strings.Contains(err.Error(), "invalid filter expression") {
		t.Errorf("parse error = %v", err)
	}
	if _, err := Apply("text", ".id"); err == nil || !strings.Contains(err.Error(), "filter error") {
		t.Errorf("run error = %v", err)
	}
	if _, err := ApplyFromJSON([]byte("{"), "."); err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("json error = %v", err)
	}
}

func TestQueryReuse(t *testing.T) {
	q, err := Compile(".id")
	if err != nil {
		t.Fatal(err)
	}
	for i, record := range []sdk4me.Object{{"id": float64(7)}, {"id": float64(8)}} {
		got, err := q.Run(record)
		if err != nil {
			t.Fatal(err)
		}
		if got != float64(7+i) {
			t.Errorf("record %d: got %v", i, got)
		}
	}
}
