package outfmt

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

func TestQueryContext(t *testing.T) {
	if GetQuery(context.Background()) != "" {
		t.Error("expected no query by default")
	}
	if GetQuery(WithQuery(context.Background(), ".id")) != ".id" {
		t.Error("expected query to round trip through context")
	}
}

func TestWriteJSONFiltered(t *testing.T) {
	var buf bytes.Buffer
	records := []sdk4me.Object{{"id": float64(1)}, {"id": float64(2)}}
	if err := WriteJSONFiltered(&buf, records, "[.[].id]", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "[1,2]\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteJSONFilteredNilSlice(t *testing.T) {
	var buf bytes.Buffer
	var records []sdk4me.Object
	if err := WriteJSONFiltered(&buf, records, "", true); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestApplyQuery(t *testing.T) {
	got, err := ApplyQuery(sdk4me.Object{"team": map[string]any{"name": "Ops"}}, ".team.name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Ops" {
		t.Errorf("got %v", got)
	}

	data := map[string]any{"id": 3}
	got, err = ApplyQuery(data, "")
	if err != nil || !reflect.DeepEqual(got, data) {
		t.Errorf("empty query: %v, %v", got, err)
	}

	if _, err := ApplyQuery(data, ".["); err == nil || !strings.Contains(err.Error(), "invalid filter expression") {
		t.Errorf("err = %v", err)
	}
}
