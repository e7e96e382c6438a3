package sdk4me

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

func pagedServer(t *testing.T, secondPageStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/requests" {
			http.NotFound(w, r)
			return
		}
		queries = append(queries, r.URL.RawQuery)
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/v1/requests?page=1&per_page=100>; rel="first", <%s/v1/requests?page=2&per_page=100>; rel="next"`, server.URL, server.URL))
			_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
		default:
			w.Header().Set("Link", fmt.Sprintf(`<%s/v1/requests?page=1&per_page=100>; rel="first"`, server.URL))
			w.WriteHeader(secondPageStatus)
			if secondPageStatus != http.StatusOK {
				_, _ = w.Write([]byte(`{"message":"boom"}`))
				return
			}
			_, _ = w.Write([]byte(`[{"id":3}]`))
		}
	}))
	return server, &queries
}

func TestEachFollowsLinkHeader(t *testing.T) {
	server, queries := pagedServer(t, http.StatusOK)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	var ids []float64
	count, err := client.Each(context.Background(), "/requests", Params{P("status", "assigned")}, nil, func(o Object) error {
		ids = append(ids, o.Get("id").(float64))
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if !reflect.DeepEqual(ids, []float64{1, 2, 3}) {
		t.Errorf("ids = %v", ids)
	}
	want := []string{"per_page=100&status=assigned", "page=2&per_page=100"}
	if !reflect.DeepEqual(*queries, want) {
		t.Errorf("queries = %v, want %v", *queries, want)
	}
}

func TestEachCallerPageSizeWins(t *testing.T) {
	server, queries := pagedServer(t, http.StatusOK)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Each(context.Background(), "requests", Params{P("fields", "id"), P("per_page", 25)}, nil, func(Object) error { return nil })
	if err != nil {
		t.Fatalf("Each() error: %v", err)
	}
	if got := (*queries)[0]; got != "per_page=25&fields=id" {
		t.Errorf("first query = %q", got)
	}
}

func TestEachInvalidPage(t *testing.T) {
	server, _ := pagedServer(t, http.StatusNotFound)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	var ids []float64
	count, err := client.Each(context.Background(), "/requests", nil, nil, func(o Object) error {
		ids = append(ids, o.Get("id").(float64))
		return nil
	})

	var pagErr *PaginationError
	if !errors.As(err, &pagErr) {
		t.Fatalf("expected PaginationError, got %v", err)
	}
	if pagErr.Response.Message() != "404: boom" {
		t.Errorf("message = %q", pagErr.Response.Message())
	}
	if count != 2 || !reflect.DeepEqual(ids, []float64{1, 2}) {
		t.Errorf("visited %v (count %d), want [1 2]", ids, count)
	}
}

func TestEachVisitErrorAborts(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Link", `<http://ignored/v1/people?page=2>; rel="next"`)
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	stop := errors.New("stop")
	count, err := client.Each(context.Background(), "/people", nil, nil, func(Object) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want stop", err)
	}
	if count != 0 || atomic.LoadInt32(&hits) != 1 {
		t.Errorf("count = %d, hits = %d", count, hits)
	}
}

func TestAllCollectsRecords(t *testing.T) {
	server, _ := pagedServer(t, http.StatusOK)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	records, err := client.All(context.Background(), "/requests", nil, nil)
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if len(records) != 3 || records[2].Text("id") != "3" {
		t.Errorf("records = %v", records)
	}
}
