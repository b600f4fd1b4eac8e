package vasttrafik

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }

var testCell = domain.GridCell{
	Row: 0, Col: 0,
	Bounds: domain.Bounds{MinLat: 57.55, MinLon: 11.70, MaxLat: 57.6375, MaxLon: 11.8375},
}

func TestFetchCell_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("lowerLeftLat") != "57.550000" {
			t.Errorf("lowerLeftLat = %q", q.Get("lowerLeftLat"))
		}
		if q.Get("limit") != "200" {
			t.Errorf("limit = %q", q.Get("limit"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"detailsReference":"ref-1","latitude":57.7,"longitude":11.97,
			 "line":{"name":"6","transportMode":"tram"}},
			{"detailsReference":"ref-2","latitude":57.71,"longitude":11.98,
			 "line":{"name":"16","transportMode":"bus"}}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 200, staticTokens{token: "tok"})
	records := c.FetchCell(context.Background(), testCell)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].DetailsReference != "ref-1" || records[0].Line.Name != "6" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
}

func TestFetchCell_PersistentRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 200, staticTokens{token: "tok"})
	records := c.FetchCell(context.Background(), testCell)

	if len(records) != 0 {
		t.Errorf("expected empty result after exhausted retries, got %d records", len(records))
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", n)
	}
}

func TestFetchCell_TransientFailureThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"detailsReference":"ref-1","latitude":57.7,"longitude":11.97,"line":{"name":"6"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 200, staticTokens{token: "tok"})
	records := c.FetchCell(context.Background(), testCell)

	if len(records) != 1 {
		t.Fatalf("expected 1 record after retry, got %d", len(records))
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 attempts, got %d", n)
	}
}

func TestFetchCell_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 200, staticTokens{token: "tok"})
	if records := c.FetchCell(context.Background(), testCell); len(records) != 0 {
		t.Errorf("expected empty result for malformed body, got %d records", len(records))
	}
}
