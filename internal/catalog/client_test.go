package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get(ClientIDHeader); got != "secret" {
			t.Errorf("client id header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("q") != "attack on titan" || q.Get("limit") != "10" || q.Get("fields") != "media_type,id" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"node":{"id":23775,"title":"Shingeki no Kyojin Movie 1","media_type":"movie"}},
			{"node":{"id":16498,"title":"Shingeki no Kyojin","media_type":"tv"}}
		],"paging":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	hits, err := c.Search(context.Background(), "attack on titan", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != 23775 || hits[1].MediaType != "tv" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestClient_Details(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime/1535" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fields := r.URL.Query().Get("fields")
		for _, f := range []string{"alternative_titles", "start_season", "media_type", "genres"} {
			if !strings.Contains(fields, f) {
				t.Errorf("fields missing %s: %s", f, fields)
			}
		}
		_, _ = w.Write([]byte(`{"id":1535,"title":"Death Note","mean":8.62,"genres":[{"id":37,"name":"Supernatural"}],"pictures":[]}`))
	}))
	defer srv.Close()

	item, err := NewClient(srv.URL, "secret").Details(context.Background(), 1535)
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "Death Note" || item.Mean != 8.62 || len(item.Genres) != 1 {
		t.Errorf("unexpected item: %+v", item)
	}
	if !strings.Contains(string(item.Raw), "pictures") {
		t.Error("raw payload should be kept")
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		notFound    bool
		unavailable bool
	}{
		{"not found", http.StatusNotFound, true, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
		{"server error", http.StatusBadGateway, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"x"}`, tt.status)
			}))
			defer srv.Close()
			_, err := NewClient(srv.URL, "id").Details(context.Background(), 1)
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("expected APIError %d, got %v", tt.status, err)
			}
			if errors.Is(err, ErrNotFound) != tt.notFound {
				t.Errorf("errors.Is(ErrNotFound) = %v", !tt.notFound)
			}
			if errors.Is(err, ErrUnavailable) != tt.unavailable {
				t.Errorf("errors.Is(ErrUnavailable) = %v", !tt.unavailable)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "id", WithTimeout(time.Second)).Search(context.Background(), "x", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "id", WithTimeout(50*time.Millisecond)).Search(context.Background(), "x", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on timeout, got %v", err)
	}
}
