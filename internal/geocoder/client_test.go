package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/penang-gov/surveillance/internal/shared/config"
)

func testClient(serverURL string) *Client {
	return NewClient(config.GeocoderConfig{
		URL:     serverURL,
		Timeout: 2 * time.Second,
	})
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Jalan Masjid Kapitan Keling" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("countrycodes"); got != "my" {
			t.Errorf("countrycodes = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"display_name":"Jalan Masjid Kapitan Keling, George Town","lat":"5.4170","lon":"100.3377"}]`))
	}))
	defer server.Close()

	results, err := testClient(server.URL).Search(context.Background(), "Jalan Masjid Kapitan Keling")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Lat != 5.4170 || results[0].Lng != 100.3377 {
		t.Errorf("coordinates = %v, %v", results[0].Lat, results[0].Lng)
	}
}

func TestSearchSkipsUnparsableCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"display_name":"bad","lat":"not-a-number","lon":"100.1"},{"display_name":"good","lat":"5.3","lon":"100.2"}]`))
	}))
	defer server.Close()

	results, err := testClient(server.URL).Search(context.Background(), "anywhere")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DisplayName != "good" {
		t.Errorf("results = %+v, want only the parsable entry", results)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Search(context.Background(), "anywhere"); err == nil {
		t.Fatal("expected an error for a 502 upstream")
	}
}
