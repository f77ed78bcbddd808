package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hampiSummary = `{
  "title": "Hampi",
  "extract": "Hampi is a UNESCO World Heritage Site in Karnataka.",
  "content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Hampi"}}
}`

const hampiPlace = `[{
  "display_name": "Hampi, Vijayanagara, Karnataka, India",
  "type": "village",
  "lat": "15.3350",
  "lon": "76.4600",
  "address": {"village": "Hampi", "state": "Karnataka", "country": "India", "postcode": "583239"}
}]`

type recorder struct {
	mu   sync.Mutex
	reqs []*http.Request
}

func (r *recorder) all() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.reqs...)
}

func fakeServices(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	seen := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/page/summary/Hampi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(hampiSummary))
	})
	mux.HandleFunc("/osm/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Nowhere" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(hampiPlace))
	})
	mux.HandleFunc("/osm/reverse", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"Madurai, Tamil Nadu, India","type":"city","lat":"9.9","lon":"78.1",
			"address":{"city":"Madurai","state":"Tamil Nadu","country":"India"}}`))
	})
	mux.HandleFunc("/ip/8.8.8.8/json/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":37.4,"longitude":-122.1,"city":"Mountain View","region":"California","country_name":"United States","postal":"94043"}`))
	})
	mux.HandleFunc("/ip/json/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.mu.Lock()
		seen.reqs = append(seen.reqs, r)
		seen.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newClient(srv *httptest.Server) *Client {
	return New(Config{
		Enabled:      true,
		Timeout:      2 * time.Second,
		UserAgent:    "bharathvani-test",
		WikipediaURL: srv.URL + "/wiki",
		NominatimURL: srv.URL + "/osm",
		IPAPIURL:     srv.URL + "/ip",
		ProbeURL:     srv.URL + "/",
	}, nil)
}

func TestSummary(t *testing.T) {
	srv, seen := fakeServices(t)
	c := newClient(srv)

	s, ok := c.Summary(context.Background(), "Hampi")
	require.True(t, ok)
	assert.Equal(t, "Hampi", s.Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Hampi", s.URL)
	assert.Equal(t, "bharathvani-test", seen.all()[0].Header.Get("User-Agent"))

	_, ok = c.Summary(context.Background(), "Missing Page")
	assert.False(t, ok, "404 yields no result")
	_, ok = c.Summary(context.Background(), "  ")
	assert.False(t, ok)
}

func TestPlace(t *testing.T) {
	srv, seen := fakeServices(t)
	c := newClient(srv)

	p, ok := c.Place(context.Background(), "Hampi")
	require.True(t, ok)
	assert.Equal(t, "village", p.Type)
	assert.Equal(t, "Hampi", p.City)
	assert.InDelta(t, 15.335, p.Latitude, 1e-9)
	q := seen.all()[0].URL.Query()
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "1", q.Get("limit"))
	assert.Equal(t, "1", q.Get("addressdetails"))

	_, ok = c.Place(context.Background(), "Nowhere")
	assert.False(t, ok)
}

func TestReverse(t *testing.T) {
	srv, _ := fakeServices(t)
	c := newClient(srv)

	p, ok := c.Reverse(context.Background(), 9.9, 78.1)
	require.True(t, ok)
	assert.Equal(t, "Madurai", p.City)

	_, ok = c.Reverse(context.Background(), 91, 0)
	assert.False(t, ok)
}

func TestLocate(t *testing.T) {
	srv, _ := fakeServices(t)
	c := newClient(srv)

	loc, ok := c.Locate(context.Background(), "8.8.8.8")
	require.True(t, ok)
	assert.Equal(t, "Mountain View", loc.City)
	assert.Equal(t, "United States", loc.Country)
	assert.Equal(t, "94043", loc.PostalCode)

	_, ok = c.Locate(context.Background(), "10.0.0.1")
	assert.False(t, ok, "error payload yields no result")
}

func TestSearchIsIndependent(t *testing.T) {
	srv, _ := fakeServices(t)
	c := newClient(srv)

	res := c.Search(context.Background(), "Hampi")
	assert.NotNil(t, res.Wikipedia)
	assert.NotNil(t, res.OpenStreetMap)

	res = c.Search(context.Background(), "Nowhere")
	assert.Nil(t, res.Wikipedia)
	assert.Nil(t, res.OpenStreetMap)
}

func TestFailuresDegrade(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()
	c := New(Config{Enabled: true, Timeout: 50 * time.Millisecond, WikipediaURL: slow.URL, NominatimURL: "http://127.0.0.1:1"}, nil)

	_, ok := c.Summary(context.Background(), "Hampi")
	assert.False(t, ok, "timeout yields no result")
	_, ok = c.Place(context.Background(), "Hampi")
	assert.False(t, ok, "connection refused yields no result")
}

func TestDisabled(t *testing.T) {
	srv, seen := fakeServices(t)
	c := newClient(srv)
	c.cfg.Enabled = false

	_, ok := c.Summary(context.Background(), "Hampi")
	assert.False(t, ok)
	assert.False(t, c.Online(context.Background()))
	assert.Empty(t, seen.all())
}

func TestOnline(t *testing.T) {
	srv, _ := fakeServices(t)
	assert.True(t, newClient(srv).Online(context.Background()))
}
