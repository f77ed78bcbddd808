// Package lookup queries public reference services (Wikipedia summaries,
// Nominatim geocoding, IP geolocation). Every call is best-effort: failures
// are logged and reported as "no result", never as errors.
package lookup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const maxBody = 1 << 20

// Config holds service endpoints and limits.
type Config struct {
	Enabled      bool
	Timeout      time.Duration
	UserAgent    string
	WikipediaURL string
	NominatimURL string
	IPAPIURL     string
	ProbeURL     string
}

// Summary is an encyclopedia extract for a place.
type Summary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
}

// Place is one geocoding match.
type Place struct {
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	Country     string  `json:"country,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
}

// Location is an approximate position derived from an IP address.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	Country    string  `json:"country"`
	PostalCode string  `json:"postal_code"`
}

// SearchResult carries whichever lookups succeeded.
type SearchResult struct {
	Wikipedia     *Summary `json:"wikipedia,omitempty"`
	OpenStreetMap *Place   `json:"openstreetmap,omitempty"`
}

// Client is the lookup gateway.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New returns a Client. A zero timeout defaults to five seconds.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether lookups are switched on.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Summary fetches the Wikipedia page summary for place.
func (c *Client) Summary(ctx context.Context, place string) (*Summary, bool) {
	title := strings.ReplaceAll(strings.TrimSpace(place), " ", "_")
	if title == "" {
		return nil, false
	}
	body, ok := c.get(ctx, "wikipedia", strings.TrimRight(c.cfg.WikipediaURL, "/")+"/page/summary/"+url.PathEscape(title))
	if !ok {
		return nil, false
	}
	doc := gjson.ParseBytes(body)
	s := &Summary{
		Title:   doc.Get("title").String(),
		Extract: doc.Get("extract").String(),
		URL:     doc.Get("content_urls.desktop.page").String(),
	}
	if s.Title == "" {
		return nil, false
	}
	return s, true
}

// Place returns the best Nominatim match for query.
func (c *Client) Place(ctx context.Context, query string) (*Place, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	body, ok := c.get(ctx, "nominatim", strings.TrimRight(c.cfg.NominatimURL, "/")+"/search?"+q.Encode())
	if !ok {
		return nil, false
	}
	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return nil, false
	}
	return parsePlace(first), true
}

// Reverse returns the Nominatim address at the given coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Place, bool) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, false
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	body, ok := c.get(ctx, "nominatim", strings.TrimRight(c.cfg.NominatimURL, "/")+"/reverse?"+q.Encode())
	if !ok {
		return nil, false
	}
	doc := gjson.ParseBytes(body)
	if doc.Get("error").Exists() || !doc.Get("display_name").Exists() {
		return nil, false
	}
	return parsePlace(doc), true
}

// Locate geolocates ip. Private, loopback or empty addresses fall back to
// the service's view of the caller.
func (c *Client) Locate(ctx context.Context, ip string) (*Location, bool) {
	base := strings.TrimRight(c.cfg.IPAPIURL, "/")
	target := base + "/json/"
	if addr, err := netip.ParseAddr(ip); err == nil && addr.IsGlobalUnicast() && !addr.IsPrivate() {
		target = base + "/" + addr.String() + "/json/"
	}
	body, ok := c.get(ctx, "ipapi", target)
	if !ok {
		return nil, false
	}
	doc := gjson.ParseBytes(body)
	lat, lon := doc.Get("latitude"), doc.Get("longitude")
	if doc.Get("error").Bool() || !lat.Exists() || !lon.Exists() {
		return nil, false
	}
	city := doc.Get("city").String()
	if city == "" {
		city = "Unknown"
	}
	return &Location{
		Latitude:   lat.Float(),
		Longitude:  lon.Float(),
		City:       city,
		Region:     doc.Get("region").String(),
		Country:    doc.Get("country_name").String(),
		PostalCode: doc.Get("postal").String(),
	}, true
}

// Online probes general connectivity.
func (c *Client) Online(ctx context.Context) bool {
	if !c.cfg.Enabled || c.cfg.ProbeURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("connectivity probe failed", slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()
	return true
}

// Search runs the encyclopedia and geocoding lookups for place
// concurrently. Either, both or neither may be present.
func (c *Client) Search(ctx context.Context, place string) SearchResult {
	var res SearchResult
	var g errgroup.Group
	g.Go(func() error {
		if s, ok := c.Summary(ctx, place); ok {
			res.Wikipedia = s
		}
		return nil
	})
	g.Go(func() error {
		if p, ok := c.Place(ctx, place); ok {
			res.OpenStreetMap = p
		}
		return nil
	})
	_ = g.Wait()
	return res
}

func (c *Client) get(ctx context.Context, service, target string) ([]byte, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := c.fetch(ctx, target)
	if err != nil {
		c.logger.Warn("lookup failed", slog.String("service", service), slog.String("error", err.Error()))
		return nil, false
	}
	return body, true
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}
	return body, nil
}

func parsePlace(r gjson.Result) *Place {
	addr := r.Get("address")
	city := addr.Get("city").String()
	for _, k := range []string{"town", "village", "hamlet"} {
		if city != "" {
			break
		}
		city = addr.Get(k).String()
	}
	return &Place{
		DisplayName: r.Get("display_name").String(),
		Type:        r.Get("type").String(),
		Latitude:    r.Get("lat").Float(),
		Longitude:   r.Get("lon").Float(),
		City:        city,
		State:       addr.Get("state").String(),
		Country:     addr.Get("country").String(),
		Postcode:    addr.Get("postcode").String(),
	}
}
