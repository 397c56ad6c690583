// Package directions resolves a destination name to a driving route so the
// planner can work from a place name instead of a ready-made polyline.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"fieldtrack-go/internal/geo"
)

var (
	ErrNotFound = errors.New("destination not found")
	ErrNoRoute  = errors.New("no route to destination")
)

const userAgent = "fieldtrack-go"

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Geocoder wraps a Nominatim-compatible search API.
type Geocoder struct {
	baseURL      string
	countryCodes string
	httpClient   *http.Client
}

// NewGeocoder returns nil when baseURL is empty; callers treat a nil
// geocoder as "destination lookup unavailable".
func NewGeocoder(baseURL, countryCodes string, timeout time.Duration) *Geocoder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	return &Geocoder{
		baseURL:      baseURL,
		countryCodes: strings.TrimSpace(countryCodes),
		httpClient:   newHTTPClient(timeout),
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Place is a geocoded destination.
type Place struct {
	Name string    `json:"name"`
	At   geo.Point `json:"at"`
}

// Geocode returns the best match for query.
func (g *Geocoder) Geocode(ctx context.Context, query string) (Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", strings.TrimSpace(query))
	q.Set("limit", "1")
	if g.countryCodes != "" {
		q.Set("countrycodes", g.countryCodes)
	}
	var results []searchResult
	if err := getJSON(ctx, g.httpClient, g.baseURL+"/search?"+q.Encode(), &results); err != nil {
		return Place{}, fmt.Errorf("geocoding request: %w", err)
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return Place{}, fmt.Errorf("%w: malformed coordinates for %q", ErrNotFound, query)
	}
	return Place{Name: results[0].DisplayName, At: geo.Point{Lat: lat, Lng: lng}}, nil
}

// Router wraps an OSRM-compatible route API.
type Router struct {
	baseURL    string
	httpClient *http.Client
}

// NewRouter returns nil when baseURL is empty.
func NewRouter(baseURL string, timeout time.Duration) *Router {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	return &Router{baseURL: baseURL, httpClient: newHTTPClient(timeout)}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Drive returns the simplified driving polyline from one point to another,
// as [lng,lat] vertices.
func (r *Router) Drive(ctx context.Context, from, to geo.Point) (orb.LineString, error) {
	u := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=simplified&geometries=geojson",
		r.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)
	var resp routeResponse
	if err := getJSON(ctx, r.httpClient, u, &resp); err != nil {
		return nil, fmt.Errorf("routing request: %w", err)
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return nil, fmt.Errorf("%w: code=%s", ErrNoRoute, resp.Code)
	}
	line := make(orb.LineString, 0, len(resp.Routes[0].Geometry.Coordinates))
	for _, c := range resp.Routes[0].Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		line = append(line, orb.Point{c[0], c[1]})
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrNoRoute)
	}
	return line, nil
}

func getJSON(ctx context.Context, c *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// OSRM answers 400 with a JSON code for unroutable pairs.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}
