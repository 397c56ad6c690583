package cloudsync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldtrack-go/internal/models"
)

var (
	ErrRemoteUnreachable = errors.New("remote unreachable")
	ErrRemoteRejected    = errors.New("remote rejected")
	ErrUnauthorized      = errors.New("remote unauthorized")
	ErrUploadFailed      = errors.New("photo upload failed")
	ErrNotConfigured     = errors.New("remote not configured")
)

// RejectedError is a remote call that completed but reported failure.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote rejected (%d)", e.Status)
}

func (e *RejectedError) Is(target error) bool {
	if target == ErrRemoteRejected {
		return true
	}
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	deviceID   string
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// RowKey accepts either a JSON string or number.
type RowKey string

func (k *RowKey) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = RowKey(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*k = RowKey(n.String())
	return nil
}

type saveLocationResponse struct {
	Row RowKey `json:"row"`
}

type listLocationsResponse struct {
	Locations []models.LocationRecord `json:"locations"`
}

type uploadPhotoRequest struct {
	ImageBase64 string `json:"image_base64"`
	Filename    string `json:"filename"`
}

type uploadPhotoResponse struct {
	PhotoLink string `json:"photo_link"`
}

type saveRouteResponse struct {
	ID int64 `json:"id"`
}

func NewClient(httpClient *http.Client, baseURL, token, deviceID string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		deviceID:   strings.TrimSpace(deviceID),
	}
}

func (c *Client) IsConfigured() bool { return c != nil && c.baseURL != "" }

// SaveLocation stores rec remotely and returns the row key the remote assigned.
func (c *Client) SaveLocation(ctx context.Context, rec models.LocationRecord) (string, error) {
	rec.RowKey = ""
	rec.Status = ""
	var out saveLocationResponse
	if err := c.do(ctx, http.MethodPost, "/locations", rec, &out); err != nil {
		return "", err
	}
	return string(out.Row), nil
}

func (c *Client) UpdateLocation(ctx context.Context, rowKey string, patch models.RecordPatch) error {
	if strings.TrimSpace(rowKey) == "" {
		return &RejectedError{Status: http.StatusBadRequest, Message: "row key required"}
	}
	return c.do(ctx, http.MethodPatch, "/locations/"+url.PathEscape(rowKey), patch, nil)
}

func (c *Client) ListLocations(ctx context.Context) ([]models.LocationRecord, error) {
	var out listLocationsResponse
	if err := c.do(ctx, http.MethodGet, "/locations", nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Locations {
		out.Locations[i].Status = models.StatusSynced
	}
	return out.Locations, nil
}

// SaveRoute sends the route as a GeoJSON LineString feature.
func (c *Client) SaveRoute(ctx context.Context, r models.Route) error {
	return c.do(ctx, http.MethodPost, "/routes", RouteFeature(r), &saveRouteResponse{})
}

// UploadPhoto returns the link of the stored photo. Every failure wraps ErrUploadFailed.
func (c *Client) UploadPhoto(ctx context.Context, data []byte, filename string) (string, error) {
	req := uploadPhotoRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Filename:    filename,
	}
	var out uploadPhotoResponse
	if err := c.do(ctx, http.MethodPost, "/photos", req, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if strings.TrimSpace(out.PhotoLink) == "" {
		return "", fmt.Errorf("%w: empty link", ErrUploadFailed)
	}
	return out.PhotoLink, nil
}

// Healthy probes the unauthenticated health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func RouteFeature(r models.Route) *geojson.Feature {
	line := make(orb.LineString, 0, len(r.Points))
	for _, p := range r.Points {
		line = append(line, orb.Point{p.Lng, p.Lat})
	}
	f := geojson.NewFeature(line)
	f.Properties["start_time"] = r.StartTime
	f.Properties["duration"] = r.Duration
	f.Properties["points"] = len(r.Points)
	return f
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		token := c.token
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrRemoteUnreachable, err)
	}

	var eb envelope
	_ = json.Unmarshal(raw, &eb)

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrRemoteUnreachable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &RejectedError{Status: resp.StatusCode, Message: strings.TrimSpace(eb.Error)}
	case eb.Success != nil && !*eb.Success:
		return &RejectedError{Status: resp.StatusCode, Message: strings.TrimSpace(eb.Error)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RejectedError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// statusText is used by callers that surface remote failures verbatim.
func statusText(err error) string {
	var re *RejectedError
	if errors.As(err, &re) {
		return strconv.Itoa(re.Status) + " " + re.Message
	}
	return err.Error()
}
