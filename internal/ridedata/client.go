package ridedata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/squadra-app/livetrack/internal/models"
)

// Service is the ride data backend as seen by the live screen. The screen
// only ever needs these four calls; everything else the app does goes through
// other clients.
type Service interface {
	GetLiveData(ctx context.Context, rideID string) (models.LiveData, error)
	UpdateLocation(ctx context.Context, fix models.RiderFix) error
	SendAlert(ctx context.Context, rideID string, alertType models.ActivityType, message string, location *models.Coord) error
	GetActivities(ctx context.Context, rideID string, before string, limit int) ([]models.ActivityEvent, error)
}

// ErrNotFound is returned when the ride id does not exist upstream.
var ErrNotFound = errors.New("ride not found")

// NetworkError wraps transport-level failures so the poller can tell a
// transient blip apart from a hard "this ride is gone".
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "ride data network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Client talks HTTP to the tracking gateway (or the production backend, same
// API).
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 8 * time.Second}}
}

func (c *Client) GetLiveData(ctx context.Context, rideID string) (models.LiveData, error) {
	var out models.LiveData
	err := c.getJSON(ctx, fmt.Sprintf("%s/api/v1/rides/%s/live", c.BaseURL, url.PathEscape(rideID)), &out)
	return out, err
}

func (c *Client) UpdateLocation(ctx context.Context, fix models.RiderFix) error {
	path := fmt.Sprintf("%s/api/v1/rides/%s/location", c.BaseURL, url.PathEscape(fix.RideID))
	return c.postJSON(ctx, path, fix, nil)
}

type alertRequest struct {
	AlertType models.ActivityType `json:"alert_type"`
	Message   string              `json:"message,omitempty"`
	Location  *models.Coord       `json:"location,omitempty"`
}

func (c *Client) SendAlert(ctx context.Context, rideID string, alertType models.ActivityType, message string, location *models.Coord) error {
	path := fmt.Sprintf("%s/api/v1/rides/%s/alerts", c.BaseURL, url.PathEscape(rideID))
	return c.postJSON(ctx, path, alertRequest{AlertType: alertType, Message: message, Location: location}, nil)
}

func (c *Client) GetActivities(ctx context.Context, rideID string, before string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		q.Set("before", before)
	}
	path := fmt.Sprintf("%s/api/v1/rides/%s/activities?%s", c.BaseURL, url.PathEscape(rideID), q.Encode())
	var out struct {
		Activities []models.ActivityEvent `json:"activities"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

func (c *Client) getJSON(ctx context.Context, rawurl string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, rawurl string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return &NetworkError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	default:
		return nil
	}
}
