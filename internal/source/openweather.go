// Package source normalizes raw weather-provider payloads into RawAlert
// batches for the ingestion pipeline.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// ErrUnavailable wraps provider/network failures so callers can treat a
// failed fetch as "batch aborted, nothing ingested".
var ErrUnavailable = errors.New("weather source unavailable")

// Adapter fetches the hazard notices active at a position. A nil error with
// an empty slice means no active alerts.
type Adapter interface {
	FetchAlerts(ctx context.Context, latitude, longitude float64) ([]models.RawAlert, error)
}

type owAlert struct {
	Event       string   `json:"event"`
	Description string   `json:"description"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	SenderName  string   `json:"sender_name"`
	Tags        []string `json:"tags"`
}

type owResponse struct {
	Alerts []owAlert `json:"alerts"`
}

// OpenWeather pulls alerts from the One Call endpoint.
type OpenWeather struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenWeather(baseURL, apiKey string, timeout time.Duration) *OpenWeather {
	return &OpenWeather{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OpenWeather) FetchAlerts(ctx context.Context, latitude, longitude float64) ([]models.RawAlert, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", latitude))
	q.Set("lon", fmt.Sprintf("%f", longitude))
	q.Set("exclude", "minutely,hourly")
	q.Set("units", "metric")
	q.Set("appid", o.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d - status: %s", ErrUnavailable, resp.StatusCode, resp.Status)
	}

	var data owResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: error decoding resp.Body: %v", ErrUnavailable, err)
	}

	raws := make([]models.RawAlert, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		sender := a.SenderName
		if sender == "" {
			sender = "Weather Service"
		}
		raws = append(raws, models.RawAlert{
			Event:       a.Event,
			Description: a.Description,
			Start:       a.Start,
			End:         a.End,
			SenderName:  sender,
			Tags:        a.Tags,
		})
	}

	return raws, nil
}
