package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/canibunk/canibunk-api/pkg/config"
)

// WeatherSnapshot is the normalized weather lookup result.
type WeatherSnapshot struct {
	Description string  `json:"description"`
	TempCelsius float64 `json:"temp_celsius"`
	Humidity    int     `json:"humidity"`
}

// Summary renders the snapshot as a one-line human string for advisory text.
func (w WeatherSnapshot) Summary() string {
	return fmt.Sprintf("%s, %.1f°C, humidity %d%%", w.Description, w.TempCelsius, w.Humidity)
}

// WeatherClient fetches current conditions from OpenWeatherMap.
type WeatherClient struct {
	apiKey  string
	city    string
	baseURL string
	http    *http.Client
}

// NewWeatherClient constructs a client from advisory config.
func NewWeatherClient(cfg config.AdvisoryConfig) *WeatherClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &WeatherClient{
		apiKey:  cfg.WeatherAPIKey,
		city:    cfg.WeatherCity,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		http:    &http.Client{Timeout: timeout},
	}
}

type openWeatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Message string `json:"message"`
}

// Current returns the current conditions for the configured city.
func (c *WeatherClient) Current(ctx context.Context) (*WeatherSnapshot, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("weather api key not configured")
	}

	params := url.Values{}
	params.Set("q", c.city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather api status %d: %s", resp.StatusCode, payload.Message)
	}
	if len(payload.Weather) == 0 {
		return nil, fmt.Errorf("weather api returned no conditions")
	}

	return &WeatherSnapshot{
		Description: payload.Weather[0].Description,
		TempCelsius: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
	}, nil
}
