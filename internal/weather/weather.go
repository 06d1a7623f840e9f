package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiwijaya/smarthome-server/pkg/config"
)

const cacheKey = "weather:current"

// Fetcher retrieves current outdoor conditions from Open-Meteo, caching the
// raw response in Redis so the upstream API is hit at most once per TTL.
type Fetcher struct {
	config *config.WeatherConfig
	redis  *redis.Client
	client *http.Client
}

// NewFetcher creates a weather fetcher.
func NewFetcher(cfg *config.WeatherConfig, redisClient *redis.Client) *Fetcher {
	return &Fetcher{
		config: cfg,
		redis:  redisClient,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the current forecast document, from cache when fresh. On
// upstream failure a stale cached document is returned if one exists.
func (f *Fetcher) Fetch(ctx context.Context) (json.RawMessage, error) {
	cached, err := f.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		return json.RawMessage(cached), nil
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("failed to read weather cache: %w", err)
	}

	data, err := f.fetchUpstream(ctx)
	if err != nil {
		// Serve a stale document if the upstream is down.
		stale, staleErr := f.redis.Get(ctx, cacheKey+":stale").Result()
		if staleErr == nil {
			return json.RawMessage(stale), nil
		}
		return nil, err
	}

	if err := f.redis.Set(ctx, cacheKey, data, f.config.CacheTTL).Err(); err != nil {
		fmt.Printf("Failed to cache weather data: %v\n", err)
	}
	// Keep a long-lived copy for stale fallback.
	if err := f.redis.Set(ctx, cacheKey+":stale", data, 24*time.Hour).Err(); err != nil {
		fmt.Printf("Failed to cache stale weather copy: %v\n", err)
	}

	return data, nil
}

func (f *Fetcher) fetchUpstream(ctx context.Context) ([]byte, error) {
	url := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast"+
			"?latitude=%.4f&longitude=%.4f"+
			"&current=temperature_2m,relative_humidity_2m,apparent_temperature,"+
			"weather_code,wind_speed_10m,precipitation,uv_index,is_day,cloud_cover"+
			"&daily=weather_code,temperature_2m_max,temperature_2m_min,"+
			"precipitation_probability_max"+
			"&timezone=auto&forecast_days=3",
		f.config.Latitude, f.config.Longitude,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response: %w", err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("weather API returned invalid JSON")
	}

	return data, nil
}
