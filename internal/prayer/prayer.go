package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiwijaya/smarthome-server/pkg/config"
)

// Schedule holds one day of prayer times as "HH:MM" strings.
type Schedule struct {
	Date    string `json:"tanggal"`
	Imsak   string `json:"imsak"`
	Subuh   string `json:"subuh"`
	Terbit  string `json:"terbit"`
	Dhuha   string `json:"dhuha"`
	Dzuhur  string `json:"dzuhur"`
	Ashar   string `json:"ashar"`
	Maghrib string `json:"maghrib"`
	Isya    string `json:"isya"`
}

// NextPrayer names the upcoming prayer for the current wall clock.
type NextPrayer struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// Result is the full document served to clients.
type Result struct {
	Schedule *Schedule   `json:"schedule"`
	Next     *NextPrayer `json:"next"`
}

type apiResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Jadwal Schedule `json:"jadwal"`
	} `json:"data"`
}

// Fetcher retrieves the daily prayer schedule from the MyQuran API, caching
// each day's schedule in Redis until midnight.
type Fetcher struct {
	config *config.PrayerConfig
	redis  *redis.Client
	client *http.Client
}

// NewFetcher creates a prayer schedule fetcher.
func NewFetcher(cfg *config.PrayerConfig, redisClient *redis.Client) *Fetcher {
	return &Fetcher{
		config: cfg,
		redis:  redisClient,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns today's schedule plus the next upcoming prayer.
func (f *Fetcher) Fetch(ctx context.Context, now time.Time) (*Result, error) {
	schedule, err := f.schedule(ctx, now)
	if err != nil {
		return nil, err
	}

	return &Result{
		Schedule: schedule,
		Next:     nextPrayer(schedule, now),
	}, nil
}

func (f *Fetcher) schedule(ctx context.Context, now time.Time) (*Schedule, error) {
	cacheKey := fmt.Sprintf("prayer:%s", now.Format("2006-01-02"))

	cached, err := f.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var schedule Schedule
		if err := json.Unmarshal([]byte(cached), &schedule); err == nil {
			return &schedule, nil
		}
		// Corrupt cache entry, refetch.
	} else if err != redis.Nil {
		return nil, fmt.Errorf("failed to read prayer cache: %w", err)
	}

	schedule, err := f.fetchUpstream(ctx, now)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prayer schedule: %w", err)
	}

	// Cache until midnight so a fresh schedule is pulled each day.
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if err := f.redis.Set(ctx, cacheKey, data, midnight.Sub(now)).Err(); err != nil {
		fmt.Printf("Failed to cache prayer schedule: %v\n", err)
	}

	return schedule, nil
}

func (f *Fetcher) fetchUpstream(ctx context.Context, now time.Time) (*Schedule, error) {
	url := fmt.Sprintf("https://api.myquran.com/v2/sholat/jadwal/%d/%s",
		f.config.CityID, now.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build prayer request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prayer schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prayer API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read prayer response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse prayer response: %w", err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("prayer API reported failure")
	}

	return &parsed.Data.Jadwal, nil
}

// nextPrayer picks the first prayer whose time is still ahead of now. After
// Isya it rolls over to tomorrow's Subuh.
func nextPrayer(schedule *Schedule, now time.Time) *NextPrayer {
	entries := []NextPrayer{
		{Name: "Subuh", Time: schedule.Subuh},
		{Name: "Dzuhur", Time: schedule.Dzuhur},
		{Name: "Ashar", Time: schedule.Ashar},
		{Name: "Maghrib", Time: schedule.Maghrib},
		{Name: "Isya", Time: schedule.Isya},
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time < entries[j].Time
	})

	current := now.Format("15:04")
	for _, entry := range entries {
		if entry.Time > current {
			next := entry
			return &next
		}
	}

	// All prayers for today have passed.
	return &NextPrayer{Name: "Subuh", Time: schedule.Subuh}
}
