// Package calendly looks up consultation availability from the Calendly API
package calendly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// HongKong is the zone office hours and booking days are expressed in
var HongKong = time.FixedZone("HKT", 8*3600)

const (
	officeOpenHour  = 10
	officeCloseHour = 17
)

// ErrUpstream wraps failures talking to Calendly
var ErrUpstream = errors.New("calendly request failed")

// Slot is one bookable consultation start time
type Slot struct {
	StartTime     time.Time `json:"start_time"`
	SchedulingURL string    `json:"scheduling_url,omitempty"`
}

// Config holds service configuration
type Config struct {
	BaseURL   string
	Token     string
	EventType string // event type URI, e.g. https://api.calendly.com/event_types/XXXX
	CacheTTL  time.Duration
}

type cacheEntry struct {
	slots     []Slot
	fetchedAt time.Time
}

// Service provides availability lookups with a per-day cache
type Service struct {
	baseURL    string
	token      string
	eventType  string
	cache      map[string]cacheEntry
	cacheTTL   time.Duration
	mu         sync.RWMutex
	httpClient *http.Client
	now        func() time.Time
}

// NewService creates a new Calendly service. Without a token or event type it
// serves fixed office-hour slots instead of calling the API.
func NewService(cfg Config) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.calendly.com"
	}

	return &Service{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		eventType: cfg.EventType,
		cache:     make(map[string]cacheEntry),
		cacheTTL:  cfg.CacheTTL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// Configured reports whether live Calendly lookups are enabled
func (s *Service) Configured() bool {
	return s.token != "" && s.eventType != ""
}

// Availability returns the open slots on the given Hong Kong calendar day.
// Slots already in the past are omitted.
func (s *Service) Availability(ctx context.Context, day time.Time) ([]Slot, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, HongKong)
	end := start.AddDate(0, 0, 1)
	now := s.now()
	if !end.After(now) {
		return []Slot{}, nil
	}

	key := start.Format("2006-01-02")

	// Check cache first
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && now.Sub(cached.fetchedAt) < s.cacheTTL {
		s.mu.RUnlock()
		return cached.slots, nil
	}
	s.mu.RUnlock()

	var slots []Slot
	var err error
	if s.Configured() {
		from := start
		if from.Before(now) {
			from = now.Add(time.Minute)
		}
		slots, err = s.fetchAvailableTimes(ctx, from, end)
	} else {
		slots = s.officeHours(start, now)
	}
	if err != nil {
		return nil, err
	}

	// Update cache
	s.mu.Lock()
	s.cache[key] = cacheEntry{slots: slots, fetchedAt: now}
	s.mu.Unlock()

	return slots, nil
}

// InvalidateCache drops all cached days
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

type availableTimesResponse struct {
	Collection []struct {
		Status            string    `json:"status"`
		InviteesRemaining int       `json:"invitees_remaining"`
		StartTime         time.Time `json:"start_time"`
		SchedulingURL     string    `json:"scheduling_url"`
	} `json:"collection"`
}

func (s *Service) fetchAvailableTimes(ctx context.Context, from, to time.Time) ([]Slot, error) {
	q := url.Values{}
	q.Set("event_type", s.eventType)
	q.Set("start_time", from.UTC().Format(time.RFC3339))
	q.Set("end_time", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/event_type_available_times?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body availableTimesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	slots := make([]Slot, 0, len(body.Collection))
	for _, t := range body.Collection {
		if t.Status != "available" {
			continue
		}
		slots = append(slots, Slot{StartTime: t.StartTime.In(HongKong), SchedulingURL: t.SchedulingURL})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots, nil
}

// officeHours yields hourly weekday slots between opening and closing time
func (s *Service) officeHours(day, now time.Time) []Slot {
	slots := make([]Slot, 0, officeCloseHour-officeOpenHour)
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return slots
	}
	for hour := officeOpenHour; hour < officeCloseHour; hour++ {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, HongKong)
		if start.After(now) {
			slots = append(slots, Slot{StartTime: start})
		}
	}
	return slots
}
