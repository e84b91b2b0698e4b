package kds

import (
	"time"
)

// defaultMetricsWindowHours is used when the caller does not bound the
// reporting window.
const defaultMetricsWindowHours = 24

// Performance aggregates bump history into cook-time summaries for the
// management dashboard.
type Performance struct {
	store *VenueStore
}

func NewPerformance(store *VenueStore) *Performance {
	return &Performance{store: store}
}

type MetricsSummary struct {
	WindowHours        int     `json:"window_hours"`
	StationCode        string  `json:"station_code,omitempty"`
	TotalTickets       int     `json:"total_tickets"`
	AvgCookTimeSeconds float64 `json:"avg_cook_time_seconds"`
	MinCookTimeSeconds int64   `json:"min_cook_time_seconds"`
	MaxCookTimeSeconds int64   `json:"max_cook_time_seconds"`
	RushTickets        int     `json:"rush_tickets"`
	RecalledTickets    int     `json:"recalled_tickets"`
	TotalItems         int     `json:"total_items"`
}

// Summary aggregates the bump history records inside the window. An empty
// window yields an all-zero summary, not an error.
func (p *Performance) Summary(venueID VenueID, stationCode string, windowHours int) (*MetricsSummary, error) {
	if windowHours <= 0 {
		windowHours = defaultMetricsWindowHours
	}

	filter := HistoryFilter{
		VenueID: venueID,
		Since:   time.Now().Add(-time.Duration(windowHours) * time.Hour),
	}
	if stationCode != "" {
		station, err := p.store.StationByCode(venueID, stationCode)
		if err != nil {
			return nil, err
		}
		filter.StationID = &station.ID
	}

	summary := &MetricsSummary{WindowHours: windowHours, StationCode: stationCode}
	records := p.store.History(filter)
	if len(records) == 0 {
		return summary, nil
	}

	var totalCook int64
	for i, rec := range records {
		summary.TotalTickets++
		summary.TotalItems += rec.ItemCount
		totalCook += rec.CookTimeSeconds
		if rec.WasRush {
			summary.RushTickets++
		}
		if rec.WasRecalled {
			summary.RecalledTickets++
		}
		if i == 0 || rec.CookTimeSeconds < summary.MinCookTimeSeconds {
			summary.MinCookTimeSeconds = rec.CookTimeSeconds
		}
		if rec.CookTimeSeconds > summary.MaxCookTimeSeconds {
			summary.MaxCookTimeSeconds = rec.CookTimeSeconds
		}
	}
	summary.AvgCookTimeSeconds = float64(totalCook) / float64(summary.TotalTickets)
	return summary, nil
}
