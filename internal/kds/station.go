package kds

import (
	"time"

	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
)

// CategoryAll is the wildcard entry in a station's category set. A station
// carrying it accepts every item category during routing.
const CategoryAll = "all"

type Station struct {
	ID      StationID        `bson:"_id" json:"id"`
	VenueID VenueID          `bson:"venue_id" json:"venue_id"`
	Code    string           `bson:"code" json:"code"`
	Name    string           `bson:"name" json:"name"`
	Type    stationtype.Type `bson:"type" json:"type"`

	// Categories routes item categories to this station; may contain "all".
	Categories []string `bson:"categories" json:"categories"`

	AvgCookTimeMinutes int `bson:"avg_cook_time_minutes" json:"avg_cook_time_minutes"`

	// MaxCapacity is advisory only. Tickets above capacity are still
	// accepted; displays use it for utilization.
	MaxCapacity int `bson:"max_capacity" json:"max_capacity"`

	// CurrentLoad counts tickets in new, in_progress or recalled status.
	CurrentLoad int `bson:"current_load" json:"current_load"`

	Active bool `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

// TargetSeconds is the cook-time SLA target used for alert classification.
func (s *Station) TargetSeconds() int64 {
	return int64(s.AvgCookTimeMinutes) * 60
}

// Handles reports whether the station's category set covers the given
// item category, either exactly or through the wildcard.
func (s *Station) Handles(category string) bool {
	for _, c := range s.Categories {
		if c == CategoryAll || c == category {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand out of the store.
func (s *Station) Clone() *Station {
	cp := *s
	if s.Categories != nil {
		cp.Categories = make([]string, len(s.Categories))
		copy(cp.Categories, s.Categories)
	}
	return &cp
}

// StationUpdate carries the mutable station fields for Update. Nil fields
// are left unchanged.
type StationUpdate struct {
	Name               *string           `json:"name,omitempty"`
	Type               *stationtype.Type `json:"type,omitempty"`
	Categories         []string          `json:"categories,omitempty"`
	AvgCookTimeMinutes *int              `json:"avg_cook_time_minutes,omitempty"`
	MaxCapacity        *int              `json:"max_capacity,omitempty"`
	Active             *bool             `json:"active,omitempty"`
}
