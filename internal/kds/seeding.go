package kds

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DemoVenueID is the fixed venue the demo seed populates, so demo clients
// have a stable URL to point at.
var DemoVenueID = uuid.MustParse("d0000000-0000-4000-8000-000000000001")

// Seeds returns all seeds for the KDS service
func Seeds(db *mongo.Database) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "demo_stations_v1",
			Description: "Create demo stations for the demo venue",
			Run: func(ctx context.Context) error {
				return seedDemoStations(ctx, db)
			},
		},
		{
			ID:          "demo_tickets_v1",
			Description: "Create demo tickets spread across the demo stations",
			Run: func(ctx context.Context) error {
				return seedDemoTickets(ctx, db)
			},
		},
	}
}

type demoStation struct {
	id         uuid.UUID
	code       string
	name       string
	stype      stationtype.Type
	categories []string
	avgMinutes int
	capacity   int
}

func demoStations() []demoStation {
	return []demoStation{
		{id: uuid.MustParse("d0000000-0000-4000-8000-000000000011"), code: "kitchen", name: "Kitchen", stype: stationtype.Kitchen, categories: []string{"appetizers", "mains", "sides"}, avgMinutes: 12, capacity: 12},
		{id: uuid.MustParse("d0000000-0000-4000-8000-000000000012"), code: "bar", name: "Bar", stype: stationtype.Bar, categories: []string{"drinks", "beverages", "cocktails"}, avgMinutes: 4, capacity: 10},
		{id: uuid.MustParse("d0000000-0000-4000-8000-000000000013"), code: "grill", name: "Grill", stype: stationtype.Grill, categories: []string{"grill", "steaks", "burgers"}, avgMinutes: 15, capacity: 8},
	}
}

func seedDemoStations(ctx context.Context, db *mongo.Database) error {
	stations := db.Collection("stations")
	now := time.Now()

	for _, s := range demoStations() {
		doc := bson.M{
			"_id":                   s.id,
			"venue_id":              DemoVenueID,
			"code":                  s.code,
			"name":                  s.name,
			"type":                  s.stype,
			"categories":            s.categories,
			"avg_cook_time_minutes": s.avgMinutes,
			"max_capacity":          s.capacity,
			"current_load":          0,
			"active":                true,
			"created_at":            now,
			"updated_at":            now,
			"model_version":         1,
		}

		_, err := stations.UpdateOne(
			ctx,
			bson.M{"_id": s.id},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo station %s: %w", s.code, err)
		}
	}

	return nil
}

func seedDemoTickets(ctx context.Context, db *mongo.Database) error {
	tickets := db.Collection("tickets")
	stations := demoStations()
	now := time.Now()

	demo := []struct {
		id      uuid.UUID
		code    string
		station demoStation
		items   []bson.M
		status  ticketstatus.Status
		age     time.Duration
		isRush  bool
	}{
		{
			id:      uuid.MustParse("d0000000-0000-4000-8000-000000000101"),
			code:    "TKT-de000001",
			station: stations[0],
			items:   []bson.M{{"name": "Caesar Salad", "category": "appetizers", "quantity": 1}},
			status:  ticketstatus.New,
			age:     3 * time.Minute,
		},
		{
			id:      uuid.MustParse("d0000000-0000-4000-8000-000000000102"),
			code:    "TKT-de000002",
			station: stations[2],
			items:   []bson.M{{"name": "Ribeye", "category": "steaks", "quantity": 2}},
			status:  ticketstatus.InProgress,
			age:     9 * time.Minute,
			isRush:  true,
		},
		{
			id:      uuid.MustParse("d0000000-0000-4000-8000-000000000103"),
			code:    "TKT-de000003",
			station: stations[1],
			items:   []bson.M{{"name": "Mojito", "category": "cocktails", "quantity": 2}},
			status:  ticketstatus.Bumped,
			age:     15 * time.Minute,
		},
	}

	for _, d := range demo {
		createdAt := now.Add(-d.age)
		itemCount := 0
		for _, it := range d.items {
			itemCount += it["quantity"].(int)
		}

		doc := bson.M{
			"_id":           d.id,
			"venue_id":      DemoVenueID,
			"ticket_code":   d.code,
			"station_id":    d.station.id,
			"station_code":  d.station.code,
			"station_name":  d.station.name,
			"order_id":      uuid.New(),
			"items":         d.items,
			"item_count":    itemCount,
			"status":        d.status,
			"priority":      PriorityNormal,
			"course":        "main",
			"is_rush":       d.isRush,
			"table_number":  "T1",
			"server_name":   "demo",
			"created_at":    createdAt,
			"updated_at":    now,
			"model_version": 1,
		}

		if d.isRush {
			doc["priority"] = PriorityRush
		}
		if d.status == ticketstatus.InProgress {
			doc["started_at"] = createdAt.Add(time.Minute)
		}
		if d.status == ticketstatus.Bumped {
			doc["started_at"] = createdAt.Add(time.Minute)
			doc["bumped_at"] = createdAt.Add(6 * time.Minute)
			doc["cook_time_seconds"] = int64((6 * time.Minute) / time.Second)
		}

		_, err := tickets.UpdateOne(
			ctx,
			bson.M{"_id": d.id},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo ticket %s: %w", d.code, err)
		}
	}

	return nil
}

// ApplyDemoSeeds applies demo seeds if enabled via config
func ApplyDemoSeeds(ctx context.Context, config *aqm.Config, db *mongo.Database, logger aqm.Logger) error {
	enabled, _ := config.GetString("seed.demo.enabled")
	if enabled != "true" {
		return nil
	}

	logger.Info("Demo seeding enabled, applying demo stations and tickets...")
	tracker := seed.NewMongoTracker(db)
	seeds := Seeds(db)

	if err := seed.Apply(ctx, tracker, seeds, "kds"); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}

	logger.Info("Demo stations and tickets seeded successfully")
	return nil
}
