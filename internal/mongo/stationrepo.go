package mongo

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/internal/kds"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StationRepo struct {
	conn   *Conn
	logger aqm.Logger
}

func NewStationRepo(conn *Conn, logger aqm.Logger) *StationRepo {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &StationRepo{conn: conn, logger: logger}
}

func (r *StationRepo) collection() *mongo.Collection {
	return r.conn.Database().Collection("stations")
}

func (r *StationRepo) Start(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "venue_id", Value: 1}, {Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection().Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("cannot create station index: %w", err)
	}
	return nil
}

func (r *StationRepo) Stop(ctx context.Context) error {
	return nil
}

func (r *StationRepo) Upsert(ctx context.Context, s *kds.Station) error {
	filter := bson.M{"venue_id": s.VenueID, "code": s.Code}
	update := bson.M{"$set": s}

	_, err := r.collection().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cannot upsert station: %w", err)
	}
	return nil
}

// ListAll returns every station across venues, used to warm the in-memory
// store at startup.
func (r *StationRepo) ListAll(ctx context.Context) ([]kds.Station, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find stations: %w", err)
	}
	defer cursor.Close(ctx)

	var stations []kds.Station
	if err := cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("cannot decode stations: %w", err)
	}

	return stations, nil
}

// List returns the venue's stations in registration order, which routing
// resolution depends on.
func (r *StationRepo) List(ctx context.Context, venueID kds.VenueID) ([]kds.Station, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection().Find(ctx, bson.M{"venue_id": venueID}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find stations: %w", err)
	}
	defer cursor.Close(ctx)

	var stations []kds.Station
	if err := cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("cannot decode stations: %w", err)
	}

	return stations, nil
}
