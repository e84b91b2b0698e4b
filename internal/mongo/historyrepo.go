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

// HistoryRepo stores bump history facts. The collection is insert-only;
// nothing here updates or deletes a record.
type HistoryRepo struct {
	conn   *Conn
	logger aqm.Logger
}

func NewHistoryRepo(conn *Conn, logger aqm.Logger) *HistoryRepo {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &HistoryRepo{conn: conn, logger: logger}
}

func (r *HistoryRepo) collection() *mongo.Collection {
	return r.conn.Database().Collection("bump_history")
}

func (r *HistoryRepo) Start(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "venue_id", Value: 1}, {Key: "bumped_at", Value: -1}}},
		{Keys: bson.D{{Key: "station_id", Value: 1}}},
	}
	if _, err := r.collection().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("cannot create bump history indexes: %w", err)
	}
	return nil
}

func (r *HistoryRepo) Stop(ctx context.Context) error {
	return nil
}

func (r *HistoryRepo) Append(ctx context.Context, rec *kds.BumpHistoryRecord) error {
	_, err := r.collection().InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("cannot insert bump history record: %w", err)
	}
	return nil
}

func (r *HistoryRepo) List(ctx context.Context, filter kds.HistoryFilter) ([]kds.BumpHistoryRecord, error) {
	query := bson.M{"venue_id": filter.VenueID}

	if filter.StationID != nil {
		query["station_id"] = *filter.StationID
	}

	if !filter.Since.IsZero() {
		query["bumped_at"] = bson.M{"$gte": filter.Since}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "bumped_at", Value: 1}})

	cursor, err := r.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find bump history records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []kds.BumpHistoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("cannot decode bump history records: %w", err)
	}

	return records, nil
}
