package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/internal/kds"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TicketRepo struct {
	conn   *Conn
	logger aqm.Logger
}

func NewTicketRepo(conn *Conn, logger aqm.Logger) *TicketRepo {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TicketRepo{conn: conn, logger: logger}
}

func (r *TicketRepo) collection() *mongo.Collection {
	return r.conn.Database().Collection("tickets")
}

// Start creates the ticket indexes. Ticket codes are unique per venue and
// never reused, which the unique compound index enforces durably.
func (r *TicketRepo) Start(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "venue_id", Value: 1}, {Key: "ticket_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "station_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
	}
	if _, err := r.collection().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("cannot create ticket indexes: %w", err)
	}
	return nil
}

func (r *TicketRepo) Stop(ctx context.Context) error {
	return nil
}

func (r *TicketRepo) Create(ctx context.Context, t *kds.Ticket) error {
	if t.ModelVersion == 0 {
		t.ModelVersion = 1
	}

	_, err := r.collection().InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("cannot insert ticket: %w", err)
	}
	return nil
}

func (r *TicketRepo) Update(ctx context.Context, t *kds.Ticket) error {
	t.UpdatedAt = time.Now()

	filter := bson.M{"_id": t.ID}
	update := bson.M{"$set": t}

	result, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update ticket: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("ticket %s: %w", t.TicketCode, kds.ErrNotFound)
	}

	return nil
}

func (r *TicketRepo) FindByCode(ctx context.Context, venueID kds.VenueID, code string) (*kds.Ticket, error) {
	var ticket kds.Ticket
	err := r.collection().FindOne(ctx, bson.M{"venue_id": venueID, "ticket_code": code}).Decode(&ticket)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("ticket %s: %w", code, kds.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot find ticket: %w", err)
	}
	return &ticket, nil
}

func (r *TicketRepo) List(ctx context.Context, filter kds.TicketFilter) ([]kds.Ticket, error) {
	query := bson.M{}

	if filter.VenueID != nil {
		query["venue_id"] = *filter.VenueID
	}

	if filter.StationID != nil {
		query["station_id"] = *filter.StationID
	}

	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	if filter.OrderID != nil {
		query["order_id"] = *filter.OrderID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []kds.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("cannot decode tickets: %w", err)
	}

	return tickets, nil
}
