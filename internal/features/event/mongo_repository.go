package event

import (
	"context"
	"fmt"
	"strings"

	"go-fleetreport/internal/database"
	"go-fleetreport/pkg/condition"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// mongoFilterFields maps Filter fields to document keys.
var mongoFilterFields = map[string]string{
	"deviceID":   "device_id",
	"driverID":   "driver_id",
	"geozoneID":  "geozone_id",
	"statusCode": "status_code",
}

// MongoStore reads events from the "events" collection. Where clauses are
// Mongo extended JSON filter documents.
type MongoStore struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

func NewMongoStore(db *database.MongodbDB, log *zap.Logger) *MongoStore {
	return &MongoStore{
		Collection: db.DB.Collection("events"),
		Logger:     log,
	}
}

// EnsureIndexes creates the range query index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "device_id", Value: 1}, {Key: "event_time", Value: 1}},
	})
	return err
}

func (s *MongoStore) RangeEvents(ctx context.Context, q RangeQuery, h Handler) ([]*Record, error) {
	filter, err := buildMongoFilter(q)
	if err != nil {
		return nil, err
	}
	dir := 1
	if q.fetchDescending() {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "event_time", Value: dir}})
	if q.Limit >= 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	for cursor.Next(ctx) {
		rec := &Record{}
		if err := cursor.Decode(rec); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return deliver(orderForDelivery(records, q), h), nil
}

func (s *MongoStore) CountEvents(ctx context.Context, q RangeQuery) (int64, error) {
	filter, err := buildMongoFilter(q)
	if err != nil {
		return 0, err
	}
	opts := options.Count()
	if q.Limit >= 0 {
		opts.SetLimit(q.Limit)
	}
	n, err := s.Collection.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return clampCount(n, q), nil
}

func buildMongoFilter(q RangeQuery) (bson.M, error) {
	group := &condition.Group{
		Rules: []condition.Rule{{Field: "account_id", Operator: "eq", Value: q.AccountID}},
	}
	if q.DeviceID != "" {
		group.Rules = append(group.Rules, condition.Rule{Field: "device_id", Operator: "eq", Value: q.DeviceID})
	}
	if q.Filter != nil {
		key, ok := mongoFilterFields[q.Filter.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported event filter field %q", q.Filter.Field)
		}
		group.Rules = append(group.Rules, condition.Rule{Field: key, Operator: "eq", Value: q.Filter.Value})
	}
	if q.TimeStart > 0 {
		group.Rules = append(group.Rules, condition.Rule{Field: "event_time", Operator: "gte", Value: q.TimeStart})
	}
	if q.TimeEnd > 0 {
		group.Rules = append(group.Rules, condition.Rule{Field: "event_time", Operator: "lte", Value: q.TimeEnd})
	}
	if len(q.StatusCodes) > 0 {
		group.Rules = append(group.Rules, condition.Rule{Field: "status_code", Operator: "in", Value: q.StatusCodes})
	}
	if q.ValidGPSRequired {
		group.Rules = append(group.Rules, condition.Rule{Field: "gps_valid", Operator: "eq", Value: true})
	}
	if w := strings.TrimSpace(q.Where); w != "" {
		var raw bson.M
		if err := bson.UnmarshalExtJSON([]byte(w), false, &raw); err != nil {
			return nil, fmt.Errorf("invalid where filter: %w", err)
		}
		group.Raw = append(group.Raw, raw)
	}
	return condition.NewCompiler().Compile(group)
}
