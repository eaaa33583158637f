package report

import (
	"context"
	"sync"
	"time"

	"go-fleetreport/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultRunListLimit = 50

// RunRepository stores the report run history.
type RunRepository interface {
	Create(ctx context.Context, run *RunRecord) error
	List(ctx context.Context, accountID string, limit int64) ([]RunRecord, error)
}

type RunRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewRunRepository(db *database.MongodbDB) RunRepository {
	return &RunRepositoryImpl{
		Collection: db.DB.Collection("report_runs"),
	}
}

func (r *RunRepositoryImpl) Create(ctx context.Context, run *RunRecord) error {
	run.CreatedAt = time.Now()
	res, err := r.Collection.InsertOne(ctx, run)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		run.ID = oid
	}
	return nil
}

// List returns the account's most recent runs first.
func (r *RunRepositoryImpl) List(ctx context.Context, accountID string, limit int64) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.Collection.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	runs := []RunRecord{}
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// MemoryRunRepository keeps the run history in process.
type MemoryRunRepository struct {
	mu   sync.Mutex
	runs []RunRecord
}

func (m *MemoryRunRepository) Create(ctx context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = primitive.NewObjectID()
	run.CreatedAt = time.Now()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *MemoryRunRepository) List(ctx context.Context, accountID string, limit int64) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	out := []RunRecord{}
	for i := len(m.runs) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if m.runs[i].AccountID == accountID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}
