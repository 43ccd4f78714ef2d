package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chouhanjibanti/interview-live/internal/models"
)

type AnswerRepository interface {
	Insert(ctx context.Context, a *models.AnswerRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]models.AnswerRecord, error)
}

type answerRepo struct {
	col *mongo.Collection
}

func NewAnswerRepo(db *mongo.Database) AnswerRepository {
	return &answerRepo{col: db.Collection("interview_answers")}
}

func (r *answerRepo) Insert(ctx context.Context, a *models.AnswerRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *answerRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AnswerRecord, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.M{"created_at": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AnswerRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
