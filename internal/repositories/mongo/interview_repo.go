package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type InterviewRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	// Save replaces the mutable session fields after the service advanced it.
	Save(ctx context.Context, s *models.InterviewSession) error
	Finish(ctx context.Context, sessionID, reason, reportID string, endedAt time.Time) error
	SetQuestionAudioURL(ctx context.Context, sessionID, questionID, audioURL string) error
}

type interviewRepo struct {
	col *mongo.Collection
}

func NewInterviewRepo(db *mongo.Database) InterviewRepository {
	return &interviewRepo{col: db.Collection("interview_sessions")}
}

func (r *interviewRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *interviewRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *interviewRepo) Save(ctx context.Context, s *models.InterviewSession) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": s.SessionID},
		bson.M{"$set": bson.M{
			"status":             s.Status,
			"progress":           s.Progress,
			"current_question":   s.CurrentQuestion,
			"asked_question_ids": s.AskedQuestionIDs,
			"repeat_counts":      s.RepeatCounts,
		}},
	)
	return err
}

func (r *interviewRepo) Finish(ctx context.Context, sessionID, reason, reportID string, endedAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"status":           models.SessionCompleted,
			"finish_reason":    reason,
			"report_id":        reportID,
			"ended_at":         endedAt.UTC(),
			"current_question": nil,
		}},
	)
	return err
}

func (r *interviewRepo) SetQuestionAudioURL(ctx context.Context, sessionID, questionID, audioURL string) error {
	// only patch if the question is still current; a stale render must not
	// overwrite the next question's audio
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "current_question.question_id": questionID},
		bson.M{"$set": bson.M{"current_question.audio_url": audioURL}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
