package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peyvandapp/peyvand-backend/internal/database"
	"github.com/peyvandapp/peyvand-backend/internal/models"
)

const reportsCollection = "reports"

// MongoReportStore owns the reports collection. Status transitions are
// conditional updates filtered on the expected current status, so a
// racing evaluation or sweep loses cleanly with ErrConcurrency instead
// of overwriting.
type MongoReportStore struct{}

func NewMongoReportStore() *MongoReportStore {
	return &MongoReportStore{}
}

func (s *MongoReportStore) col() *mongo.Collection {
	return database.DB.Collection(reportsCollection)
}

// EnsureReportIndexes creates the indexes evaluation and sweeping query
// against. Called once at boot.
func EnsureReportIndexes(ctx context.Context) error {
	store := NewMongoReportStore()
	_, err := store.col().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reported_user_id", Value: 1}, {Key: "violation_type", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "is_warning", Value: 1}, {Key: "warning_expiry", Value: 1}}},
	})
	return err
}

// CreateReport inserts a new pending report.
func (s *MongoReportStore) CreateReport(ctx context.Context, reporterID, reportedUserID string, vt models.ViolationType, description string, evidence []string) (*models.Report, error) {
	now := time.Now()
	report := models.Report{
		ID:             primitive.NewObjectID(),
		CreatedAt:      now,
		UpdatedAt:      now,
		ReporterID:     reporterID,
		ReportedUserID: reportedUserID,
		ViolationType:  vt,
		Description:    description,
		Evidence:       evidence,
		Status:         models.ReportPending,
		ActionTaken:    models.ActionNone,
	}

	if _, err := s.col().InsertOne(ctx, report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetReport fetches one report by hex id.
func (s *MongoReportStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	var report models.Report
	err = s.col().FindOne(ctx, bson.M{"_id": objectID}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// HasRecentDuplicate reports whether the same reporter already reported
// the same user for the same violation type within the window.
func (s *MongoReportStore) HasRecentDuplicate(ctx context.Context, reporterID, reportedUserID string, vt models.ViolationType, since time.Time) (bool, error) {
	count, err := s.col().CountDocuments(ctx, bson.M{
		"reporter_id":      reporterID,
		"reported_user_id": reportedUserID,
		"violation_type":   vt,
		"created_at":       bson.M{"$gte": since},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LiveWarning returns the user's live warning for this violation type:
// warning_sent status with warning_expiry still in the future. The
// expiry filter is the authoritative liveness check; a warning the
// sweeper has not resolved yet no longer counts once expired.
func (s *MongoReportStore) LiveWarning(ctx context.Context, userID string, vt models.ViolationType, now time.Time) (*models.Report, error) {
	var report models.Report
	err := s.col().FindOne(ctx, bson.M{
		"reported_user_id": userID,
		"violation_type":   vt,
		"is_warning":       true,
		"status":           models.ReportWarningSent,
		"warning_expiry":   bson.M{"$gt": now},
	}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// CountConfirmedViolations counts resolved or warning_sent reports
// against the user for this violation type. A nil since counts the
// user's lifetime history.
func (s *MongoReportStore) CountConfirmedViolations(ctx context.Context, userID string, vt models.ViolationType, since *time.Time) (int64, error) {
	filter := bson.M{
		"reported_user_id": userID,
		"violation_type":   vt,
		"status":           bson.M{"$in": []models.ReportStatus{models.ReportResolved, models.ReportWarningSent}},
	}
	if since != nil {
		filter["created_at"] = bson.M{"$gte": *since}
	}
	return s.col().CountDocuments(ctx, filter)
}

// MarkWarningSent transitions pending → warning_sent, recording the
// grace period. Fails with ErrConcurrency when the report is no longer
// pending, ErrNotFound when it does not exist.
func (s *MongoReportStore) MarkWarningSent(ctx context.Context, id string, now, expiry time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	result, err := s.col().UpdateOne(ctx,
		bson.M{"_id": objectID, "status": models.ReportPending},
		bson.M{"$set": bson.M{
			"status":            models.ReportWarningSent,
			"is_warning":        true,
			"warning_expiry":    expiry,
			"action_taken":      models.ActionWarning,
			"is_auto_processed": true,
			"auto_processed_at": now,
			"updated_at":        now,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return s.transitionConflict(ctx, objectID)
	}
	return nil
}

// ResolvePending transitions pending → resolved with the action the
// decider chose. Same concurrency contract as MarkWarningSent.
func (s *MongoReportStore) ResolvePending(ctx context.Context, id string, now time.Time, action models.ActionType, durationHours int, expiresAt *time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	result, err := s.col().UpdateOne(ctx,
		bson.M{"_id": objectID, "status": models.ReportPending},
		bson.M{"$set": bson.M{
			"status":            models.ReportResolved,
			"action_taken":      action,
			"action_duration":   durationHours,
			"action_expires_at": expiresAt,
			"is_auto_processed": true,
			"auto_processed_at": now,
			"updated_at":        now,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return s.transitionConflict(ctx, objectID)
	}
	return nil
}

// ResolveWarning transitions warning_sent → resolved, recording whether
// the warning was escalated or merely expired.
func (s *MongoReportStore) ResolveWarning(ctx context.Context, id string, now time.Time, resolution string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	result, err := s.col().UpdateOne(ctx,
		bson.M{"_id": objectID, "status": models.ReportWarningSent},
		bson.M{"$set": bson.M{
			"status":     models.ReportResolved,
			"resolution": resolution,
			"updated_at": now,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return s.transitionConflict(ctx, objectID)
	}
	return nil
}

// transitionConflict distinguishes a lost race from a missing document.
func (s *MongoReportStore) transitionConflict(ctx context.Context, id primitive.ObjectID) error {
	count, err := s.col().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConcurrency
}

// SetNotificationSent records that the outcome notification was
// prepared for this report.
func (s *MongoReportStore) SetNotificationSent(ctx context.Context, id string, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	_, err = s.col().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": bson.M{
		"notification_sent":    true,
		"notification_sent_at": at,
		"updated_at":           at,
	}})
	return err
}

// AttachEvidence appends an evidence URL to a report.
func (s *MongoReportStore) AttachEvidence(ctx context.Context, id string, url string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid report id", ErrValidation)
	}

	result, err := s.col().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{
		"$push": bson.M{"evidence": url},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpiredWarnings returns warnings whose grace period has passed and
// which no evaluation has resolved yet.
func (s *MongoReportStore) ExpiredWarnings(ctx context.Context, now time.Time) ([]models.Report, error) {
	cursor, err := s.col().Find(ctx, bson.M{
		"is_warning":     true,
		"status":         models.ReportWarningSent,
		"warning_expiry": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// ReportFilter narrows the admin report listing.
type ReportFilter struct {
	Status         models.ReportStatus
	ViolationType  models.ViolationType
	ActionTaken    models.ActionType
	IsWarning      *bool
	ReportedUserID string
	ReporterID     string
}

func (f ReportFilter) query() bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.ViolationType != "" {
		query["violation_type"] = f.ViolationType
	}
	if f.ActionTaken != "" {
		query["action_taken"] = f.ActionTaken
	}
	if f.IsWarning != nil {
		query["is_warning"] = *f.IsWarning
	}
	if f.ReportedUserID != "" {
		query["reported_user_id"] = f.ReportedUserID
	}
	if f.ReporterID != "" {
		query["reporter_id"] = f.ReporterID
	}
	return query
}

// ListReports returns one page of reports, newest first, plus the total
// match count.
func (s *MongoReportStore) ListReports(ctx context.Context, filter ReportFilter, page, limit int) ([]models.Report, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := filter.query()
	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ViolationHistory returns the user's confirmed violations, newest
// first.
func (s *MongoReportStore) ViolationHistory(ctx context.Context, userID string, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 10
	}
	cursor, err := s.col().Find(ctx, bson.M{
		"reported_user_id": userID,
		"status":           bson.M{"$in": []models.ReportStatus{models.ReportResolved, models.ReportWarningSent}},
	}, options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// ReportStats summarizes reporting activity since a cutoff.
type ReportStats struct {
	TotalReports       int64            `json:"total_reports"`
	PendingReports     int64            `json:"pending_reports"`
	ResolvedReports    int64            `json:"resolved_reports"`
	WarningsSent       int64            `json:"warnings_sent"`
	PunishmentsApplied int64            `json:"punishments_applied"`
	TopViolationTypes  []ViolationCount `json:"top_violation_types"`
}

type ViolationCount struct {
	Type  models.ViolationType `json:"type" bson:"_id"`
	Label string               `json:"label" bson:"-"`
	Count int64                `json:"count" bson:"count"`
}

// Stats aggregates counts for the admin dashboard.
func (s *MongoReportStore) Stats(ctx context.Context, since time.Time) (*ReportStats, error) {
	stats := &ReportStats{}
	base := bson.M{"created_at": bson.M{"$gte": since}}

	count := func(extra bson.M) (int64, error) {
		filter := bson.M{"created_at": base["created_at"]}
		for k, v := range extra {
			filter[k] = v
		}
		return s.col().CountDocuments(ctx, filter)
	}

	var err error
	if stats.TotalReports, err = count(bson.M{}); err != nil {
		return nil, err
	}
	if stats.PendingReports, err = count(bson.M{"status": models.ReportPending}); err != nil {
		return nil, err
	}
	if stats.ResolvedReports, err = count(bson.M{"status": models.ReportResolved}); err != nil {
		return nil, err
	}
	if stats.WarningsSent, err = count(bson.M{"is_warning": true}); err != nil {
		return nil, err
	}
	if stats.PunishmentsApplied, err = count(bson.M{"action_taken": bson.M{
		"$in": []models.ActionType{models.ActionTemporaryBan, models.ActionPermanentBan},
	}}); err != nil {
		return nil, err
	}

	cursor, err := s.col().Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$match", Value: base}},
		bson.D{{Key: "$group", Value: bson.M{"_id": "$violation_type", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.M{"count": -1}}},
		bson.D{{Key: "$limit", Value: 5}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &stats.TopViolationTypes); err != nil {
		return nil, err
	}
	for i := range stats.TopViolationTypes {
		stats.TopViolationTypes[i].Label = stats.TopViolationTypes[i].Type.Label()
	}

	return stats, nil
}
