package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/session/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const sessionColumns = `id, user_id, consultant_id, consulting_type, status, registration_type, postcode,
	agency_id, group_id, feedback_group_id, team_session, monitoring, language_code, enquiry_message_at,
	created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.ConsultantID,
		s.ConsultingType,
		s.Status,
		s.RegistrationType,
		s.Postcode,
		s.AgencyID,
		s.GroupID,
		s.FeedbackGroupID,
		s.TeamSession,
		s.Monitoring,
		s.LanguageCode,
		s.EnquiryMessageAt,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Session, error) {
	return r.findOne(ctx, db, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
}

func (r *repo) FindByGroupID(ctx context.Context, db *gorm.DB, groupID string) (*domain.Session, error) {
	return r.findOne(ctx, db, `SELECT `+sessionColumns+` FROM sessions WHERE group_id = ? AND group_id <> ''`, groupID)
}

func (r *repo) FindByFeedbackGroupID(ctx context.Context, db *gorm.DB, groupID string) (*domain.Session, error) {
	return r.findOne(ctx, db, `SELECT `+sessionColumns+` FROM sessions WHERE feedback_group_id = ? AND feedback_group_id <> ''`, groupID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Session, error) {
	stmt := db.WithContext(ctx).Model(&domain.Session{})
	if len(filter.AgencyIDs) > 0 {
		stmt = stmt.Where("agency_id IN ?", filter.AgencyIDs)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Unassigned {
		stmt = stmt.Where("consultant_id IS NULL")
	}
	if filter.TeamSession != nil {
		stmt = stmt.Where("team_session = ?", *filter.TeamSession)
	}
	if filter.RegistrationType != "" {
		stmt = stmt.Where("registration_type = ?", filter.RegistrationType)
	}
	if filter.ConsultantID != nil {
		stmt = stmt.Where("consultant_id = ?", *filter.ConsultantID)
	}

	var out []domain.Session
	if err := stmt.Order("enquiry_message_at asc, id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) UpdateConsultantAndStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, consultantID *snowflake.ID, status domain.Status, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sessions SET consultant_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		consultantID,
		status,
		now,
		id,
	).Error
}

// MarkEnquiry only touches sessions without an enquiry timestamp; callers
// treat zero affected rows as a lost race.
func (r *repo) MarkEnquiry(ctx context.Context, db *gorm.DB, id snowflake.ID, groupID, feedbackGroupID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sessions
		 SET group_id = ?, feedback_group_id = ?, enquiry_message_at = ?, status = ?, updated_at = ?
		 WHERE id = ? AND enquiry_message_at IS NULL`,
		groupID,
		feedbackGroupID,
		at,
		domain.StatusNew,
		at,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}
