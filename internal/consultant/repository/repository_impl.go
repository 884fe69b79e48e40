package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/consultant/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const consultantColumns = `id, identity_id, chat_id, username, email, first_name, last_name,
	team_consultant, absent, absence_message, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Consultant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consultants (`+consultantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.IdentityID,
		c.ChatID,
		c.Username,
		c.Email,
		c.FirstName,
		c.LastName,
		c.TeamConsultant,
		c.Absent,
		c.AbsenceMessage,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Consultant, error) {
	return r.findOne(ctx, db, `SELECT `+consultantColumns+` FROM consultants WHERE id = ?`, id)
}

func (r *repo) FindByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Consultant, error) {
	return r.findOne(ctx, db, `SELECT `+consultantColumns+` FROM consultants WHERE chat_id = ? AND chat_id <> ''`, chatID)
}

func (r *repo) FindByIdentityID(ctx context.Context, db *gorm.DB, identityID string) (*domain.Consultant, error) {
	return r.findOne(ctx, db, `SELECT `+consultantColumns+` FROM consultants WHERE identity_id = ?`, identityID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Consultant, error) {
	var c domain.Consultant
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListByAgency(ctx context.Context, db *gorm.DB, agencyID snowflake.ID) ([]domain.Consultant, error) {
	var out []domain.Consultant
	err := db.WithContext(ctx).Raw(
		`SELECT c.id, c.identity_id, c.chat_id, c.username, c.email, c.first_name, c.last_name,
		        c.team_consultant, c.absent, c.absence_message, c.created_at, c.updated_at
		 FROM consultants c
		 JOIN consultant_agencies ca ON ca.consultant_id = c.id
		 WHERE ca.agency_id = ?
		 ORDER BY c.id`,
		agencyID,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ListAgencies(ctx context.Context, db *gorm.DB, consultantID snowflake.ID) ([]domain.ConsultantAgency, error) {
	var out []domain.ConsultantAgency
	err := db.WithContext(ctx).Raw(
		`SELECT id, consultant_id, agency_id, consulting_type, created_at
		 FROM consultant_agencies WHERE consultant_id = ? ORDER BY id`,
		consultantID,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) InsertAgency(ctx context.Context, db *gorm.DB, rel *domain.ConsultantAgency) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consultant_agencies (id, consultant_id, agency_id, consulting_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rel.ID,
		rel.ConsultantID,
		rel.AgencyID,
		rel.ConsultingType,
		rel.CreatedAt,
	).Error
}

func (r *repo) DeleteAgency(ctx context.Context, db *gorm.DB, consultantID, agencyID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM consultant_agencies WHERE consultant_id = ? AND agency_id = ?`,
		consultantID,
		agencyID,
	)
	return res.RowsAffected, res.Error
}
