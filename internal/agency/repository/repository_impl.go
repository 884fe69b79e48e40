package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/agency/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, agency *domain.Agency) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agencies (id, name, postcode, consulting_type, team_agency, offline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		agency.ID,
		agency.Name,
		agency.Postcode,
		agency.ConsultingType,
		agency.TeamAgency,
		agency.Offline,
		agency.CreatedAt,
		agency.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Agency, error) {
	var agency domain.Agency
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, postcode, consulting_type, team_agency, offline, created_at, updated_at
		 FROM agencies WHERE id = ?`,
		id,
	).Scan(&agency).Error
	if err != nil {
		return nil, err
	}
	if agency.ID == 0 {
		return nil, nil
	}
	return &agency, nil
}
