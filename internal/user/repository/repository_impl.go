package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/user/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, identity_id, chat_id, username, email, language_formal, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.IdentityID,
		user.ChatID,
		user.Username,
		user.Email,
		user.LanguageFormal,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *repo) FindByIdentityID(ctx context.Context, db *gorm.DB, identityID string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE identity_id = ?`, identityID)
}

func (r *repo) FindByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateChatID(ctx context.Context, db *gorm.DB, id snowflake.ID, chatID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET chat_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		chatID,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM users WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}
