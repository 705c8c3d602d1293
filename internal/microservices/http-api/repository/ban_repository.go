package repository

import (
	"time"

	"lobbyserver/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// BanRepository handles database operations for lobby bans.
// The realtime ban gate reads through this interface on every admission check,
// so the query methods stay narrow and cheap.
type BanRepository interface {
	Create(ban *models.Ban) error
	FindByID(id string) (*models.Ban, error)
	Delete(id string) error
	// ActiveBanExists reports whether any unexpired ban matches the username
	// or the remote address.
	ActiveBanExists(username, address string) (bool, error)
	ListActive(limit, offset int) ([]models.Ban, error)
}

// banRepository is the GORM implementation of BanRepository
type banRepository struct {
	db *gorm.DB
}

// NewBanRepository creates a new instance of BanRepository
func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db}
}

func (r *banRepository) Create(ban *models.Ban) error {
	return r.db.Create(ban).Error
}

func (r *banRepository) FindByID(id string) (*models.Ban, error) {
	var ban models.Ban
	if err := r.db.First(&ban, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ban, nil
}

func (r *banRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Ban{}).Error
}

func (r *banRepository) ActiveBanExists(username, address string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Ban{}).
		Where("(username = ? AND username <> '') OR (address = ? AND address <> '')", username, address).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *banRepository) ListActive(limit, offset int) ([]models.Ban, error) {
	var bans []models.Ban
	err := r.db.
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bans).Error
	return bans, err
}
