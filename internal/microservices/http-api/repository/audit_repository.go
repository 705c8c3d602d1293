package repository

import (
	"context"

	"lobbyserver/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// AuditRepository persists moderation actions and forwarded chat events.
// Append takes a context because the realtime core writes through it
// asynchronously and wants cancellation on shutdown.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
	ListByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error)
}

// auditRepository is the GORM implementation of AuditRepository
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new instance of AuditRepository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func (r *auditRepository) ListByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("actor = ?", actor).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
