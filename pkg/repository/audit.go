package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/mutation"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// AuditRepository keeps the audit trail of writes issued by this device.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(cfg *config.MySQLConfig) (*AuditRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	// Auto migrate
	if err := db.AutoMigrate(&models.AuditEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return NewAuditRepositoryFromDB(db), nil
}

func NewAuditRepositoryFromDB(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordMutation implements mutation.Recorder.
func (r *AuditRepository) RecordMutation(ctx context.Context, m mutation.Mutation) error {
	payload := ""
	if m.Fields != nil {
		data, err := json.Marshal(m.Fields)
		if err != nil {
			return fmt.Errorf("failed to serialize mutation: %w", err)
		}
		payload = string(data)
	}

	entry := &models.AuditEntry{
		Action:     string(m.Action),
		Collection: m.Collection,
		DocumentID: m.DocumentID,
		UserID:     m.UserID,
		Payload:    payload,
		CreatedAt:  m.At,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// Recent lists the newest entries first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func (r *AuditRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
