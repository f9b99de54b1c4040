package repository

import (
	"gorm.io/gorm"

	"github.com/fadilmartias/resume-screener/internal/model"
)

type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db}
}

func (r *ActivityLogRepository) AppendActivityLog(entry *model.ActivityLog) error {
	return r.db.Create(entry).Error
}
