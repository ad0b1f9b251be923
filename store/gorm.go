package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jwl06/civicledger360/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store over a SQL database.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to databaseURL and migrates the schema.
func OpenPostgres(databaseURL string, log *zap.Logger) (*GormStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connected")
	return NewGormStore(db)
}

// NewGormStore wraps an open connection and auto-migrates the models.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Violation{}, &models.Vehicle{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateViolation inserts v and returns it with its assigned id.
func (s *GormStore) CreateViolation(ctx context.Context, v models.Violation) (models.Violation, error) {
	v.ID = 0
	if err := s.db.WithContext(ctx).Create(&v).Error; err != nil {
		return models.Violation{}, fmt.Errorf("failed to create violation: %w", err)
	}
	return withSource(v), nil
}

// GetViolation loads one violation.
func (s *GormStore) GetViolation(ctx context.Context, id int64) (models.Violation, error) {
	var v models.Violation
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Violation{}, models.ErrNotFound
		}
		return models.Violation{}, fmt.Errorf("failed to fetch violation: %w", err)
	}
	return withSource(v), nil
}

// ListViolations queries with f, newest first.
func (s *GormStore) ListViolations(ctx context.Context, f Filter) ([]models.Violation, error) {
	query := s.db.WithContext(ctx).Model(&models.Violation{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Reporter != "" {
		query = query.Where("LOWER(reporter) = LOWER(?)", f.Reporter)
	}
	if f.ViolationType != "" {
		query = query.Where("violation_type = ?", f.ViolationType)
	}
	if f.VehicleID != 0 {
		query = query.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var violations []models.Violation
	if err := query.Order("submitted_at DESC").Order("id DESC").Find(&violations).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch violations: %w", err)
	}
	for i := range violations {
		violations[i].Source = models.SourceBackend
	}
	return violations, nil
}

// UpdateViolation reads the row, applies fn and writes the result only if the
// status has not changed underneath. A lost race is reported as ErrInvalidTransition.
func (s *GormStore) UpdateViolation(ctx context.Context, id int64, fn UpdateFunc) (models.Violation, error) {
	var result models.Violation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Violation
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to fetch violation: %w", err)
		}
		current.Source = models.SourceBackend
		result = current

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = id

		res := tx.Model(&models.Violation{}).
			Where("id = ? AND status = ?", id, current.Status).
			Select("*").
			Updates(&next)
		if res.Error != nil {
			return fmt.Errorf("failed to update violation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrInvalidTransition
		}
		result = withSource(next)
		return nil
	})
	return result, err
}

// CreateVehicle inserts v.
func (s *GormStore) CreateVehicle(ctx context.Context, v models.Vehicle) (models.Vehicle, error) {
	v.ID = 0
	if err := s.db.WithContext(ctx).Create(&v).Error; err != nil {
		return models.Vehicle{}, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return v, nil
}

// GetVehicle loads one vehicle.
func (s *GormStore) GetVehicle(ctx context.Context, id int64) (models.Vehicle, error) {
	var v models.Vehicle
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Vehicle{}, models.ErrNotFound
		}
		return models.Vehicle{}, fmt.Errorf("failed to fetch vehicle: %w", err)
	}
	return v, nil
}

// ListVehicles returns vehicles in registration order, optionally for one owner.
func (s *GormStore) ListVehicles(ctx context.Context, owner string) ([]models.Vehicle, error) {
	query := s.db.WithContext(ctx).Model(&models.Vehicle{})
	if owner != "" {
		query = query.Where("LOWER(owner_address) = LOWER(?)", owner)
	}
	var vehicles []models.Vehicle
	if err := query.Order("id ASC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}
	return vehicles, nil
}
