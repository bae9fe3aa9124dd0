package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"gorm.io/gorm"
)

// ConfigSource is the read side the lifecycle manager depends on.
type ConfigSource interface {
	ListActiveConfigs(ctx context.Context) ([]models.StandupConfig, error)
}

// StandupService owns standup configuration writes. It validates on the way
// in so the open pass only ever sees well-formed configs, barring rows
// written behind its back.
type StandupService struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

func NewStandupService(db *gorm.DB, logger *slog.Logger) *StandupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandupService{DB: db, Logger: logger}
}

func ValidateConfig(cfg models.StandupConfig) error {
	verr := &ValidationError{}

	if cfg.ProjectID == 0 {
		verr.add("project_id", errors.New("required"))
	}
	if _, err := LoadTimezone(cfg.Timezone); err != nil {
		verr.add("timezone", err)
	}
	if _, err := ParseTimeOfDay(cfg.Time); err != nil {
		verr.add("time", err)
	}
	if len(cfg.WorkingDays) == 0 {
		verr.add("working_days", fmt.Errorf("%w: at least one day required", ErrInvalidWorkingDay))
	}
	for _, d := range cfg.WorkingDays {
		if _, ok := ParseWeekday(d); !ok {
			verr.add("working_days", fmt.Errorf("%w: %q", ErrInvalidWorkingDay, d))
			break
		}
	}
	if cfg.ResponseWindowHours < 1 {
		verr.add("response_window_hours", ErrInvalidResponseWindow)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func normalizeWorkingDays(days []string) []string {
	seen := make(map[string]bool, len(days))
	out := make([]string, 0, len(days))
	for _, d := range days {
		wd, ok := ParseWeekday(d)
		if !ok {
			continue
		}
		short := ShortWeekday(wd)
		if !seen[short] {
			seen[short] = true
			out = append(out, short)
		}
	}
	return out
}

// SaveConfig creates the project's config or replaces the existing one.
func (s *StandupService) SaveConfig(ctx context.Context, cfg models.StandupConfig) (*models.StandupConfig, error) {
	cfg.Time = strings.TrimSpace(cfg.Time)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.WorkingDays = normalizeWorkingDays(cfg.WorkingDays)

	var saved models.StandupConfig
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, cfg.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}

		err := tx.Where("project_id = ?", cfg.ProjectID).First(&saved).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			saved = cfg
			saved.ID = 0
			return tx.Create(&saved).Error
		case err != nil:
			return err
		}

		saved.Time = cfg.Time
		saved.Timezone = cfg.Timezone
		saved.WorkingDays = cfg.WorkingDays
		saved.ResponseWindowHours = cfg.ResponseWindowHours
		saved.IsActive = cfg.IsActive
		saved.Questions = cfg.Questions
		return tx.Save(&saved).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("standup config saved",
		slog.Uint64("config_id", uint64(saved.ID)),
		slog.Uint64("project_id", uint64(saved.ProjectID)),
		slog.Bool("active", saved.IsActive),
	)
	return &saved, nil
}

func (s *StandupService) GetConfig(ctx context.Context, projectID uint) (*models.StandupConfig, error) {
	var cfg models.StandupConfig
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *StandupService) SetActive(ctx context.Context, projectID uint, active bool) error {
	res := s.DB.WithContext(ctx).Model(&models.StandupConfig{}).
		Where("project_id = ?", projectID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (s *StandupService) ListActiveConfigs(ctx context.Context) ([]models.StandupConfig, error) {
	var configs []models.StandupConfig
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}
