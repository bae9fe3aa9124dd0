package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/database"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"gorm.io/gorm"
)

// ParticipantSource lists the people expected to answer a project's standup.
type ParticipantSource interface {
	ListParticipants(ctx context.Context, projectID uint) ([]string, error)
}

type ProjectService struct {
	DB *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{DB: db}
}

// EnsureProject returns the project with the given name, creating it if
// needed. A non-empty reportChannelID replaces the stored one.
func (s *ProjectService) EnsureProject(ctx context.Context, name, reportChannelID string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name is required")
	}

	var project models.Project
	db := s.DB.WithContext(ctx)
	err := db.Unscoped().
		Attrs(models.Project{ReportChannelID: reportChannelID}).
		FirstOrCreate(&project, models.Project{Name: name}).Error
	if database.IsUniqueViolation(err) {
		// Lost a create race; the winner's row is there now.
		project = models.Project{}
		err = db.Unscoped().Where("name = ?", name).First(&project).Error
	}
	if err != nil {
		return nil, err
	}

	if project.DeletedAt.Valid {
		if err := db.Model(&project).Unscoped().Update("deleted_at", nil).Error; err != nil {
			return nil, err
		}
		project.DeletedAt = gorm.DeletedAt{}
	}
	if reportChannelID != "" && project.ReportChannelID != reportChannelID {
		project.ReportChannelID = reportChannelID
		if err := db.Model(&project).Update("report_channel_id", reportChannelID).Error; err != nil {
			return nil, err
		}
	}
	return &project, nil
}

func (s *ProjectService) GetProject(ctx context.Context, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (s *ProjectService) FindProjectByName(ctx context.Context, name string) (*models.Project, error) {
	var project models.Project
	err := s.DB.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// AddMember adds userID to the project, restoring a previously removed
// membership instead of inserting a second row.
func (s *ProjectService) AddMember(ctx context.Context, projectID uint, userID, timezone string) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	if timezone == "" {
		timezone = "UTC"
	}

	db := s.DB.WithContext(ctx)
	var member models.ProjectMember
	err := db.Unscoped().Where("project_id = ? AND user_id = ?", projectID, userID).
		FirstOrCreate(&member, models.ProjectMember{ProjectID: projectID, UserID: userID, Timezone: timezone}).Error
	if err != nil {
		return err
	}

	if member.DeletedAt.Valid {
		return db.Model(&member).Unscoped().Updates(map[string]interface{}{
			"deleted_at": nil,
			"timezone":   timezone,
		}).Error
	}
	return nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, projectID uint, userID string) error {
	return s.DB.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
}

func (s *ProjectService) ListParticipants(ctx context.Context, projectID uint) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ProjectsForUser returns the ids of every project userID belongs to.
func (s *ProjectService) ProjectsForUser(ctx context.Context, userID string) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("user_id = ?", userID).
		Order("project_id").
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
