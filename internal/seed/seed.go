// Package seed loads projects, members, tickets and standup configs from a
// YAML file.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"gopkg.in/yaml.v3"
)

type File struct {
	Projects []Project `yaml:"projects"`
}

type Project struct {
	Name          string   `yaml:"name"`
	ReportChannel string   `yaml:"report_channel"`
	Members       []Member `yaml:"members"`
	Tickets       []Ticket `yaml:"tickets"`
	Standup       *Standup `yaml:"standup"`
}

type Member struct {
	ID       string `yaml:"id"`
	Timezone string `yaml:"timezone"`
}

type Ticket struct {
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
}

type Standup struct {
	Time                string   `yaml:"time"`
	Timezone            string   `yaml:"timezone"`
	WorkingDays         []string `yaml:"working_days"`
	ResponseWindowHours int      `yaml:"response_window_hours"`
	Active              *bool    `yaml:"active"`
	Questions           []string `yaml:"questions"`
}

func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: file is empty")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	for i, p := range f.Projects {
		if p.Name == "" {
			return nil, fmt.Errorf("seed: project %d has no name", i)
		}
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

type Loader struct {
	Projects *services.ProjectService
	Standups *services.StandupService
	Tickets  *services.GormTicketStore
	Logger   *slog.Logger
}

// Apply writes every project in f. It is safe to run repeatedly; each step
// is an upsert.
func (l *Loader) Apply(ctx context.Context, f *File) error {
	for _, p := range f.Projects {
		project, err := l.Projects.EnsureProject(ctx, p.Name, p.ReportChannel)
		if err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}

		for _, m := range p.Members {
			if err := l.Projects.AddMember(ctx, project.ID, m.ID, m.Timezone); err != nil {
				return fmt.Errorf("project %q member %q: %w", p.Name, m.ID, err)
			}
		}

		for _, t := range p.Tickets {
			if _, err := l.Tickets.EnsureTicket(ctx, project.ID, t.Title, models.TicketStatus(t.Status)); err != nil {
				return fmt.Errorf("project %q ticket %q: %w", p.Name, t.Title, err)
			}
		}

		if p.Standup != nil {
			cfg := models.StandupConfig{
				ProjectID:           project.ID,
				Time:                p.Standup.Time,
				Timezone:            p.Standup.Timezone,
				WorkingDays:         p.Standup.WorkingDays,
				ResponseWindowHours: p.Standup.ResponseWindowHours,
				IsActive:            true,
				Questions:           p.Standup.Questions,
			}
			if p.Standup.Active != nil {
				cfg.IsActive = *p.Standup.Active
			}
			if _, err := l.Standups.SaveConfig(ctx, cfg); err != nil {
				return fmt.Errorf("project %q standup: %w", p.Name, err)
			}
		}

		l.Logger.Info("seeded project",
			slog.String("project", project.Name),
			slog.Int("members", len(p.Members)),
			slog.Int("tickets", len(p.Tickets)),
			slog.Bool("standup", p.Standup != nil),
		)
	}
	return nil
}
