package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Gurkunwar/dailybot-engine/internal/database"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
)

const sampleYAML = `
projects:
  - name: core
    report_channel: "1234"
    members:
      - id: u1
        timezone: Asia/Kolkata
      - id: u2
    tickets:
      - title: BUG-12 login crash
      - title: API-7 rate limits
        status: in_progress
    standup:
      time: "09:30"
      timezone: Europe/Berlin
      working_days: [monday, Wed, FRI]
      response_window_hours: 3
      questions:
        - What did you ship?
  - name: web
    standup:
      time: "10:00"
      timezone: UTC
      working_days: [Tue]
      response_window_hours: 1
      active: false
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Projects) != 2 {
		t.Fatalf("projects = %d, want 2", len(f.Projects))
	}
	core := f.Projects[0]
	if core.Name != "core" || len(core.Members) != 2 || len(core.Tickets) != 2 {
		t.Errorf("core = %+v", core)
	}
	if web := f.Projects[1]; web.Standup == nil || web.Standup.Active == nil || *web.Standup.Active {
		t.Errorf("web standup = %+v", web.Standup)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":         "   \n",
		"unknown field": "projects:\n  - name: core\n    colour: red\n",
		"missing name":  "projects:\n  - report_channel: x\n",
		"not yaml":      "projects: [",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(input)); err == nil {
				t.Error("Parse() accepted invalid input")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("LoadFile(missing) error = %v", err)
	}
}

func TestApply(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close(db) })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	projects := services.NewProjectService(db)
	standups := services.NewStandupService(db, logger)
	loader := &Loader{
		Projects: projects,
		Standups: standups,
		Tickets:  services.NewGormTicketStore(db),
		Logger:   logger,
	}
	ctx := context.Background()

	f, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	// Applying twice must not duplicate anything.
	for i := 0; i < 2; i++ {
		if err := loader.Apply(ctx, f); err != nil {
			t.Fatalf("Apply() run %d error = %v", i, err)
		}
	}

	core, err := projects.FindProjectByName(ctx, "core")
	if err != nil {
		t.Fatal(err)
	}
	if core.ReportChannelID != "1234" {
		t.Errorf("ReportChannelID = %q", core.ReportChannelID)
	}

	members, _ := projects.ListParticipants(ctx, core.ID)
	if !reflect.DeepEqual(members, []string{"u1", "u2"}) {
		t.Errorf("members = %v", members)
	}

	var tickets []models.Ticket
	db.Where("project_id = ?", core.ID).Order("id").Find(&tickets)
	if len(tickets) != 2 || tickets[1].Status != models.TicketInProgress {
		t.Errorf("tickets = %+v", tickets)
	}

	cfg, err := standups.GetConfig(ctx, core.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Time != "09:30" || !cfg.IsActive || !reflect.DeepEqual(cfg.WorkingDays, []string{"Mon", "Wed", "Fri"}) {
		t.Errorf("core config = %+v", cfg)
	}

	active, _ := standups.ListActiveConfigs(ctx)
	if len(active) != 1 || active[0].ProjectID != core.ID {
		t.Errorf("active configs = %+v", active)
	}
}

func TestApply_InvalidConfigNamesProject(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close(db) })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	loader := &Loader{
		Projects: services.NewProjectService(db),
		Standups: services.NewStandupService(db, logger),
		Tickets:  services.NewGormTicketStore(db),
		Logger:   logger,
	}

	f := &File{Projects: []Project{{
		Name:    "broken",
		Standup: &Standup{Time: "9am", Timezone: "UTC", WorkingDays: []string{"Mon"}, ResponseWindowHours: 1},
	}}}
	err = loader.Apply(context.Background(), f)
	if err == nil || !strings.Contains(err.Error(), `"broken"`) {
		t.Errorf("Apply() error = %v", err)
	}
}
