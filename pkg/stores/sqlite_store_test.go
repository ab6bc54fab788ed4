package stores

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/portfoliobot/projectstore/pkg/telemetry"
)

// setupTestStore creates a migrated and seeded store backed by a temp file.
// Every call opens its own connection, so an in-memory database would not
// survive between operations.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := newEmptyStore(t)

	ctx := context.Background()
	if err := store.CreateTables(ctx); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	if err := store.DefaultInsert(ctx); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	return store
}

func newEmptyStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "portfolio.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

// TestNewSQLiteStoreRequiresPath tests constructor validation
func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStoreHealthCheck tests that a fresh file can be opened and queried
func TestStoreHealthCheck(t *testing.T) {
	store := newEmptyStore(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}
}

// TestCreateTables tests schema creation and the duplicate-create failure
func TestCreateTables(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	db, err := store.open(ctx)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tables := []string{"projects", "skills", "status", "project_skills"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	if err := store.CreateTables(ctx); !errors.Is(err, ErrSchemaExists) {
		t.Errorf("expected ErrSchemaExists on second create, got %v", err)
	}
}

// TestClearTablesIdempotent tests dropping an absent and a present schema
func TestClearTablesIdempotent(t *testing.T) {
	ctx := context.Background()

	empty := newEmptyStore(t)
	if err := empty.ClearTables(ctx); err != nil {
		t.Fatalf("clear on empty database failed: %v", err)
	}

	store := setupTestStore(t)
	for i := 0; i < 2; i++ {
		if err := store.ClearTables(ctx); err != nil {
			t.Fatalf("clear #%d failed: %v", i+1, err)
		}
	}

	if _, err := store.GetSkills(ctx); !errors.Is(err, ErrNoSchema) {
		t.Errorf("expected ErrNoSchema after clear, got %v", err)
	}

	// The migration record is gone too, so the schema can be created again.
	if err := store.CreateTables(ctx); err != nil {
		t.Fatalf("failed to recreate tables: %v", err)
	}
}

// TestDefaultInsertIdempotent tests the seeded vocabularies
func TestDefaultInsertIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.DefaultInsert(ctx); err != nil {
		t.Fatalf("second default insert failed: %v", err)
	}

	skills, err := store.GetSkills(ctx)
	if err != nil {
		t.Fatalf("failed to get skills: %v", err)
	}
	var skillNames []string
	for _, sk := range skills {
		skillNames = append(skillNames, sk.Name)
	}
	assertSameSet(t, "skills", DefaultSkills, skillNames)

	statuses, err := store.GetStatuses(ctx)
	if err != nil {
		t.Fatalf("failed to get statuses: %v", err)
	}
	assertSameSet(t, "statuses", DefaultStatuses, statuses)
}

func assertSameSet(t *testing.T, what string, want, got []string) {
	t.Helper()

	w := append([]string(nil), want...)
	g := append([]string(nil), got...)
	sort.Strings(w)
	sort.Strings(g)
	if strings.Join(w, "|") != strings.Join(g, "|") {
		t.Errorf("%s: expected %v, got %v", what, want, got)
	}
}

// TestProjectCRUD tests insert, lookup, update and delete of projects
func TestProjectCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Create
	ids, err := store.InsertProject(ctx, NewProject{
		UserID:   1,
		Name:     "Alpha",
		URL:      strPtr("http://x"),
		StatusID: int64Ptr(1),
	})
	if err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %d", len(ids))
	}

	// Read
	projects, err := store.GetProjects(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
	if projects[0].Name != "Alpha" {
		t.Errorf("expected name Alpha, got %s", projects[0].Name)
	}
	if projects[0].Description != nil {
		t.Errorf("expected no description, got %q", *projects[0].Description)
	}

	id, found, err := store.GetProjectID(ctx, "Alpha", 1)
	if err != nil {
		t.Fatalf("failed to get project id: %v", err)
	}
	if !found || id != projects[0].ID || id != ids[0] {
		t.Errorf("expected id %d (found), got %d (found=%v)", projects[0].ID, id, found)
	}

	// Update
	n, err := store.UpdateProjects(ctx, SetDescription("new desc"), "Alpha", 1)
	if err != nil {
		t.Fatalf("failed to update description: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row updated, got %d", n)
	}

	infos, err := store.GetProjectInfo(ctx, 1, "Alpha")
	if err != nil {
		t.Fatalf("failed to get project info: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 info row, got %d", len(infos))
	}
	info := infos[0]
	if info.Description == nil || *info.Description != "new desc" {
		t.Errorf("expected description %q, got %v", "new desc", info.Description)
	}
	if info.URL == nil || *info.URL != "http://x" {
		t.Errorf("expected url unchanged, got %v", info.URL)
	}
	if info.StatusName == nil || *info.StatusName != DefaultStatuses[0] {
		t.Errorf("expected status %q, got %v", DefaultStatuses[0], info.StatusName)
	}

	// Delete
	deleted, err := store.DeleteProject(ctx, 1, id)
	if err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 row deleted, got %d", deleted)
	}

	projects, err = store.GetProjects(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get projects after delete: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects after delete, got %d", len(projects))
	}
}

// TestInsertProjectBatch tests multi-row inserts and per-user scoping
func TestInsertProjectBatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids, err := store.InsertProject(ctx,
		NewProject{UserID: 1, Name: "Alpha"},
		NewProject{UserID: 1, Name: "Beta", StatusID: int64Ptr(99)},
		NewProject{UserID: 2, Name: "Alpha"},
	)
	if err != nil {
		t.Fatalf("failed to insert projects: %v", err)
	}
	if len(ids) != 3 || ids[0] >= ids[1] || ids[1] >= ids[2] {
		t.Fatalf("expected 3 increasing ids, got %v", ids)
	}

	mine, err := store.GetProjects(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get projects: %v", err)
	}
	if len(mine) != 2 || mine[0].Name != "Alpha" || mine[1].Name != "Beta" {
		t.Errorf("expected [Alpha Beta] for user 1, got %+v", mine)
	}

	// Unknown status ids are stored as-is and show up without a status name.
	infos, err := store.GetProjectInfo(ctx, 1, "Beta")
	if err != nil {
		t.Fatalf("failed to get project info: %v", err)
	}
	if len(infos) != 1 || infos[0].StatusName != nil {
		t.Errorf("expected one row without status name, got %+v", infos)
	}

	if got, err := store.InsertProject(ctx); err != nil || got != nil {
		t.Errorf("expected no-op for empty insert, got %v, %v", got, err)
	}
}

// TestUpdateProjectsFields tests every updatable column
func TestUpdateProjectsFields(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertProject(ctx, NewProject{UserID: 7, Name: "Bot"}); err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}

	readyID, found, err := store.GetStatusID(ctx, DefaultStatuses[2])
	if err != nil || !found {
		t.Fatalf("failed to resolve status: found=%v err=%v", found, err)
	}

	updates := []struct {
		upd  ProjectUpdate
		name string
	}{
		{SetURL("https://example.org/bot"), "Bot"},
		{SetStatusID(readyID), "Bot"},
		{SetProjectName("Bot v2"), "Bot"},
	}
	for _, tc := range updates {
		if _, err := store.UpdateProjects(ctx, tc.upd, tc.name, 7); err != nil {
			t.Fatalf("failed to update %s: %v", tc.upd.Field(), err)
		}
	}

	infos, err := store.GetProjectInfo(ctx, 7, "Bot v2")
	if err != nil {
		t.Fatalf("failed to get project info: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected renamed project, got %d rows", len(infos))
	}
	if infos[0].URL == nil || *infos[0].URL != "https://example.org/bot" {
		t.Errorf("unexpected url %v", infos[0].URL)
	}
	if infos[0].StatusName == nil || *infos[0].StatusName != DefaultStatuses[2] {
		t.Errorf("unexpected status %v", infos[0].StatusName)
	}

	// Another owner's project with the same name is untouched.
	n, err := store.UpdateProjects(ctx, SetDescription("nope"), "Bot v2", 8)
	if err != nil {
		t.Fatalf("failed to run update: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows updated for another user, got %d", n)
	}

	if _, err := store.UpdateProjects(ctx, ProjectUpdate{}, "Bot v2", 7); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField for zero update, got %v", err)
	}
}

// TestParseProjectField tests the update allow-list
func TestParseProjectField(t *testing.T) {
	for _, name := range []string{"project_name", "description", "url", "status_id"} {
		f, err := ParseProjectField(name)
		if err != nil {
			t.Errorf("expected %q to parse: %v", name, err)
			continue
		}
		if f.String() != name {
			t.Errorf("expected round trip of %q, got %q", name, f.String())
		}
	}

	for _, name := range []string{"user_id", "project_id", "description = 'x', url", ""} {
		if _, err := ParseProjectField(name); !errors.Is(err, ErrInvalidField) {
			t.Errorf("expected ErrInvalidField for %q, got %v", name, err)
		}
	}
}

// TestLookupsAreFailSoft tests that absent names report found=false
func TestLookupsAreFailSoft(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetProjectID(ctx, "missing", 1); err != nil || found {
		t.Errorf("expected missing project to be not found, got found=%v err=%v", found, err)
	}
	if _, found, err := store.GetSkillID(ctx, "COBOL"); err != nil || found {
		t.Errorf("expected missing skill to be not found, got found=%v err=%v", found, err)
	}
	if _, found, err := store.GetStatusID(ctx, "archived"); err != nil || found {
		t.Errorf("expected missing status to be not found, got found=%v err=%v", found, err)
	}

	infos, err := store.GetProjectInfo(ctx, 1, "missing")
	if err != nil {
		t.Fatalf("failed to get project info: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("expected empty info, got %+v", infos)
	}
}

// TestSkillLinks tests linking, idempotency, scoping and unlinking skills
func TestSkillLinks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids, err := store.InsertProject(ctx,
		NewProject{UserID: 1, Name: "Alpha"},
		NewProject{UserID: 2, Name: "Alpha"},
	)
	if err != nil {
		t.Fatalf("failed to insert projects: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.InsertSkill(ctx, 1, "Alpha", "Python"); err != nil {
			t.Fatalf("failed to insert skill: %v", err)
		}
	}

	skills, err := store.GetProjectSkills(ctx, "Alpha")
	if err != nil {
		t.Fatalf("failed to get project skills: %v", err)
	}
	if skills != "Python" {
		t.Errorf("expected %q, got %q", "Python", skills)
	}

	if err := store.InsertSkill(ctx, 1, "Alpha", "SQL"); err != nil {
		t.Fatalf("failed to insert skill: %v", err)
	}
	if err := store.InsertSkill(ctx, 2, "Alpha", "Telegram"); err != nil {
		t.Fatalf("failed to insert skill: %v", err)
	}

	// Name-only lookup sees both owners' projects.
	all, err := store.GetProjectSkills(ctx, "Alpha")
	if err != nil {
		t.Fatalf("failed to get project skills: %v", err)
	}
	if all != "Python, SQL, Telegram" {
		t.Errorf("expected all owners' skills, got %q", all)
	}

	mine, err := store.GetUserProjectSkills(ctx, 1, "Alpha")
	if err != nil {
		t.Fatalf("failed to get user project skills: %v", err)
	}
	if mine != "Python, SQL" {
		t.Errorf("expected %q, got %q", "Python, SQL", mine)
	}

	// Unknown names fail with sentinels.
	if err := store.InsertSkill(ctx, 1, "Gamma", "Python"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if err := store.InsertSkill(ctx, 1, "Alpha", "COBOL"); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("expected ErrSkillNotFound, got %v", err)
	}

	sqlID, found, err := store.GetSkillID(ctx, "SQL")
	if err != nil || !found {
		t.Fatalf("failed to resolve skill: found=%v err=%v", found, err)
	}
	n, err := store.DeleteSkill(ctx, ids[0], sqlID)
	if err != nil {
		t.Fatalf("failed to delete skill link: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 link removed, got %d", n)
	}

	mine, err = store.GetUserProjectSkills(ctx, 1, "Alpha")
	if err != nil {
		t.Fatalf("failed to get user project skills: %v", err)
	}
	if mine != "Python" {
		t.Errorf("expected %q after unlink, got %q", "Python", mine)
	}

	// The vocabulary itself is untouched.
	vocab, err := store.GetSkills(ctx)
	if err != nil {
		t.Fatalf("failed to get skills: %v", err)
	}
	if len(vocab) != len(DefaultSkills) {
		t.Errorf("expected %d skills, got %d", len(DefaultSkills), len(vocab))
	}
}

// TestDeleteProjectRemovesLinks tests that deleting a project drops its skill links
func TestDeleteProjectRemovesLinks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids, err := store.InsertProject(ctx, NewProject{UserID: 1, Name: "Alpha"})
	if err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	if err := store.InsertSkill(ctx, 1, "Alpha", "API"); err != nil {
		t.Fatalf("failed to insert skill: %v", err)
	}

	// Wrong owner deletes nothing.
	n, err := store.DeleteProject(ctx, 2, ids[0])
	if err != nil {
		t.Fatalf("failed to run delete: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows deleted for wrong owner, got %d", n)
	}
	if skills, _ := store.GetProjectSkills(ctx, "Alpha"); skills != "API" {
		t.Errorf("expected links to survive a foreign delete, got %q", skills)
	}

	if _, err := store.DeleteProject(ctx, 1, ids[0]); err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}

	db, err := store.open(ctx)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var links int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_skills WHERE project_id = ?`, ids[0]).Scan(&links); err != nil {
		t.Fatalf("failed to count links: %v", err)
	}
	if links != 0 {
		t.Errorf("expected no orphaned links, got %d", links)
	}
}

// TestResetDB tests the drop/recreate/seed sequence
func TestResetDB(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertProject(ctx, NewProject{UserID: 1, Name: "Alpha"}); err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	if err := store.InsertSkill(ctx, 1, "Alpha", "Python"); err != nil {
		t.Fatalf("failed to insert skill: %v", err)
	}

	if err := store.ResetDB(ctx); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}

	projects, err := store.GetProjects(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get projects: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects after reset, got %d", len(projects))
	}

	skills, err := store.GetSkills(ctx)
	if err != nil {
		t.Fatalf("failed to get skills: %v", err)
	}
	if len(skills) != len(DefaultSkills) {
		t.Errorf("expected %d skills, got %d", len(DefaultSkills), len(skills))
	}

	statuses, err := store.GetStatuses(ctx)
	if err != nil {
		t.Fatalf("failed to get statuses: %v", err)
	}
	for i, name := range DefaultStatuses {
		if i >= len(statuses) || statuses[i] != name {
			t.Errorf("expected status %d to be %q, got %v", i, name, statuses)
			break
		}
	}

	// Reset also works on a database that never had a schema.
	empty := newEmptyStore(t)
	if err := empty.ResetDB(ctx); err != nil {
		t.Fatalf("failed to reset empty database: %v", err)
	}
}

// TestOperationsWithoutSchema tests error classification on a bare database
func TestOperationsWithoutSchema(t *testing.T) {
	store := newEmptyStore(t)
	ctx := context.Background()

	if _, err := store.GetProjects(ctx, 1); !errors.Is(err, ErrNoSchema) {
		t.Errorf("expected ErrNoSchema from GetProjects, got %v", err)
	}
	if err := store.DefaultInsert(ctx); !errors.Is(err, ErrNoSchema) {
		t.Errorf("expected ErrNoSchema from DefaultInsert, got %v", err)
	}
	if _, _, err := store.GetStatusID(ctx, "x"); !errors.Is(err, ErrNoSchema) {
		t.Errorf("expected ErrNoSchema from GetStatusID, got %v", err)
	}
}

// TestBackupRestore tests the hot copy and restore round trip
func TestBackupRestore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertProject(ctx, NewProject{UserID: 1, Name: "Alpha"}); err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}

	backup := filepath.Join(t.TempDir(), "backups", "portfolio.bak")
	if err := store.Backup(ctx, backup); err != nil {
		t.Fatalf("failed to back up: %v", err)
	}
	if err := store.Backup(ctx, backup); !errors.Is(err, ErrBackupExists) {
		t.Errorf("expected ErrBackupExists, got %v", err)
	}

	if err := store.ResetDB(ctx); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
	if err := store.Restore(ctx, backup); err != nil {
		t.Fatalf("failed to restore: %v", err)
	}

	projects, err := store.GetProjects(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get projects: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "Alpha" {
		t.Errorf("expected restored Alpha, got %+v", projects)
	}
}

// TestRestoreRejectsGarbage tests that a non-database file is not restored
func TestRestoreRejectsGarbage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	junk := filepath.Join(t.TempDir(), "junk.db")
	if err := os.WriteFile(junk, bytes.Repeat([]byte("not a database "), 128), 0o600); err != nil {
		t.Fatalf("failed to write junk file: %v", err)
	}

	if err := store.Restore(ctx, junk); !errors.Is(err, ErrCorruptDatabase) {
		t.Fatalf("expected ErrCorruptDatabase, got %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("store should still be healthy: %v", err)
	}
	if _, err := store.GetSkills(ctx); err != nil {
		t.Errorf("store contents should be intact: %v", err)
	}
}

// TestStoreTelemetry tests that operations are logged and counted
func TestStoreTelemetry(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	var logs bytes.Buffer
	tel.Logger = telemetry.NewLoggerWithWriter(cfg.Logging, &logs)

	store, err := NewSQLiteStore(Config{
		Path:      filepath.Join(t.TempDir(), "portfolio.db"),
		Telemetry: tel,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.ResetDB(ctx); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
	if _, err := store.InsertProject(ctx,
		NewProject{UserID: 1, Name: "Alpha"},
		NewProject{UserID: 1, Name: "Beta"},
	); err != nil {
		t.Fatalf("failed to insert projects: %v", err)
	}
	if err := store.InsertSkill(ctx, 1, "Gamma", "Python"); err == nil {
		t.Fatal("expected error for unknown project")
	}

	var metrics bytes.Buffer
	if err := tel.Metrics.WriteText(&metrics); err != nil {
		t.Fatalf("failed to write metrics: %v", err)
	}
	out := metrics.String()
	for _, want := range []string{
		"portfolio_projects_created_total 2",
		"portfolio_schema_resets_total 1",
		`portfolio_errors_by_class_total{class="not_found"} 1`,
		`portfolio_store_operations_total{operation="insert_skill",status="error"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}

	if !strings.Contains(logs.String(), `"operation":"insert_project"`) {
		t.Errorf("expected insert_project to be logged, got %s", logs.String())
	}
	if !strings.Contains(logs.String(), `"level":"error"`) {
		t.Errorf("expected failed operation to be logged at error level")
	}
}
