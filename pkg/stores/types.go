package stores

import (
	"context"
	"fmt"
)

// DefaultSkills is the skill vocabulary seeded by DefaultInsert.
var DefaultSkills = []string{"Python", "SQL", "API", "Telegram"}

// DefaultStatuses is the ordered status vocabulary seeded by DefaultInsert:
// design, in development, ready, updated, discontinued.
var DefaultStatuses = []string{
	"На этапе проектирования",
	"В процессе разработки",
	"Разработан. Готов к использованию.",
	"Обновлен",
	"Завершен. Не поддерживается",
}

// Project is a row of the projects table.
type Project struct {
	ID          int64   `json:"project_id" yaml:"project_id"`
	UserID      int64   `json:"user_id" yaml:"user_id"`
	Name        string  `json:"project_name" yaml:"project_name"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         *string `json:"url,omitempty" yaml:"url,omitempty"`
	StatusID    *int64  `json:"status_id,omitempty" yaml:"status_id,omitempty"`
}

// NewProject is one row for InsertProject. Description cannot be set at
// creation time; use UpdateProjects with SetDescription afterwards.
type NewProject struct {
	UserID   int64
	Name     string
	URL      *string
	StatusID *int64
}

// ProjectInfo is the project joined with its status name.
type ProjectInfo struct {
	Name        string  `json:"project_name" yaml:"project_name"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         *string `json:"url,omitempty" yaml:"url,omitempty"`
	StatusName  *string `json:"status_name,omitempty" yaml:"status_name,omitempty"`
}

// Skill is a row of the skills table.
type Skill struct {
	ID   int64  `json:"skill_id" yaml:"skill_id"`
	Name string `json:"skill_name" yaml:"skill_name"`
}

// Status is a row of the status table.
type Status struct {
	ID   int64  `json:"status_id" yaml:"status_id"`
	Name string `json:"status_name" yaml:"status_name"`
}

// ProjectField names one updatable column of the projects table.
type ProjectField int

const (
	FieldProjectName ProjectField = iota + 1
	FieldDescription
	FieldURL
	FieldStatusID
)

var projectFieldNames = map[ProjectField]string{
	FieldProjectName: "project_name",
	FieldDescription: "description",
	FieldURL:         "url",
	FieldStatusID:    "status_id",
}

// String returns the column name of the field.
func (f ProjectField) String() string {
	if name, ok := projectFieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("ProjectField(%d)", int(f))
}

// ParseProjectField maps a column name onto the closed set of updatable fields.
func ParseProjectField(name string) (ProjectField, error) {
	for f, n := range projectFieldNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidField, name)
}

// ProjectUpdate is a single-column change. Build it with SetProjectName,
// SetDescription, SetURL or SetStatusID.
type ProjectUpdate struct {
	field ProjectField
	value any
}

// Field reports which column the update targets.
func (u ProjectUpdate) Field() ProjectField {
	return u.field
}

// Value reports the new column value.
func (u ProjectUpdate) Value() any {
	return u.value
}

// SetProjectName renames a project.
func SetProjectName(name string) ProjectUpdate {
	return ProjectUpdate{field: FieldProjectName, value: name}
}

// SetDescription sets a project's description.
func SetDescription(description string) ProjectUpdate {
	return ProjectUpdate{field: FieldDescription, value: description}
}

// SetURL sets a project's url.
func SetURL(url string) ProjectUpdate {
	return ProjectUpdate{field: FieldURL, value: url}
}

// SetStatusID sets a project's status. The id is not checked against the
// status table.
func SetStatusID(statusID int64) ProjectUpdate {
	return ProjectUpdate{field: FieldStatusID, value: statusID}
}

// Store defines the interface for the project store.
type Store interface {
	// Schema lifecycle
	CreateTables(ctx context.Context) error
	ClearTables(ctx context.Context) error
	ResetDB(ctx context.Context) error
	DefaultInsert(ctx context.Context) error

	// Project operations
	InsertProject(ctx context.Context, rows ...NewProject) ([]int64, error)
	UpdateProjects(ctx context.Context, upd ProjectUpdate, projectName string, userID int64) (int64, error)
	DeleteProject(ctx context.Context, userID, projectID int64) (int64, error)
	GetProjects(ctx context.Context, userID int64) ([]Project, error)
	GetProjectID(ctx context.Context, projectName string, userID int64) (int64, bool, error)
	GetProjectInfo(ctx context.Context, userID int64, projectName string) ([]ProjectInfo, error)

	// Skill operations
	InsertSkill(ctx context.Context, userID int64, projectName, skillName string) error
	DeleteSkill(ctx context.Context, projectID, skillID int64) (int64, error)
	GetSkills(ctx context.Context) ([]Skill, error)
	GetSkillID(ctx context.Context, skillName string) (int64, bool, error)
	GetProjectSkills(ctx context.Context, projectName string) (string, error)
	GetUserProjectSkills(ctx context.Context, userID int64, projectName string) (string, error)

	// Status operations
	GetStatuses(ctx context.Context) ([]string, error)
	ListStatuses(ctx context.Context) ([]Status, error)
	GetStatusID(ctx context.Context, statusName string) (int64, bool, error)

	// Utility
	HealthCheck(ctx context.Context) error
	Backup(ctx context.Context, dest string) error
	Restore(ctx context.Context, src string) error
}
