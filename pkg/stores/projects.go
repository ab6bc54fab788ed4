package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/portfoliobot/projectstore/pkg/telemetry"
)

// One statement per updatable column; the column name never comes from the caller.
var projectUpdateQueries = map[ProjectField]string{
	FieldProjectName: `UPDATE projects SET project_name = ? WHERE project_name = ? AND user_id = ?`,
	FieldDescription: `UPDATE projects SET description = ? WHERE project_name = ? AND user_id = ?`,
	FieldURL:         `UPDATE projects SET url = ? WHERE project_name = ? AND user_id = ?`,
	FieldStatusID:    `UPDATE projects SET status_id = ? WHERE project_name = ? AND user_id = ?`,
}

// InsertProject bulk-inserts projects in one transaction and returns their ids
// in input order.
func (s *SQLiteStore) InsertProject(ctx context.Context, rows ...NewProject) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	err := s.run(ctx, "insert_project", func(ctx context.Context, db *sql.DB) error {
		return inTx(ctx, db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO projects (user_id, project_name, url, status_id)
				VALUES (?, ?, ?, ?)
			`)
			if err != nil {
				return fmt.Errorf("failed to prepare project insert: %w", classifyError(err))
			}
			defer stmt.Close()

			for _, row := range rows {
				result, err := stmt.ExecContext(ctx, row.UserID, row.Name, row.URL, row.StatusID)
				if err != nil {
					return fmt.Errorf("failed to insert project %q: %w", row.Name, classifyError(err))
				}
				id, err := result.LastInsertId()
				if err != nil {
					return fmt.Errorf("failed to get project ID: %w", err)
				}
				ids = append(ids, id)
			}
			return nil
		})
	}, telemetry.AttrRowCount.Int(len(rows)))
	if err != nil {
		return nil, err
	}

	if s.tel != nil {
		s.tel.Metrics.RecordProjectsCreated(len(ids))
	}
	return ids, nil
}

// UpdateProjects sets one column on the projects matching (projectName, userID)
// and returns the number of rows changed.
func (s *SQLiteStore) UpdateProjects(ctx context.Context, upd ProjectUpdate, projectName string, userID int64) (int64, error) {
	query, ok := projectUpdateQueries[upd.field]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidField, upd.field)
	}

	var affected int64
	err := s.run(ctx, "update_projects", func(ctx context.Context, db *sql.DB) error {
		result, err := db.ExecContext(ctx, query, upd.value, projectName, userID)
		if err != nil {
			return fmt.Errorf("failed to update project %s: %w", upd.field, classifyError(err))
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectName.String(projectName),
	)
	return affected, err
}

// DeleteProject removes the project owned by userID together with its skill
// links and returns the number of project rows removed.
func (s *SQLiteStore) DeleteProject(ctx context.Context, userID, projectID int64) (int64, error) {
	var affected int64
	err := s.run(ctx, "delete_project", func(ctx context.Context, db *sql.DB) error {
		return inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM project_skills
				WHERE project_id IN (SELECT project_id FROM projects WHERE user_id = ? AND project_id = ?)
			`, userID, projectID); err != nil {
				return fmt.Errorf("failed to delete project skills: %w", classifyError(err))
			}

			result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE user_id = ? AND project_id = ?`, userID, projectID)
			if err != nil {
				return fmt.Errorf("failed to delete project: %w", classifyError(err))
			}
			affected, err = result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			return nil
		})
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectID.Int64(projectID),
	)
	return affected, err
}

// GetProjects returns every project owned by userID in storage order.
func (s *SQLiteStore) GetProjects(ctx context.Context, userID int64) ([]Project, error) {
	projects := []Project{}
	err := s.run(ctx, "get_projects", func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT project_id, user_id, project_name, description, url, status_id
			FROM projects
			WHERE user_id = ?
			ORDER BY project_id
		`, userID)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", classifyError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var p Project
			if err := rows.Scan(
				&p.ID,
				&p.UserID,
				&p.Name,
				&p.Description,
				&p.URL,
				&p.StatusID,
			); err != nil {
				return fmt.Errorf("failed to scan project: %w", err)
			}
			projects = append(projects, p)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating projects: %w", err)
		}
		return nil
	}, telemetry.AttrUserID.Int64(userID))
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProjectID resolves a project name for its owner. found is false when no
// such project exists.
func (s *SQLiteStore) GetProjectID(ctx context.Context, projectName string, userID int64) (id int64, found bool, err error) {
	err = s.run(ctx, "get_project_id", func(ctx context.Context, db *sql.DB) error {
		id, found, err = lookupID(ctx, db,
			`SELECT project_id FROM projects WHERE project_name = ? AND user_id = ? ORDER BY project_id LIMIT 1`,
			projectName, userID)
		if err != nil {
			return fmt.Errorf("failed to get project ID: %w", err)
		}
		return nil
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectName.String(projectName),
	)
	return id, found, err
}

// GetProjectInfo returns name, description, url and status name for the
// matching projects. The result is empty when nothing matches.
func (s *SQLiteStore) GetProjectInfo(ctx context.Context, userID int64, projectName string) ([]ProjectInfo, error) {
	infos := []ProjectInfo{}
	err := s.run(ctx, "get_project_info", func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT p.project_name, p.description, p.url, st.status_name
			FROM projects p
			LEFT JOIN status st ON st.status_id = p.status_id
			WHERE p.project_name = ? AND p.user_id = ?
			ORDER BY p.project_id
		`, projectName, userID)
		if err != nil {
			return fmt.Errorf("failed to get project info: %w", classifyError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var info ProjectInfo
			if err := rows.Scan(&info.Name, &info.Description, &info.URL, &info.StatusName); err != nil {
				return fmt.Errorf("failed to scan project info: %w", err)
			}
			infos = append(infos, info)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating project info: %w", err)
		}
		return nil
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectName.String(projectName),
	)
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// lookupID scans a single id column, reporting absence instead of failing.
func lookupID(ctx context.Context, q queryRower, query string, args ...any) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classifyError(err)
	}
	return id, true, nil
}
