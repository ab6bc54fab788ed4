package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/portfoliobot/projectstore/pkg/telemetry"
)

// InsertSkill links skillName to the project named projectName owned by
// userID. Linking the same pair twice is a no-op.
func (s *SQLiteStore) InsertSkill(ctx context.Context, userID int64, projectName, skillName string) error {
	var linked bool
	err := s.run(ctx, "insert_skill", func(ctx context.Context, db *sql.DB) error {
		return inTx(ctx, db, func(tx *sql.Tx) error {
			projectID, ok, err := lookupID(ctx, tx,
				`SELECT project_id FROM projects WHERE project_name = ? AND user_id = ? ORDER BY project_id LIMIT 1`,
				projectName, userID)
			if err != nil {
				return fmt.Errorf("failed to resolve project: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: %q for user %d", ErrProjectNotFound, projectName, userID)
			}

			skillID, ok, err := lookupID(ctx, tx, `SELECT skill_id FROM skills WHERE skill_name = ?`, skillName)
			if err != nil {
				return fmt.Errorf("failed to resolve skill: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: %q", ErrSkillNotFound, skillName)
			}

			result, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO project_skills (project_id, skill_id) VALUES (?, ?)`,
				projectID, skillID)
			if err != nil {
				return fmt.Errorf("failed to link skill: %w", classifyError(err))
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			linked = n > 0
			return nil
		})
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectName.String(projectName),
		telemetry.AttrSkillName.String(skillName),
	)
	if err == nil && linked && s.tel != nil {
		s.tel.Metrics.RecordSkillLinked()
	}
	return err
}

// DeleteSkill removes the link between a project and a skill and returns the
// number of links removed.
func (s *SQLiteStore) DeleteSkill(ctx context.Context, projectID, skillID int64) (int64, error) {
	var affected int64
	err := s.run(ctx, "delete_skill", func(ctx context.Context, db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`DELETE FROM project_skills WHERE skill_id = ? AND project_id = ?`,
			skillID, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete skill link: %w", classifyError(err))
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	}, telemetry.AttrProjectID.Int64(projectID))
	return affected, err
}

// GetSkills returns the skill vocabulary ordered by id.
func (s *SQLiteStore) GetSkills(ctx context.Context) ([]Skill, error) {
	skills := []Skill{}
	err := s.run(ctx, "get_skills", func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT skill_id, skill_name FROM skills ORDER BY skill_id`)
		if err != nil {
			return fmt.Errorf("failed to list skills: %w", classifyError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var sk Skill
			if err := rows.Scan(&sk.ID, &sk.Name); err != nil {
				return fmt.Errorf("failed to scan skill: %w", err)
			}
			skills = append(skills, sk)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating skills: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skills, nil
}

// GetSkillID resolves a skill name. found is false when the name is not in
// the vocabulary.
func (s *SQLiteStore) GetSkillID(ctx context.Context, skillName string) (id int64, found bool, err error) {
	err = s.run(ctx, "get_skill_id", func(ctx context.Context, db *sql.DB) error {
		id, found, err = lookupID(ctx, db, `SELECT skill_id FROM skills WHERE skill_name = ?`, skillName)
		if err != nil {
			return fmt.Errorf("failed to get skill ID: %w", err)
		}
		return nil
	}, telemetry.AttrSkillName.String(skillName))
	return id, found, err
}

// GetProjectSkills returns the comma-separated skill names of every project
// called projectName, whoever owns it.
func (s *SQLiteStore) GetProjectSkills(ctx context.Context, projectName string) (string, error) {
	var names []string
	err := s.run(ctx, "get_project_skills", func(ctx context.Context, db *sql.DB) error {
		var err error
		names, err = querySkillNames(ctx, db, `
			SELECT sk.skill_name
			FROM projects p
			JOIN project_skills ps ON p.project_id = ps.project_id
			JOIN skills sk ON sk.skill_id = ps.skill_id
			WHERE p.project_name = ?
			ORDER BY p.project_id, sk.skill_id
		`, projectName)
		return err
	}, telemetry.AttrProjectName.String(projectName))
	if err != nil {
		return "", err
	}
	return strings.Join(names, ", "), nil
}

// GetUserProjectSkills is GetProjectSkills restricted to projects owned by userID.
func (s *SQLiteStore) GetUserProjectSkills(ctx context.Context, userID int64, projectName string) (string, error) {
	var names []string
	err := s.run(ctx, "get_user_project_skills", func(ctx context.Context, db *sql.DB) error {
		var err error
		names, err = querySkillNames(ctx, db, `
			SELECT sk.skill_name
			FROM projects p
			JOIN project_skills ps ON p.project_id = ps.project_id
			JOIN skills sk ON sk.skill_id = ps.skill_id
			WHERE p.project_name = ? AND p.user_id = ?
			ORDER BY p.project_id, sk.skill_id
		`, projectName, userID)
		return err
	},
		telemetry.AttrUserID.Int64(userID),
		telemetry.AttrProjectName.String(projectName),
	)
	if err != nil {
		return "", err
	}
	return strings.Join(names, ", "), nil
}

func querySkillNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list project skills: %w", classifyError(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan skill name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project skills: %w", err)
	}
	return names, nil
}
