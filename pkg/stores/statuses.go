package stores

import (
	"context"
	"database/sql"
	"fmt"
)

// GetStatuses returns the status names in lifecycle order.
func (s *SQLiteStore) GetStatuses(ctx context.Context) ([]string, error) {
	statuses, err := s.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
	}
	return names, nil
}

// ListStatuses returns the status rows in lifecycle order.
func (s *SQLiteStore) ListStatuses(ctx context.Context) ([]Status, error) {
	statuses := []Status{}
	err := s.run(ctx, "list_statuses", func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT status_id, status_name FROM status ORDER BY status_id`)
		if err != nil {
			return fmt.Errorf("failed to list statuses: %w", classifyError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var st Status
			if err := rows.Scan(&st.ID, &st.Name); err != nil {
				return fmt.Errorf("failed to scan status: %w", err)
			}
			statuses = append(statuses, st)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// GetStatusID resolves a status name. found is false when no status has that name.
func (s *SQLiteStore) GetStatusID(ctx context.Context, statusName string) (id int64, found bool, err error) {
	err = s.run(ctx, "get_status_id", func(ctx context.Context, db *sql.DB) error {
		id, found, err = lookupID(ctx, db, `SELECT status_id FROM status WHERE status_name = ?`, statusName)
		if err != nil {
			return fmt.Errorf("failed to get status ID: %w", err)
		}
		return nil
	})
	return id, found, err
}
