package database

import (
	"context"
	"fmt"
	"time"
)

// Monitoring-related repository methods

// CountTasksByStatus returns the number of tasks in each status
func (r *Repository) CountTasksByStatus(ctx context.Context) (counts map[string]int, err error) {
	defer func(start time.Time) { observe("count_tasks_by_status", start, err) }(time.Now())

	query := `
		SELECT status, COUNT(*)
		FROM tasks
		GROUP BY status
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts = make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task counts: %w", err)
	}

	return counts, nil
}
