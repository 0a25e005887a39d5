package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/azmainm/standup-tickets/internal/task"
)

const taskColumns = `ticket_id, title, description, assignee, work_type, status,
	estimated_time, time_spent, priority, story_points, is_future_plan,
	created_at, last_modified`

// TaskPatch carries the fields an UPDATE decision may change. Nil
// fields are left untouched.
type TaskPatch struct {
	Description   *string
	Assignee      *string
	Status        *string
	EstimatedTime *float64
	TimeSpent     *float64
	Priority      *string
	StoryPoints   *int
}

// InsertTask persists a new task. The ticket id must already be
// allocated; inserting an existing id is an error.
func (s *Store) InsertTask(t *task.Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.LastModified = now

	_, err := s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TicketID, t.Title, t.Description, t.Assignee, t.WorkType, t.Status,
		t.EstimatedTime, t.TimeSpent, nullable(t.Priority), nullableInt(t.StoryPoints),
		t.IsFuturePlan, t.CreatedAt, t.LastModified)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.TicketID, err)
	}
	return nil
}

// UpdateTaskByTicketID applies a patch to an existing task and advances
// last_modified. Returns an error if the ticket does not exist.
func (s *Store) UpdateTaskByTicketID(ticketID string, patch TaskPatch) error {
	var sets []string
	var args []any

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Assignee != nil {
		add("assignee", *patch.Assignee)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.EstimatedTime != nil {
		add("estimated_time", *patch.EstimatedTime)
	}
	if patch.TimeSpent != nil {
		add("time_spent", *patch.TimeSpent)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.StoryPoints != nil {
		add("story_points", *patch.StoryPoints)
	}
	if len(sets) == 0 {
		return nil
	}

	add("last_modified", time.Now().UTC())
	args = append(args, ticketID)

	res, err := s.db.Exec(
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE ticket_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", ticketID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %s: not found", ticketID)
	}
	return nil
}

// FindActiveTasks returns all tasks that are not completed.
func (s *Store) FindActiveTasks() ([]task.Task, error) {
	return s.queryTasks("SELECT "+taskColumns+" FROM tasks WHERE status != ? ORDER BY ticket_id", task.StatusCompleted)
}

// FindAllTasks returns every task, completed ones included.
func (s *Store) FindAllTasks() ([]task.Task, error) {
	return s.queryTasks("SELECT " + taskColumns + " FROM tasks ORDER BY ticket_id")
}

// GetTaskByTicketID retrieves one task. sql.ErrNoRows-backed errors are
// wrapped with the ticket id.
func (s *Store) GetTaskByTicketID(ticketID string) (*task.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE ticket_id = ?", ticketID)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found: %s", ticketID)
		}
		return nil, err
	}
	return t, nil
}

// RecentlyModifiedTasks returns tasks whose last_modified is after the
// given time, for index synchronization against out-of-band edits.
func (s *Store) RecentlyModifiedTasks(since time.Time) ([]task.Task, error) {
	return s.queryTasks("SELECT "+taskColumns+" FROM tasks WHERE last_modified > ? ORDER BY ticket_id", since.UTC())
}

// MaxTicketNumber returns the highest numeric suffix among ticket ids
// with the given prefix, or zero when no tasks exist. Used to seed the
// counter idempotently.
func (s *Store) MaxTicketNumber(prefix string) (int, error) {
	rows, err := s.db.Query("SELECT ticket_id FROM tasks")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		if !strings.HasPrefix(id, strings.ToUpper(prefix)+"-") {
			continue
		}
		if n, ok := task.TicketNumber(id); ok && n > max {
			max = n
		}
	}
	return max, rows.Err()
}

func (s *Store) queryTasks(query string, args ...any) ([]task.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var priority sql.NullString
	var storyPoints sql.NullInt64

	err := row.Scan(&t.TicketID, &t.Title, &t.Description, &t.Assignee,
		&t.WorkType, &t.Status, &t.EstimatedTime, &t.TimeSpent,
		&priority, &storyPoints, &t.IsFuturePlan, &t.CreatedAt, &t.LastModified)
	if err != nil {
		return nil, err
	}

	if priority.Valid {
		t.Priority = priority.String
	}
	if storyPoints.Valid {
		t.StoryPoints = int(storyPoints.Int64)
	}
	return &t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
