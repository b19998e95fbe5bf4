package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/task-service/internal/domain"
)

// DefaultPageSize is the fixed number of tasks per listing page.
const DefaultPageSize = 10

var (
	// ErrMalformedFilter is returned when a filter is not of the form field:value.
	ErrMalformedFilter = errors.New("filter must have the form field:value")
	// ErrUnknownFilterField is returned for fields outside the allowed set.
	ErrUnknownFilterField = errors.New("unknown filter field")
	// ErrInvalidFilterValue is returned when the value cannot match the field's type.
	ErrInvalidFilterValue = errors.New("invalid filter value")
)

// TaskFilterField names a task column that listings may be filtered on.
type TaskFilterField string

const (
	TaskFilterID          TaskFilterField = "id"
	TaskFilterTitle       TaskFilterField = "title"
	TaskFilterDescription TaskFilterField = "description"
	TaskFilterStatus      TaskFilterField = "status"
	TaskFilterUserID      TaskFilterField = "user_id"
)

// taskFilterColumns is the closed mapping from filter fields to SQL columns.
var taskFilterColumns = map[TaskFilterField]string{
	TaskFilterID:          "tasks.id",
	TaskFilterTitle:       "tasks.title",
	TaskFilterDescription: "tasks.description",
	TaskFilterStatus:      "tasks.status",
	TaskFilterUserID:      "tasks.user_id",
}

// TaskFilter is a single equality constraint on a task listing.
type TaskFilter struct {
	Field TaskFilterField
	Value string
}

// TaskSort selects the listing order.
type TaskSort string

const (
	TaskSortNone        TaskSort = ""
	TaskSortNewestUsers TaskSort = "newest_users"
	TaskSortOldestUsers TaskSort = "oldest_users"
)

// TaskQuery describes one page of a task listing.
type TaskQuery struct {
	Filter   *TaskFilter
	Sort     TaskSort
	Page     int
	PageSize int
}

// ParseTaskFilter parses "field:value". An empty input means no filter.
// The value is everything after the first colon and is matched verbatim,
// except ids, which are canonicalized.
func ParseTaskFilter(raw string) (*TaskFilter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	field, value, ok := strings.Cut(raw, ":")
	field = strings.TrimSpace(field)
	if !ok || field == "" || value == "" {
		return nil, ErrMalformedFilter
	}

	f := TaskFilterField(field)
	if _, known := taskFilterColumns[f]; !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilterField, field)
	}

	switch f {
	case TaskFilterID, TaskFilterUserID:
		canonical, ok := CanonicalID(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a uuid", ErrInvalidFilterValue, field)
		}
		value = canonical
	case TaskFilterStatus:
		if !domain.TaskStatus(value).Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilterValue, value)
		}
	}
	return &TaskFilter{Field: f, Value: value}, nil
}

// ParseTaskSort maps a sort token onto a TaskSort. Unknown tokens mean no sort.
func ParseTaskSort(raw string) TaskSort {
	switch TaskSort(raw) {
	case TaskSortNewestUsers:
		return TaskSortNewestUsers
	case TaskSortOldestUsers:
		return TaskSortOldestUsers
	default:
		return TaskSortNone
	}
}

// normalized clamps page and page size to usable values.
func (q TaskQuery) normalized() TaskQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Offset returns the number of rows skipped before the requested page.
func (q TaskQuery) Offset() int {
	n := q.normalized()
	return (n.Page - 1) * n.PageSize
}

// Matches reports whether task satisfies the filter.
func (f *TaskFilter) Matches(task *domain.Task) bool {
	if f == nil {
		return true
	}
	switch f.Field {
	case TaskFilterID:
		return task.ID == f.Value
	case TaskFilterTitle:
		return task.Title == f.Value
	case TaskFilterDescription:
		return task.Description == f.Value
	case TaskFilterStatus:
		return string(task.Status) == f.Value
	case TaskFilterUserID:
		return task.UserID == f.Value
	}
	return false
}

const taskColumns = `tasks.id, tasks.title, tasks.description, tasks.status, tasks.user_id, tasks.created_at, tasks.updated_at`

// buildTaskListSQL renders the page and count statements for q. Only the filter
// value travels as a bind argument; column names come from taskFilterColumns.
func buildTaskListSQL(q TaskQuery) (listSQL, countSQL string, args []any) {
	q = q.normalized()

	where := ""
	if q.Filter != nil {
		column, ok := taskFilterColumns[q.Filter.Field]
		if ok {
			args = append(args, q.Filter.Value)
			where = fmt.Sprintf(" WHERE %s = $%d", column, len(args))
		}
	}

	from := " FROM tasks"
	order := " ORDER BY tasks.created_at ASC, tasks.id ASC"
	switch q.Sort {
	case TaskSortNewestUsers:
		from += " LEFT JOIN users ON users.id = tasks.user_id"
		order = " ORDER BY users.created_at DESC NULLS LAST, tasks.created_at ASC, tasks.id ASC"
	case TaskSortOldestUsers:
		from += " LEFT JOIN users ON users.id = tasks.user_id"
		order = " ORDER BY users.created_at ASC NULLS LAST, tasks.created_at ASC, tasks.id ASC"
	}

	listSQL = fmt.Sprintf("SELECT %s%s%s%s LIMIT %d OFFSET %d",
		taskColumns, from, where, order, q.PageSize, q.Offset())
	countSQL = "SELECT COUNT(*) FROM tasks" + where
	return listSQL, countSQL, args
}
