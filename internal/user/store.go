package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/birthday-notifier/internal/event"
)

// userColumns is the canonical select list, kept in scan order.
const userColumns = `id, first_name, last_name, email, birthday, anniversary, city, status,
	birthday_sent_status, birthday_sent, anniversary_sent_status, anniversary_sent, created_at`

// Store runs all user queries against a shared pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a user and returns the stored record with its assigned id
// and creation timestamp.
func (s *Store) Create(ctx context.Context, n NewUser) (User, error) {
	u := User{
		FirstName:   n.FirstName,
		LastName:    n.LastName,
		Email:       n.Email,
		Birthday:    n.Birthday,
		Anniversary: n.Anniversary,
		City:        n.City,
		Status:      n.Status,
	}
	var ann *time.Time
	if n.Anniversary != nil {
		ann = &n.Anniversary.Time
	}
	err := s.pool.QueryRow(ctx, "create_user",
		n.FirstName, n.LastName, n.Email, n.Birthday.Time, ann, n.City, string(n.Status),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// List returns all users ordered by id.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, "list_users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return scanUsers(rows)
}

// Update applies a partial field update as one statement. Returns false when
// the id does not exist; no row is touched in that case.
func (s *Store) Update(ctx context.Context, id int64, upd Update) (bool, error) {
	set, args := buildUpdate(upd)
	if len(set) == 0 {
		return false, fmt.Errorf("no fields to update")
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update user %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a user. Returns false when the id does not exist.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "delete_user", id)
	if err != nil {
		return false, fmt.Errorf("delete user %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// --------------------------------------------------------------------------
// Delivery tracking — consumed by the scheduler
// --------------------------------------------------------------------------

// FetchActive returns all active users for the periodic tick.
func (s *Store) FetchActive(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, "fetch_active_users")
	if err != nil {
		return nil, fmt.Errorf("fetch active users: %w", err)
	}
	return scanUsers(rows)
}

// FetchUnsent returns users whose event of the given type has a date but no
// delivery yet, regardless of active status. Used by the recovery sweep.
// Column names come from the event registry, never from input.
func (s *Store) FetchUnsent(ctx context.Context, t event.Type) ([]User, error) {
	rows, err := s.pool.Query(ctx, fetchUnsentSQL(t))
	if err != nil {
		return nil, fmt.Errorf("fetch unsent %s users: %w", t.Name, err)
	}
	return scanUsers(rows)
}

// MarkSent flips the sent flag and records the delivery instant for one user
// and event type. The `flag = FALSE` guard makes the transition atomic: the
// first caller wins, any concurrent or repeated call reports false and sends
// nothing further.
func (s *Store) MarkSent(ctx context.Context, t event.Type, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, markSentSQL(t), id)
	if err != nil {
		return false, fmt.Errorf("mark %s sent for user %d: %w", t.Name, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetRollover clears sent flags whose delivery year predates the current
// year, re-arming yearly recurrence. Flags newer than the recovery window are
// left alone: a late-December delivery must stay claimed through the New Year
// boundary, otherwise the startup sweep would see the row as unsent while the
// fire instant is still inside its window and greet the same occurrence twice.
func (s *Store) ResetRollover(ctx context.Context, t event.Type, window time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, resetRolloverSQL(t), window.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reset %s rollover: %w", t.Name, err)
	}
	return tag.RowsAffected(), nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func scanUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u        User
			birthday time.Time
			ann      *time.Time
		)
		if err := rows.Scan(
			&u.ID, &u.FirstName, &u.LastName, &u.Email, &birthday, &ann,
			&u.City, &u.Status, &u.BirthdaySentStatus, &u.BirthdaySent,
			&u.AnniversarySentStatus, &u.AnniversarySent, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Birthday = Date{birthday}
		if ann != nil {
			u.Anniversary = &Date{*ann}
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func fetchUnsentSQL(t event.Type) string {
	return fmt.Sprintf(
		"SELECT %s FROM users WHERE %s = FALSE AND %s IS NOT NULL ORDER BY id",
		userColumns, t.SentFlagColumn, t.DateColumn)
}

func markSentSQL(t event.Type) string {
	return fmt.Sprintf(
		"UPDATE users SET %s = TRUE, %s = NOW() WHERE id = $1 AND %s = FALSE",
		t.SentFlagColumn, t.SentAtColumn, t.SentFlagColumn)
}

func resetRolloverSQL(t event.Type) string {
	return fmt.Sprintf(`
		UPDATE users SET %s = FALSE
		WHERE %s = TRUE
		  AND date_part('year', %s) < date_part('year', NOW())
		  AND %s < NOW() - make_interval(secs => $1)`,
		t.SentFlagColumn, t.SentFlagColumn, t.SentAtColumn, t.SentAtColumn)
}

func buildUpdate(upd Update) (set []string, args []any) {
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Birthday != nil {
		add("birthday", upd.Birthday.Time)
	}
	if upd.Anniversary != nil {
		add("anniversary", upd.Anniversary.Time)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	return set, args
}
