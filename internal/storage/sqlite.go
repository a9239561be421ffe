package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Store backed by a SQLite database. Unlike the memory
// backend it survives process restarts; AUTOINCREMENT guarantees ids are
// never reused even after deletes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database in dataDir and applies pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "doubtd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) Create(text string, userID *int64) (Question, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO questions (question, state, outcome_text, user_id, created_at)
		VALUES (?, 'pending', '', ?, ?)`,
		text, userID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Question{}, fmt.Errorf("inserting question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Question{}, fmt.Errorf("reading inserted id: %w", err)
	}
	return Question{
		ID:        id,
		Text:      text,
		Outcome:   Pending(),
		UserID:    userID,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) Get(id int64) (Question, error) {
	row := s.db.QueryRow(`
		SELECT id, question, state, outcome_text, user_id, created_at
		FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

func (s *SQLiteStore) ListByUser(userID int64) ([]Question, error) {
	rows, err := s.db.Query(`
		SELECT id, question, state, outcome_text, user_id, created_at
		FROM questions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ListRecent(limit int) ([]Question, error) {
	rows, err := s.db.Query(`
		SELECT id, question, state, outcome_text, user_id, created_at
		FROM questions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) SetOutcome(id int64, o Outcome) (Question, error) {
	var text string
	if a, ok := o.Answer(); ok {
		text = a
	} else if e, ok := o.Err(); ok {
		text = e
	}
	res, err := s.db.Exec(`UPDATE questions SET state = ?, outcome_text = ? WHERE id = ?`,
		string(o.State()), text, id)
	if err != nil {
		return Question{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Question{}, err
	}
	if n == 0 {
		return Question{}, ErrNotFound
	}
	return s.Get(id)
}

func (s *SQLiteStore) Delete(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteByUser(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE user_id = ?`, userID)
	return err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var (
		q         Question
		state     string
		text      string
		userID    sql.NullInt64
		createdAt string
	)
	err := row.Scan(&q.ID, &q.Text, &state, &text, &userID, &createdAt)
	if err == sql.ErrNoRows {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, err
	}

	switch State(state) {
	case StateAnswered:
		q.Outcome = Answered(text)
	case StateFailed:
		q.Outcome = Failed(text)
	default:
		q.Outcome = Pending()
	}

	if userID.Valid {
		uid := userID.Int64
		q.UserID = &uid
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Question{}, fmt.Errorf("parsing created_at: %w", err)
	}
	q.CreatedAt = t
	return q, nil
}
