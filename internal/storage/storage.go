package storage

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DateLayout is the layout tasks are written with. Sorting relies on it being
// lexically ordered.
const DateLayout = "2006-01-02 15:04"

type Task struct {
	ID       int
	Title    string
	Content  string
	Date     string
	Category string
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// mu serializes mutations with snapshot publication so subscribers see
	// exactly one snapshot per write, in write order.
	mu     sync.Mutex
	subsMu sync.Mutex
	subs   map[*subscriber]struct{}
	closed chan struct{}
	once   sync.Once
}

type Option func(*Store)

// WithLogger attaches a logger used for subscription diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func Open(dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: zap.NewNop(),
		subs:   make(map[*subscriber]struct{}),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection and ends every live subscription.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.db.Close()
	})
	return err
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL DEFAULT 0
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	if err := s.ensureTaskColumns(); err != nil {
		return err
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS tasks_category ON tasks (category);`,
		`CREATE INDEX IF NOT EXISTS tasks_date ON tasks (date DESC, seq);`,
	}
	for _, ddl := range indexes {
		if _, err := s.db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"content":  "ALTER TABLE tasks ADD COLUMN content TEXT NOT NULL DEFAULT '';",
		"category": "ALTER TABLE tasks ADD COLUMN category TEXT NOT NULL DEFAULT '';",
		"seq":      "ALTER TABLE tasks ADD COLUMN seq INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	// The pool holds a single connection, so the cursor must be released
	// before issuing ALTER statements.
	rows.Close()
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

// QueryAll returns every task, latest date first. Equal dates keep insertion order.
func (s *Store) QueryAll() ([]Task, error) {
	tasks, err := s.query(`SELECT id, title, content, date, category FROM tasks ORDER BY date DESC, seq ASC;`)
	if err != nil {
		return nil, readError("query all", err)
	}
	return tasks, nil
}

// QueryByCategory returns tasks whose category equals text exactly.
func (s *Store) QueryByCategory(text string) ([]Task, error) {
	tasks, err := s.query(`SELECT id, title, content, date, category FROM tasks WHERE category = ? ORDER BY date DESC, seq ASC;`, text)
	if err != nil {
		return nil, readError("query by category", err)
	}
	return tasks, nil
}

func (s *Store) Get(id int) (Task, bool, error) {
	var t Task
	err := s.db.QueryRow(`SELECT id, title, content, date, category FROM tasks WHERE id = ?;`, id).
		Scan(&t.ID, &t.Title, &t.Content, &t.Date, &t.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, readError("get task", err)
	}
	return t, true, nil
}

// NextID returns an identifier one past the largest stored id.
func (s *Store) NextID() (int, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM tasks;`).Scan(&maxID); err != nil {
		return 0, readError("next id", err)
	}
	if !maxID.Valid {
		return 1, nil
	}
	return int(maxID.Int64) + 1, nil
}

func (s *Store) Insert(t Task) error {
	return s.upsert("insert task", t)
}

func (s *Store) Update(t Task) error {
	return s.upsert("update task", t)
}

func (s *Store) upsert(op string, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
INSERT INTO tasks (id, title, content, date, category, seq)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks))
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	content = excluded.content,
	date = excluded.date,
	category = excluded.category;`,
		t.ID, t.Title, t.Content, t.Date, t.Category)
	if err != nil {
		return writeError(op, err)
	}
	s.publishLocked()
	return nil
}

// DeleteByID removes the task with id and reports how many rows went away.
// A missing id is not an error.
func (s *Store) DeleteByID(id int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		return 0, writeError("delete task", err)
	}
	n := s.rowsAffected(res, id)
	s.publishLocked()
	return n, nil
}

// rowsAffected reports 0 when the driver cannot count the rows.
func (s *Store) rowsAffected(res sql.Result, id int) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("rows affected unavailable", zap.Int("task_id", id), zap.Error(err))
		return 0
	}
	return n
}

func (s *Store) query(q string, args ...any) ([]Task, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.Date, &t.Category); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
