package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certdrill/certdrill/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists the question bank, administrator answer-key overrides,
// the exam history log, and admin accounts in a local SQLite database.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		prompt TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS options (
		question_id INTEGER NOT NULL,
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		correct INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL,
		PRIMARY KEY (question_id, id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS answer_overrides (
		question_id INTEGER PRIMARY KEY,
		correct_ids TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS history (
		session_id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		record TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS bank_imports (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question with its options.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO questions (topic, prompt, note) VALUES (?, ?, ?)`,
		q.Topic, q.Prompt, q.Note,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, o := range q.Options {
		_, err := tx.Exec(
			`INSERT INTO options (question_id, id, text, correct, position) VALUES (?, ?, ?, ?, ?)`,
			id, o.ID, o.Text, o.Correct, i,
		)
		if err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

// GetQuestion returns a question with its options in stored order.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, prompt, note FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Topic, &q.Prompt, &q.Note)
	if err != nil {
		return q, err
	}
	q.Options, err = s.questionOptions(ctx, id)
	return q, err
}

func (s *Store) questionOptions(ctx context.Context, questionID int64) ([]model.Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, correct FROM options WHERE question_id = ? ORDER BY position`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var options []model.Option
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.Text, &o.Correct); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// FetchQuestions returns the full question bank and its topic metadata.
// It satisfies the session manager's question source.
func (s *Store) FetchQuestions(ctx context.Context) ([]model.Question, []model.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, topic, prompt, note FROM questions ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Topic, &q.Prompt, &q.Note); err != nil {
			return nil, nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for i := range questions {
		questions[i].Options, err = s.questionOptions(ctx, questions[i].ID)
		if err != nil {
			return nil, nil, fmt.Errorf("load options for question %d: %w", questions[i].ID, err)
		}
	}

	topics, err := s.ListTopics(ctx)
	if err != nil {
		return nil, nil, err
	}
	return questions, topics, nil
}

// ListTopics returns the distinct topics with their question counts,
// ordered alphabetically.
func (s *Store) ListTopics(ctx context.Context) ([]model.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, COUNT(*) FROM questions GROUP BY topic ORDER BY topic`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.Name, &t.QuestionCount); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// GetImportedFileHash returns the recorded hash for an imported bank
// file, or empty string if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM bank_imports WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported bank file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO bank_imports (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = ?`,
		path, hash, hash,
	)
	return err
}
