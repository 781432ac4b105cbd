package feedback

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresLog is an alternative durable backend for shared deployments
// where several reviewers feed the same correction log.
type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(config PostgresConfig) (*PostgresLog, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	log := &PostgresLog{db: db}
	if err := log.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return log, nil
}

func (l *PostgresLog) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := l.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (l *PostgresLog) Append(rec models.FeedbackRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO feedback (deadline_at, title, source, reason, ts) VALUES ($1, $2, $3, $4, $5)`,
		rec.DeadlineAt, rec.Title, rec.Source, rec.Reason, rec.TS,
	)
	if err != nil {
		return fmt.Errorf("error inserting feedback record: %w", err)
	}
	return nil
}

func (l *PostgresLog) Load() ([]models.FeedbackRecord, error) {
	rows, err := l.db.Query(
		`SELECT deadline_at, title, source, reason, ts FROM feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying feedback records: %w", err)
	}
	defer rows.Close()

	var records []models.FeedbackRecord
	for rows.Next() {
		var rec models.FeedbackRecord
		if err := rows.Scan(&rec.DeadlineAt, &rec.Title, &rec.Source, &rec.Reason, &rec.TS); err != nil {
			// Unreadable rows are skipped like corrupt log lines.
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return records, fmt.Errorf("error reading feedback records: %w", err)
	}
	return records, nil
}

func (l *PostgresLog) Exists() bool {
	var exists bool
	if err := l.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM feedback)`).Scan(&exists); err != nil {
		return false
	}
	return exists
}

func (l *PostgresLog) Close() error {
	return l.db.Close()
}
