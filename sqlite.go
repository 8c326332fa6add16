package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

type Sqlite struct {
	pool *sql.DB
}

func NewSqlite(path string) (*Sqlite, error) {
	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error when opening sqlite: %w", err)
	}

	// Workers write concurrently, sqlite only takes one writer
	pool.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &Sqlite{
		pool: pool,
	}, nil
}

//go:embed migrations/*.sql
var embedMigrations embed.FS

func (s *Sqlite) RunMigrations() error {
	migrationFs, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create fs.FS: %w", err)
	}

	d, err := iofs.New(migrationFs, ".")
	if err != nil {
		return fmt.Errorf("failed to create new instance: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.pool, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("error to get driver with instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("error to make new instance of migration: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error doing migrations: %w", err)
	}

	return nil
}

func (s *Sqlite) Close() error {
	return s.pool.Close()
}

func (s *Sqlite) GetJobs() ([]Job, error) {
	querySQL := `SELECT id, trace_id, path, mode, side_check, output_path, retries FROM jobs
				WHERE done = false AND failed = false ORDER BY id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []Job{}, err
	}

	defer rows.Close()
	jobs := []Job{}
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.TraceID, &j.Path, &j.Mode, &j.SideCheck, &j.OutputPath, &j.Retries); err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return []Job{}, err
	}

	return jobs, nil
}

func (s *Sqlite) GetJob(id int64) (Job, error) {
	querySQL := `SELECT id, trace_id, path, mode, side_check, output_path, done, failed, retries FROM jobs WHERE id = ?`

	var j Job
	err := s.pool.QueryRow(querySQL, id).Scan(&j.ID, &j.TraceID, &j.Path, &j.Mode, &j.SideCheck,
		&j.OutputPath, &j.Done, &j.Failed, &j.Retries)
	if err != nil {
		return Job{}, err
	}

	return j, nil
}

func (s *Sqlite) InsertJob(job *Job) (int64, error) {
	insertSQL := `INSERT INTO jobs (trace_id, path, mode, side_check, output_path, done) VALUES (?, ?, ?, ?, ?, ?)`
	statement, err := s.pool.Prepare(insertSQL)
	if err != nil {
		return 0, err
	}

	defer statement.Close()
	result, err := statement.Exec(job.TraceID, job.Path, job.Mode, job.SideCheck, job.OutputPath, false)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	job.ID = id
	return id, nil
}

func (s *Sqlite) MarkJobAsDone(job *Job) error {
	updateSQL := `UPDATE jobs SET done = true, output_path = ? WHERE id = ?`
	statement, err := s.pool.Prepare(updateSQL)
	if err != nil {
		return err
	}
	defer statement.Close()

	_, err = statement.Exec(job.OutputPath, job.ID)
	if err != nil {
		return err
	}

	job.Done = true
	return nil
}

func (s *Sqlite) GetJobRetries(job *Job) (int, error) {
	getRetrySQL := `SELECT retries FROM jobs WHERE id = ?`
	statement, err := s.pool.Prepare(getRetrySQL)
	if err != nil {
		return 0, err
	}
	defer statement.Close()

	retries := 0
	err = statement.QueryRow(job.ID).Scan(&retries)
	if err != nil {
		return 0, err
	}

	return retries, nil
}

func (s *Sqlite) UpdateJobRetries(job *Job, retries int) error {
	updateSQL := `UPDATE jobs SET retries = ? WHERE id = ?`
	statement, err := s.pool.Prepare(updateSQL)
	if err != nil {
		return err
	}
	defer statement.Close()

	_, err = statement.Exec(retries, job.ID)
	if err != nil {
		return err
	}

	job.Retries = retries
	return nil
}

func (s *Sqlite) FailJob(job *Job, output string, jobErr string) (err error) {
	tx, err := s.pool.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insertSQL := `INSERT INTO failed_jobs (job_id, output, error) VALUES (?, ?, ?)`
	if _, err = tx.Exec(insertSQL, job.ID, output, jobErr); err != nil {
		return err
	}

	markFailedSQL := `UPDATE jobs SET failed = ? WHERE id = ?`
	if _, err = tx.Exec(markFailedSQL, true, job.ID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	job.Failed = true
	return nil
}

func (s *Sqlite) DeleteJobByID(tx *sql.Tx, id int64) error {
	deleteSQL := `DELETE FROM jobs WHERE id = ?`
	var statement *sql.Stmt
	var err error
	if tx != nil {
		statement, err = tx.Prepare(deleteSQL)
	} else {
		statement, err = s.pool.Prepare(deleteSQL)
	}

	if err != nil {
		return err
	}

	defer statement.Close()
	_, err = statement.Exec(id)
	return err
}

func (s *Sqlite) GetFailedJobs() ([]FailedJob, error) {
	querySQL := `SELECT f.id, f.output, f.error, j.id, j.trace_id, j.path, j.mode, j.side_check, j.output_path, j.retries
				FROM failed_jobs f
				INNER JOIN jobs j ON j.id = f.job_id
				ORDER BY f.id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []FailedJob{}, err
	}

	defer rows.Close()
	jobs := []FailedJob{}
	for rows.Next() {
		var f FailedJob
		if err := rows.Scan(&f.ID, &f.Output, &f.Error, &f.Job.ID, &f.Job.TraceID, &f.Job.Path,
			&f.Job.Mode, &f.Job.SideCheck, &f.Job.OutputPath, &f.Job.Retries); err != nil {
			return jobs, err
		}
		f.Job.Failed = true
		jobs = append(jobs, f)
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return []FailedJob{}, err
	}

	return jobs, nil
}
