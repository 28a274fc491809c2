package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// ErrVersionConflict is returned when a publication write lost the race
// against a concurrent writer for the same job.
var ErrVersionConflict = errors.New("job modified concurrently")

const jobColumns = `id, title, company_name, description, responsibilities, requirements,
	nice_to_have, salary_range, location, job_type, category_name, skills, created_at,
	publication_state, external_job_id, external_account_id, location_external_id,
	listing_url, last_publication_error, failed_from, version,
	email_opens, email_clicks, connections`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Title, &j.CompanyName, &j.Description, &j.Responsibilities, &j.Requirements,
		&j.NiceToHave, &j.SalaryRange, &j.Location, &j.JobType, &j.CategoryName, &j.Skills, &j.CreatedAt,
		&j.PublicationState, &j.ExternalJobID, &j.ExternalAccountID, &j.LocationExternalID,
		&j.ListingURL, &j.LastPublicationError, &j.FailedFrom, &j.Version,
		&j.EmailOpens, &j.EmailClicks, &j.Connections,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a local draft. Content fields come from the CRUD
// layer; publication fields start at their zero state.
func (s *PostgresStore) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, title, company_name, description, responsibilities, requirements,
			nice_to_have, salary_range, location, job_type, category_name, skills, publication_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, job.ID, job.Title, job.CompanyName, job.Description, job.Responsibilities, job.Requirements,
		job.NiceToHave, job.SalaryRange, job.Location, job.JobType, job.CategoryName, job.Skills,
		domain.StateDraft)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return job, nil
}

// UpdatePublication writes the orchestrator-owned fields guarded by the
// version the caller read. Zero rows affected means another writer got
// there first; the caller must re-read before deciding anything.
func (s *PostgresStore) UpdatePublication(ctx context.Context, job *domain.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET publication_state = $3, external_job_id = $4, external_account_id = $5,
			location_external_id = $6, listing_url = $7, last_publication_error = $8,
			failed_from = $9, version = version + 1
		WHERE id = $1 AND version = $2
	`, job.ID, job.Version,
		job.PublicationState, job.ExternalJobID, job.ExternalAccountID,
		job.LocationExternalID, job.ListingURL, job.LastPublicationError, job.FailedFrom)
	if err != nil {
		return fmt.Errorf("updating publication state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	job.Version++
	return nil
}

// Engagement counters updatable by event handlers.
const (
	CounterEmailOpens  = "email_opens"
	CounterEmailClicks = "email_clicks"
	CounterConnections = "connections"
)

var engagementColumns = map[string]bool{
	CounterEmailOpens:  true,
	CounterEmailClicks: true,
	CounterConnections: true,
}

// IncrementEngagement bumps a read-only engagement counter on the job
// referenced by a provider job ID. Unknown external IDs are a no-op.
func (s *PostgresStore) IncrementEngagement(ctx context.Context, externalJobID, counter string) error {
	if !engagementColumns[counter] {
		return fmt.Errorf("unknown engagement counter %q", counter)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET `+counter+` = `+counter+` + 1 WHERE external_job_id = $1`,
		externalJobID)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", counter, err)
	}
	return nil
}
