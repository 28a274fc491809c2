// Package orchestrator drives a job posting through the external
// create/publish workflow: DRAFT → LOCATION_RESOLVED → CREATED →
// PUBLISHED, with FAILED reachable from any non-terminal state and
// PUBLISH_AMBIGUOUS for a publish whose outcome was lost.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/recruitflow/unipile-sync/internal/domain"
	"github.com/recruitflow/unipile-sync/internal/mapping"
	"github.com/recruitflow/unipile-sync/internal/unipile"
)

// ErrJobNotFound distinguishes a missing job from a validation failure.
var ErrJobNotFound = errors.New("job not found")

// ErrCreateInFlight rejects a second concurrent create for the same job.
// The external system has no way to cancel a duplicate posting, so only
// one create may ever be in flight per job.
var ErrCreateInFlight = errors.New("create already in flight for this job")

// JobStore is the publication-field access the orchestrator owns.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	UpdatePublication(ctx context.Context, job *domain.Job) error
}

// AccountReader exposes the account mirror maintained by the event
// handlers. The orchestrator only reads it.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*domain.ExternalAccount, error)
}

// Provider is the slice of the external client the workflow uses.
type Provider interface {
	SearchLocations(ctx context.Context, accountID, query string) ([]unipile.Location, error)
	CreateJob(ctx context.Context, req unipile.CreateJobRequest) (*unipile.CreateJobResponse, error)
	PublishJob(ctx context.Context, accountID, jobID string, opts unipile.PublishOptions) (*unipile.PublishResponse, error)
	GetJob(ctx context.Context, accountID, jobID string) (*unipile.JobDetails, error)
	CloseJob(ctx context.Context, accountID, jobID string) error
}

// Coordinator holds the cross-process guards: the per-job create lock and
// the publish-attempted flag written before the publish call goes out.
type Coordinator interface {
	AcquireCreateLock(ctx context.Context, jobID string) (bool, error)
	ReleaseCreateLock(ctx context.Context, jobID string) error
	SetPublishAttempted(ctx context.Context, jobID string) error
	PublishAttempted(ctx context.Context, jobID string) (bool, error)
	ClearPublishAttempted(ctx context.Context, jobID string) error
}

type Orchestrator struct {
	jobs     JobStore
	accounts AccountReader
	provider Provider
	coord    Coordinator
	logger   *slog.Logger
}

func New(jobs JobStore, accounts AccountReader, provider Provider, coord Coordinator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		accounts: accounts,
		provider: provider,
		coord:    coord,
		logger:   logger,
	}
}

func (o *Orchestrator) load(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ResolveLocation resolves a free-text location query to a provider
// location ID and moves the job to LOCATION_RESOLVED. The step performs
// no external mutation, so transient failures leave state untouched and
// the same call can simply be repeated.
func (o *Orchestrator) ResolveLocation(ctx context.Context, jobID, accountID, query string) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StateDraft && job.PublicationState != domain.StateLocationResolved {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot resolve location in state %s", job.PublicationState)}
	}
	if accountID == "" {
		return nil, &domain.ValidationError{Msg: "account_id is required"}
	}
	if query == "" {
		return nil, &domain.ValidationError{Msg: "location query is required"}
	}

	acct, err := o.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Status != domain.AccountConnected {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("account %s is not connected", accountID)}
	}

	locations, err := o.provider.SearchLocations(ctx, accountID, query)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("no location matches %q", query)}
	}

	job.LocationExternalID = &locations[0].ID
	job.ExternalAccountID = &accountID
	job.PublicationState = domain.StateLocationResolved
	job.LastPublicationError = nil
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}

	o.logger.Info("location resolved",
		"job_id", job.ID,
		"location_id", locations[0].ID,
		"location", locations[0].Title,
	)
	return job, nil
}

// Create builds the posting payload and creates the job at the provider.
// Requires LOCATION_RESOLVED, re-verified on a fresh read once the create
// lock is held: a state check against a pre-lock read could pass for a
// job another create already pushed out, and the provider has no way to
// cancel a duplicate posting. Mapping failures reject before any external
// call.
func (o *Orchestrator) Create(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StateLocationResolved {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot create in state %s, resolve location first", job.PublicationState)}
	}

	locked, err := o.coord.AcquireCreateLock(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrCreateInFlight
	}
	defer func() {
		if err := o.coord.ReleaseCreateLock(context.WithoutCancel(ctx), job.ID); err != nil {
			o.logger.Error("failed to release create lock", "job_id", job.ID, "error", err)
		}
	}()

	// The pre-lock read may predate a create that finished before the
	// lock was acquired.
	job, err = o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StateLocationResolved {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot create in state %s, resolve location first", job.PublicationState)}
	}

	workplace, ok := mapping.Workplace(job.JobType)
	if !ok {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("unmapped job type %q", job.JobType)}
	}
	employment, ok := mapping.Employment(job.JobType)
	if !ok {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("unmapped job type %q", job.JobType)}
	}

	resp, err := o.provider.CreateJob(ctx, unipile.CreateJobRequest{
		AccountID:        *job.ExternalAccountID,
		JobTitle:         unipile.TextWrap{Text: job.Title},
		Company:          unipile.TextWrap{Text: job.CompanyName},
		Workplace:        workplace,
		EmploymentStatus: employment,
		Description:      mapping.FormatDescription(job),
		Location:         *job.LocationExternalID,
	})
	if err != nil {
		return nil, o.fail(ctx, job, domain.StateLocationResolved, err)
	}

	job.ExternalJobID = &resp.JobID
	job.PublicationState = domain.StateCreated
	job.LastPublicationError = nil
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}

	o.logger.Info("job created at provider",
		"job_id", job.ID,
		"external_job_id", resp.JobID,
	)
	return job, nil
}

// Publish publishes a created posting. The publish-attempted flag is set
// before the external call so a crash or timeout mid-call surfaces as
// PUBLISH_AMBIGUOUS instead of being retried as a fresh publish.
func (o *Orchestrator) Publish(ctx context.Context, jobID string, opts unipile.PublishOptions) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState == domain.StatePublishAmbiguous {
		return nil, &domain.AmbiguousError{Err: errors.New("previous publish outcome unknown, reconcile first")}
	}
	if job.PublicationState != domain.StateCreated {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot publish in state %s", job.PublicationState)}
	}

	attempted, err := o.coord.PublishAttempted(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if attempted {
		// A previous process died between flagging and recording the
		// outcome. Surface the ambiguity instead of publishing again.
		return nil, o.markAmbiguous(ctx, job, errors.New("publish attempt flag found on startup"))
	}

	if err := o.coord.SetPublishAttempted(ctx, job.ID); err != nil {
		return nil, err
	}

	// The pre-flag read may predate a publish that completed and cleared
	// the flag before ours was set. Re-read so a stale CREATED snapshot
	// cannot trigger a second external publish.
	job, err = o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState == domain.StatePublishAmbiguous {
		return nil, &domain.AmbiguousError{Err: errors.New("previous publish outcome unknown, reconcile first")}
	}
	if job.PublicationState != domain.StateCreated {
		if clearErr := o.coord.ClearPublishAttempted(ctx, job.ID); clearErr != nil {
			o.logger.Error("failed to clear publish flag", "job_id", job.ID, "error", clearErr)
		}
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot publish in state %s", job.PublicationState)}
	}

	resp, err := o.provider.PublishJob(ctx, *job.ExternalAccountID, *job.ExternalJobID, opts)
	if err != nil {
		var permanent *domain.PermanentError
		if errors.As(err, &permanent) {
			// The provider rejected the call outright, so the listing was
			// not published. Safe to fail cleanly.
			if clearErr := o.coord.ClearPublishAttempted(ctx, job.ID); clearErr != nil {
				o.logger.Error("failed to clear publish flag", "job_id", job.ID, "error", clearErr)
			}
			return nil, o.fail(ctx, job, domain.StateCreated, err)
		}
		// Timeout or exhausted retries: any attempt may have landed.
		return nil, o.markAmbiguous(ctx, job, err)
	}

	job.PublicationState = domain.StatePublished
	if resp.URL != "" {
		job.ListingURL = &resp.URL
	}
	job.LastPublicationError = nil
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}
	if err := o.coord.ClearPublishAttempted(ctx, job.ID); err != nil {
		o.logger.Error("failed to clear publish flag", "job_id", job.ID, "error", err)
	}

	o.logger.Info("job published",
		"job_id", job.ID,
		"external_job_id", *job.ExternalJobID,
		"listing_url", resp.URL,
	)
	return job, nil
}

// Reconcile resolves a PUBLISH_AMBIGUOUS job by reading the posting back
// from the provider: listed means the publish landed, otherwise the job
// returns to CREATED for a fresh publish.
func (o *Orchestrator) Reconcile(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StatePublishAmbiguous {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("nothing to reconcile in state %s", job.PublicationState)}
	}

	details, err := o.provider.GetJob(ctx, *job.ExternalAccountID, *job.ExternalJobID)
	if err != nil {
		// Read-only, so the caller can retry reconcile freely.
		return nil, err
	}

	if details.Status == "PUBLISHED" || details.URL != "" {
		job.PublicationState = domain.StatePublished
		if details.URL != "" {
			job.ListingURL = &details.URL
		}
	} else {
		job.PublicationState = domain.StateCreated
	}
	job.LastPublicationError = nil
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}
	if err := o.coord.ClearPublishAttempted(ctx, job.ID); err != nil {
		o.logger.Error("failed to clear publish flag", "job_id", job.ID, "error", err)
	}

	o.logger.Info("ambiguous publish reconciled",
		"job_id", job.ID,
		"state", job.PublicationState,
	)
	return job, nil
}

// Retry moves a FAILED job back into the state it failed from. Steps are
// never skipped: the workflow re-enters exactly where it left off.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StateFailed || job.FailedFrom == nil {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot retry in state %s", job.PublicationState)}
	}

	job.PublicationState = *job.FailedFrom
	job.FailedFrom = nil
	job.LastPublicationError = nil
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Close takes a published listing down at the provider.
func (o *Orchestrator) Close(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PublicationState != domain.StatePublished {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("cannot close in state %s", job.PublicationState)}
	}

	if err := o.provider.CloseJob(ctx, *job.ExternalAccountID, *job.ExternalJobID); err != nil {
		return nil, err
	}

	job.PublicationState = domain.StateClosed
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Status reads the current publication state for the CRUD layer.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return o.load(ctx, jobID)
}

// fail transitions to FAILED, remembering the state the step fell out of
// and the cause. The original error is returned for the caller.
func (o *Orchestrator) fail(ctx context.Context, job *domain.Job, from domain.PublicationState, cause error) error {
	msg := cause.Error()
	job.PublicationState = domain.StateFailed
	job.FailedFrom = &from
	job.LastPublicationError = &msg
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		o.logger.Error("failed to record publication failure", "job_id", job.ID, "error", err)
	}
	return cause
}

func (o *Orchestrator) markAmbiguous(ctx context.Context, job *domain.Job, cause error) error {
	msg := cause.Error()
	job.PublicationState = domain.StatePublishAmbiguous
	job.LastPublicationError = &msg
	if err := o.jobs.UpdatePublication(ctx, job); err != nil {
		o.logger.Error("failed to record ambiguous publish", "job_id", job.ID, "error", err)
	}
	return &domain.AmbiguousError{Err: cause}
}
