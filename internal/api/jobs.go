package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/recruitflow/unipile-sync/internal/domain"
	"github.com/recruitflow/unipile-sync/internal/orchestrator"
	"github.com/recruitflow/unipile-sync/internal/store"
	"github.com/recruitflow/unipile-sync/internal/unipile"
)

// Publisher is the orchestrator surface the job endpoints consume.
type Publisher interface {
	ResolveLocation(ctx context.Context, jobID, accountID, query string) (*domain.Job, error)
	Create(ctx context.Context, jobID string) (*domain.Job, error)
	Publish(ctx context.Context, jobID string, opts unipile.PublishOptions) (*domain.Job, error)
	Reconcile(ctx context.Context, jobID string) (*domain.Job, error)
	Retry(ctx context.Context, jobID string) (*domain.Job, error)
	Close(ctx context.Context, jobID string) (*domain.Job, error)
	Status(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobCreator inserts local drafts for the orchestrator to operate on.
type JobCreator interface {
	CreateJob(ctx context.Context, job *domain.Job) error
}

// ApplicantReader proxies applicant reads to the provider.
type ApplicantReader interface {
	ListApplicants(ctx context.Context, accountID, jobID string) ([]unipile.Applicant, error)
}

type JobHandler struct {
	jobs       JobCreator
	publisher  Publisher
	applicants ApplicantReader
}

func NewJobHandler(jobs JobCreator, publisher Publisher, applicants ApplicantReader) *JobHandler {
	return &JobHandler{jobs: jobs, publisher: publisher, applicants: applicants}
}

type createJobRequest struct {
	Title            string   `json:"title"`
	CompanyName      string   `json:"company_name"`
	Description      string   `json:"description"`
	Responsibilities string   `json:"responsibilities"`
	Requirements     string   `json:"requirements"`
	NiceToHave       string   `json:"nice_to_have"`
	SalaryRange      string   `json:"salary_range"`
	Location         string   `json:"location"`
	JobType          string   `json:"job_type"`
	CategoryName     string   `json:"category_name"`
	Skills           []string `json:"skills"`
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CompanyName == "" {
		respondError(w, http.StatusBadRequest, "company_name is required")
		return
	}
	if req.JobType == "" {
		respondError(w, http.StatusBadRequest, "job_type is required")
		return
	}

	job := &domain.Job{
		ID:               uuid.NewString(),
		Title:            req.Title,
		CompanyName:      req.CompanyName,
		Description:      req.Description,
		Responsibilities: req.Responsibilities,
		Requirements:     req.Requirements,
		NiceToHave:       req.NiceToHave,
		SalaryRange:      req.SalaryRange,
		Location:         req.Location,
		JobType:          req.JobType,
		CategoryName:     req.CategoryName,
		Skills:           req.Skills,
		PublicationState: domain.StateDraft,
	}
	if err := h.jobs.CreateJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

type resolveLocationRequest struct {
	AccountID string `json:"account_id"`
	Query     string `json:"query"`
}

func (h *JobHandler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	var req resolveLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.publisher.ResolveLocation(r.Context(), chi.URLParam(r, "id"), req.AccountID, req.Query)
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *JobHandler) CreateExternal(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Create(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

type publishRequest struct {
	Mode string `json:"mode"`
}

func (h *JobHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := h.publisher.Publish(r.Context(), chi.URLParam(r, "id"), unipile.PublishOptions{Mode: req.Mode})
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *JobHandler) CloseExternal(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

type statusResponse struct {
	JobID            string                  `json:"job_id"`
	PublicationState domain.PublicationState `json:"publication_state"`
	ExternalJobID    *string                 `json:"external_job_id,omitempty"`
	ListingURL       *string                 `json:"listing_url,omitempty"`
	LastError        *string                 `json:"last_publication_error,omitempty"`
}

func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{
		JobID:            job.ID,
		PublicationState: job.PublicationState,
		ExternalJobID:    job.ExternalJobID,
		ListingURL:       job.ListingURL,
		LastError:        job.LastPublicationError,
	})
}

func (h *JobHandler) Applicants(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	if job.ExternalJobID == nil || job.ExternalAccountID == nil {
		respondError(w, http.StatusBadRequest, "job has no external posting")
		return
	}

	applicants, err := h.applicants.ListApplicants(r.Context(), *job.ExternalAccountID, *job.ExternalJobID)
	if err != nil {
		respondPublicationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, applicants)
}

// respondPublicationError maps the error kinds onto HTTP statuses:
// caller mistakes are 4xx, provider trouble is 502, and an ambiguous
// publish is 409 so the CRUD layer knows to offer reconciliation.
func respondPublicationError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var ambiguous *domain.AmbiguousError
	var transient *domain.TransientError
	var permanent *domain.PermanentError

	switch {
	case errors.Is(err, orchestrator.ErrJobNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrCreateInFlight), errors.Is(err, store.ErrVersionConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ambiguous):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &transient), errors.As(err, &permanent):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
