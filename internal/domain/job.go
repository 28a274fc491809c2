package domain

import "time"

// PublicationState is the lifecycle stage of a job's external listing.
type PublicationState string

const (
	StateDraft            PublicationState = "DRAFT"
	StateLocationResolved PublicationState = "LOCATION_RESOLVED"
	StateCreated          PublicationState = "CREATED"
	StatePublished        PublicationState = "PUBLISHED"
	StateClosed           PublicationState = "CLOSED"
	StateFailed           PublicationState = "FAILED"
	// StatePublishAmbiguous marks a publish whose external outcome is
	// unknown (timeout after the call was attempted). It is never retried
	// automatically; Reconcile resolves it against the provider.
	StatePublishAmbiguous PublicationState = "PUBLISH_AMBIGUOUS"
)

// Job is the subset of a job posting this service owns. Content fields are
// written by the CRUD layer when the draft is created; the publication
// fields belong exclusively to the orchestrator, and the engagement
// counters to the mail-tracking and relations event handlers.
type Job struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	CompanyName      string    `json:"company_name"`
	Description      string    `json:"description"`
	Responsibilities string    `json:"responsibilities"`
	Requirements     string    `json:"requirements"`
	NiceToHave       string    `json:"nice_to_have,omitempty"`
	SalaryRange      string    `json:"salary_range,omitempty"`
	Location         string    `json:"location"`
	JobType          string    `json:"job_type"`
	CategoryName     string    `json:"category_name,omitempty"`
	Skills           []string  `json:"skills,omitempty"`
	CreatedAt        time.Time `json:"created_at"`

	PublicationState     PublicationState `json:"publication_state"`
	ExternalJobID        *string          `json:"external_job_id,omitempty"`
	ExternalAccountID    *string          `json:"external_account_id,omitempty"`
	LocationExternalID   *string          `json:"location_external_id,omitempty"`
	ListingURL           *string          `json:"listing_url,omitempty"`
	LastPublicationError *string          `json:"last_publication_error,omitempty"`
	// FailedFrom remembers the state a FAILED job fell out of so a retry
	// re-enters exactly there, never skipping a step.
	FailedFrom *PublicationState `json:"failed_from,omitempty"`
	// Version is bumped on every publication-field write; writers supply
	// the version they read to detect concurrent mutation.
	Version int `json:"version"`

	EmailOpens  int `json:"email_opens"`
	EmailClicks int `json:"email_clicks"`
	Connections int `json:"connections"`
}
