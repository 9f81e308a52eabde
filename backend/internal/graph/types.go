package graph

import "time"

// ============================================================================
// Roles and Statuses
// ============================================================================

// User roles
const (
	RoleJobSeeker     = "job_seeker"
	RoleBusinessOwner = "business_owner"
	RoleClient        = "client"
	RoleAdmin         = "admin"
)

// Verification statuses
const (
	VerificationPending  = "pending"
	VerificationUnderway = "pending_verification"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Application statuses
const (
	ApplicationPending   = "pending"
	ApplicationAccepted  = "accepted"
	ApplicationRejected  = "rejected"
	ApplicationWithdrawn = "withdrawn"
)

// Service statuses
const (
	ServiceOpen       = "open"
	ServiceInProgress = "in_progress"
	ServiceClosed     = "closed"
)

// Offer statuses
const (
	OfferPending  = "pending"
	OfferAccepted = "accepted"
	OfferRejected = "rejected"
)

// Notification statuses
const (
	NotificationUnread = "unread"
	NotificationRead   = "read"
)

// BootstrapAdminEmail is the only identity that may hold the admin role
// without an existing admin granting it.
const BootstrapAdminEmail = "admin@lokalhub.local"

// ValidRole reports whether role is one of the known user roles
func ValidRole(role string) bool {
	switch role {
	case RoleJobSeeker, RoleBusinessOwner, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// KnownApplicationStatus reports whether status is a recognized application status
func KnownApplicationStatus(status string) bool {
	switch status {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

// TerminalApplicationStatus reports whether status permits no further transition
func TerminalApplicationStatus(status string) bool {
	switch status {
	case ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

// ============================================================================
// Domain Records
// ============================================================================

// User represents a marketplace user
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name,omitempty"`
	Role               string    `json:"role"`
	VerificationStatus string    `json:"verification_status"`
	PasswordHash       string    `json:"-"`
	ResumePath         string    `json:"resume_path,omitempty"`
	PermitPath         string    `json:"permit_path,omitempty"`
	IDDocumentPath     string    `json:"id_document_path,omitempty"`
	RejectionReason    string    `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Business represents a registered local business
type Business struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location,omitempty"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Job represents a job posting
type Job struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Requirements []string  `json:"requirements"`
	Location     string    `json:"location,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	Salary       string    `json:"salary,omitempty"`
	JobType      string    `json:"job_type,omitempty"` // full_time, part_time, contract
	CreatedAt    time.Time `json:"created_at"`
}

// Application links a job seeker to a job posting
type Application struct {
	ID          string    `json:"id"`
	ApplicantID string    `json:"applicant_id,omitempty"`
	JobID       string    `json:"job_id,omitempty"`
	Status      string    `json:"status"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
	DateApplied time.Time `json:"date_applied"`
}

// Service represents a client's service request
type Service struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Budget      string    `json:"budget,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServiceOffer is carried as properties on the OFFERS relationship
type ServiceOffer struct {
	OffererID string    `json:"offerer_id"`
	ServiceID string    `json:"service_id"`
	Status    string    `json:"status"`
	Proposal  string    `json:"proposal,omitempty"`
	Price     string    `json:"price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is written by a user about a business
type Review struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id,omitempty"`
	BusinessID string    `json:"business_id,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notification belongs to a single user's inbox
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is an append-only audit record
type Activity struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Action     string    `json:"action"`
	UserID     string    `json:"user_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	TargetType string    `json:"target_type,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
