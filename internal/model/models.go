package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ── Catalog ────────────────────────────────────────────

// Job types
const (
	JobTypeClinical    = "Clinical"
	JobTypeNonClinical = "Non-Clinical"
	JobTypeAcademic    = "Academic"
)

func ValidJobType(t string) bool {
	switch t {
	case JobTypeClinical, JobTypeNonClinical, JobTypeAcademic:
		return true
	}
	return false
}

// Job is an open position in the catalog
type Job struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Department        string    `json:"department"`
	Location          string    `json:"location"`
	Type              string    `json:"type"`
	Description       string    `json:"description"`
	Requirements      []string  `json:"requirements"`
	RequiredDocuments []string  `json:"required_documents"`
	LicenseLabel      string    `json:"license_label"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ── Applications ───────────────────────────────────────

// Application statuses. A NULL status is the same logical state as Pending.
const (
	StatusPending     = "Pending"
	StatusShortlisted = "Shortlisted"
	StatusRejected    = "Rejected"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusShortlisted, StatusRejected:
		return true
	}
	return false
}

// Application is one submitted application
type Application struct {
	ID              uuid.UUID  `json:"id"`
	ReferenceNumber string     `json:"reference_number"`
	IdempotencyKey  *string    `json:"-"`
	JobID           *uuid.UUID `json:"job_id,omitempty"`

	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DateOfBirth   string `json:"date_of_birth"`
	StateOfOrigin string `json:"state_of_origin"`
	LGA           string `json:"lga"`
	NINNumber     string `json:"nin_number"`
	Address       string `json:"address"`

	Position   string `json:"position"`
	Department string `json:"department"`
	Specialty  string `json:"specialty"`

	Qualification    string `json:"qualification"`
	YearOfGraduation string `json:"year_of_graduation"`
	LicenseNumber    string `json:"license_number"`
	Institution      string `json:"institution"`

	CVURL    string `json:"cv_url"`
	PhotoURL string `json:"photo_url"`

	Status    *string   `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveStatus folds a NULL status into Pending
func (a *Application) EffectiveStatus() string {
	if a.Status == nil || *a.Status == "" {
		return StatusPending
	}
	return *a.Status
}

// StatusHistory records one admin transition
type StatusHistory struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	ChangedBy     string    `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
}

// TimelineStage is one step of the applicant-facing progress view
type TimelineStage struct {
	Label    string `json:"label"`
	State    string `json:"state"` // done, current, upcoming, rejected
	Complete bool   `json:"complete"`
}

// ApplicationStats feeds the admin charts
type ApplicationStats struct {
	Total          int               `json:"total"`
	ByStatus       map[string]int    `json:"by_status"`
	TopDepartments []DepartmentCount `json:"top_departments"`
}

type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// ── Uploads ────────────────────────────────────────────

// Upload kinds accepted by the relay
const (
	UploadKindDocument = "document"
	UploadKindPassport = "passport"
)

// Upload describes a file stored by the relay
type Upload struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Size         int64  `json:"size"`
	MIME         string `json:"mime"`
	Path         string `json:"path"`
	URL          string `json:"url"`
}

// ── Notification outbox ────────────────────────────────

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is a queued email or SMS
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	Channel       string     `json:"channel"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body"`
	AttachSlip    bool       `json:"attach_slip"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// ── Accounts ───────────────────────────────────────────

// User is an applicant account linked to a Firebase identity
type User struct {
	ID          uuid.UUID `json:"id"`
	FirebaseUID string    `json:"-"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ── Contact ────────────────────────────────────────────

const (
	ContactNew     = "New"
	ContactRead    = "Read"
	ContactReplied = "Replied"
)

func ValidContactStatus(s string) bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied:
		return true
	}
	return false
}

// ContactMessage is a message left through the public contact form
type ContactMessage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an address for comparisons
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
