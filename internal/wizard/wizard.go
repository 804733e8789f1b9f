// Package wizard holds the five-step application form and its gates.
//
// The same state machine runs for the step-by-step validation endpoint and
// for the final submission, which replays every gate from step one so a
// client cannot skip a step.
package wizard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
)

type Step int

const (
	StepPersonal Step = iota + 1
	StepPosition
	StepQualifications
	StepUploads
	StepReview
	StepSubmitted
)

var stepNames = map[Step]string{
	StepPersonal:       "Personal",
	StepPosition:       "Position",
	StepQualifications: "Qualifications",
	StepUploads:        "Uploads",
	StepReview:         "Review",
	StepSubmitted:      "Submitted",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func (s Step) Valid() bool {
	return s >= StepPersonal && s <= StepReview
}

var ninPattern = regexp.MustCompile(`^\d{11}$`)

// StepError is returned when a gate blocks advancement
type StepError struct {
	Step    Step
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Step, e.Message)
}

// Form is the record every step writes into
type Form struct {
	// Personal
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DateOfBirth      string `json:"date_of_birth"`
	StateOfOrigin    string `json:"state_of_origin"`
	LGA              string `json:"lga"`
	NINNumber        string `json:"nin_number"`
	Address          string `json:"address"`
	PassportSelected bool   `json:"passport_selected"`

	// Position, with the job snapshot taken at selection time
	Position          string     `json:"position"`
	JobID             *uuid.UUID `json:"job_id,omitempty"`
	Department        string     `json:"department"`
	Specialty         string     `json:"specialty"`
	Requirements      []string   `json:"requirements,omitempty"`
	RequiredDocuments []string   `json:"required_documents,omitempty"`
	LicenseLabel      string     `json:"license_label,omitempty"`

	// Qualifications
	Qualification    string `json:"qualification"`
	YearOfGraduation string `json:"year_of_graduation"`
	LicenseNumber    string `json:"license_number"`
	Institution      string `json:"institution"`

	// Uploads. Selecting a file and finishing its upload are separate facts.
	DocumentSelected bool   `json:"document_selected"`
	NDPRConsent      bool   `json:"ndpr_consent"`
	DocumentURL      string `json:"document_url"`
	PassportURL      string `json:"passport_url"`
}

// Catalog resolves a position title to an active job
type Catalog map[string]model.Job

// NewCatalog indexes the active jobs by title
func NewCatalog(jobs []model.Job) Catalog {
	c := make(Catalog, len(jobs))
	for _, j := range jobs {
		if j.IsActive {
			c[strings.ToLower(strings.TrimSpace(j.Title))] = j
		}
	}
	return c
}

func (c Catalog) Lookup(title string) (model.Job, bool) {
	j, ok := c[strings.ToLower(strings.TrimSpace(title))]
	return j, ok
}

// Wizard walks a Form through the steps
type Wizard struct {
	step    Step
	form    *Form
	catalog Catalog
}

func New(form *Form, catalog Catalog) *Wizard {
	if form == nil {
		form = &Form{}
	}
	return &Wizard{step: StepPersonal, form: form, catalog: catalog}
}

func (w *Wizard) Step() Step  { return w.step }
func (w *Wizard) Form() *Form { return w.form }

// Next validates the current step and advances. On failure the step is unchanged.
func (w *Wizard) Next() error {
	if w.step >= StepReview {
		return nil
	}
	if err := w.validate(w.step); err != nil {
		return err
	}
	w.step++
	return nil
}

// Prev goes back one step. Entered fields are kept.
func (w *Wizard) Prev() {
	if w.step > StepPersonal && w.step < StepSubmitted {
		w.step--
	}
}

// SelectJob sets the position and snapshots the job's department and document lists
func (w *Wizard) SelectJob(title string) error {
	job, ok := w.catalog.Lookup(title)
	if !ok {
		return &StepError{Step: StepPosition, Message: "Please select a position"}
	}
	id := job.ID
	w.form.Position = job.Title
	w.form.JobID = &id
	w.form.Department = job.Department
	w.form.Requirements = append([]string(nil), job.Requirements...)
	w.form.RequiredDocuments = append([]string(nil), job.RequiredDocuments...)
	w.form.LicenseLabel = job.LicenseLabel
	return nil
}

// RecordUpload stores the URL of a finished upload
func (w *Wizard) RecordUpload(kind, url string) {
	switch kind {
	case model.UploadKindPassport:
		w.form.PassportSelected = true
		w.form.PassportURL = url
	case model.UploadKindDocument:
		w.form.DocumentSelected = true
		w.form.DocumentURL = url
	}
}

// ReadyToSubmit is true at Review with both uploads stored
func (w *Wizard) ReadyToSubmit() bool {
	return w.step == StepReview && w.form.DocumentURL != "" && w.form.PassportURL != ""
}

// MarkSubmitted moves a ready wizard into its terminal state
func (w *Wizard) MarkSubmitted() error {
	if !w.ReadyToSubmit() {
		return &StepError{Step: w.step, Message: "Application is not ready to submit"}
	}
	w.step = StepSubmitted
	return nil
}

// Validate runs a single gate without moving
func (w *Wizard) Validate(step Step) error {
	return w.validate(step)
}

func (w *Wizard) validate(step Step) error {
	f := w.form
	switch step {
	case StepPersonal:
		if blank(f.FullName, f.Email, f.Phone, f.DateOfBirth, f.StateOfOrigin, f.LGA, f.NINNumber, f.Address) {
			return &StepError{Step: step, Message: "Please fill in all personal details"}
		}
		if !ninPattern.MatchString(strings.TrimSpace(f.NINNumber)) {
			return &StepError{Step: step, Message: "NIN must be exactly 11 digits"}
		}
		if !f.PassportSelected {
			return &StepError{Step: step, Message: "Please select a passport photograph"}
		}
	case StepPosition:
		if _, ok := w.catalog.Lookup(f.Position); !ok || blank(f.Position) {
			return &StepError{Step: step, Message: "Please select a position"}
		}
	case StepQualifications:
		if blank(f.Qualification, f.YearOfGraduation, f.Institution) {
			return &StepError{Step: step, Message: "Please fill in your qualification details"}
		}
	case StepUploads:
		if !f.DocumentSelected || !f.PassportSelected || !f.NDPRConsent {
			return &StepError{Step: step, Message: "Please upload your CV, Passport Photo and accept NDPR consent"}
		}
		if f.DocumentURL == "" || f.PassportURL == "" {
			return &StepError{Step: step, Message: "Please wait for your document and passport photo to finish uploading"}
		}
	}
	return nil
}

// Replay walks a submitted form from step one to Review against the
// server's catalog. The job snapshot is re-taken from the catalog so the
// stored department and document lists never come from the client.
func Replay(form *Form, catalog Catalog) (*Wizard, error) {
	w := New(form, catalog)
	if !blank(form.Position) {
		_ = w.SelectJob(form.Position)
	}
	for w.step < StepReview {
		if err := w.Next(); err != nil {
			return w, err
		}
	}
	return w, nil
}

// Field is one row of the review summary
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary lists every entered field in display order
func (w *Wizard) Summary() []Field {
	f := w.form
	license := "License Number"
	if f.LicenseLabel != "" {
		license = f.LicenseLabel
	}
	return []Field{
		{"Full Name", f.FullName},
		{"Email", f.Email},
		{"Phone", f.Phone},
		{"Date of Birth", f.DateOfBirth},
		{"State of Origin", f.StateOfOrigin},
		{"LGA", f.LGA},
		{"NIN", f.NINNumber},
		{"Address", f.Address},
		{"Position", f.Position},
		{"Department", f.Department},
		{"Specialty", f.Specialty},
		{"Qualification", f.Qualification},
		{"Year of Graduation", f.YearOfGraduation},
		{license, f.LicenseNumber},
		{"Institution", f.Institution},
		{"Documents", uploadState(f.DocumentURL)},
		{"Passport Photo", uploadState(f.PassportURL)},
	}
}

// Application converts a replayed form into a row ready for insert
func (w *Wizard) Application() *model.Application {
	f := w.form
	return &model.Application{
		JobID:            f.JobID,
		FullName:         strings.TrimSpace(f.FullName),
		Email:            strings.TrimSpace(f.Email),
		Phone:            strings.TrimSpace(f.Phone),
		DateOfBirth:      strings.TrimSpace(f.DateOfBirth),
		StateOfOrigin:    strings.TrimSpace(f.StateOfOrigin),
		LGA:              strings.TrimSpace(f.LGA),
		NINNumber:        strings.TrimSpace(f.NINNumber),
		Address:          strings.TrimSpace(f.Address),
		Position:         f.Position,
		Department:       f.Department,
		Specialty:        strings.TrimSpace(f.Specialty),
		Qualification:    strings.TrimSpace(f.Qualification),
		YearOfGraduation: strings.TrimSpace(f.YearOfGraduation),
		LicenseNumber:    strings.TrimSpace(f.LicenseNumber),
		Institution:      strings.TrimSpace(f.Institution),
		CVURL:            f.DocumentURL,
		PhotoURL:         f.PassportURL,
	}
}

func uploadState(url string) string {
	if url == "" {
		return "Not uploaded"
	}
	return "Uploaded"
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
