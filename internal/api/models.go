package api

import "time"

// Status is the canonical consultation phase vocabulary. Legacy study
// statuses (PENDING/PROCESSING/COMPLETED/FAILED) are mapped on ingest by
// CanonicalStatus so nothing downstream ever sees them.
type Status string

const (
	StatusDraft          Status = "DRAFT"
	StatusWaitingInputs  Status = "WAITING_INPUTS"
	StatusRunningASR     Status = "RUNNING_ASR"
	StatusRunningGemma   Status = "RUNNING_MEDGEMMA"
	StatusQuestionLoop   Status = "QUESTION_LOOP"
	StatusReadyToReview  Status = "READY_TO_REVIEW"
	StatusInDoctorReview Status = "IN_DOCTOR_REVIEW"
	StatusFinalized      Status = "FINALIZED"
	StatusFailed         Status = "FAILED"
)

// CanonicalStatus folds the legacy study vocabulary into the canonical set.
// Unknown values pass through unchanged.
func CanonicalStatus(raw string) Status {
	switch raw {
	case "PENDING":
		return StatusWaitingInputs
	case "PROCESSING":
		return StatusRunningGemma
	case "COMPLETED":
		return StatusReadyToReview
	default:
		return Status(raw)
	}
}

// Active reports whether the backend is still processing this consultation
// and polling it is worthwhile.
func (s Status) Active() bool {
	switch s {
	case StatusWaitingInputs, StatusRunningASR, StatusRunningGemma:
		return true
	}
	return false
}

type Patient struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
	Age       int    `json:"age,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

type PatientCreate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
	BirthDate string `json:"birth_date"`
}

type PatientDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
}

// Consultation is the backend's view of one triage encounter.
type Consultation struct {
	ID             int             `json:"id"`
	Patient        int             `json:"patient"`
	PatientDetails *PatientDetails `json:"patient_details,omitempty"`
	Status         Status          `json:"status"`

	ImageURL string `json:"image_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`

	// CombinedAIAnalysis is the append-only AI turn text; the latest turn is
	// re-parsed on every render.
	CombinedAIAnalysis string `json:"combined_ai_analysis,omitempty"`
	TriageCompleted    bool   `json:"triage_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Upload is a named binary artifact attached to a consultation create call.
type Upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type FinalizeRequest struct {
	Note string `json:"note"`
}

type HistoryEntry struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type DashboardStats struct {
	Waiting        int `json:"waiting"`
	Processing     int `json:"processing"`
	CompletedToday int `json:"completed_today"`
	Errors         int `json:"errors"`
}

// ListParams narrows consultation list queries (doctor review queue).
type ListParams struct {
	Status  string
	Patient int
}
