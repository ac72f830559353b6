// Package devstub is an in-memory stand-in for the external triage backend.
// It implements the REST contract the client core consumes so the kiosk can
// run standalone; the AI side is a fixed question script.
package devstub

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTriageCompleted = errors.New("Triage already completed.")
	ErrEmptyAnswer     = errors.New("Answer is required.")
)

// Scripted question turns. The seed turn comes back with the create
// response; each answer advances to the next, the last answer yields the
// final report.
var questionScript = []string{
	"[ASK] Where is the main discomfort located? A) Head B) Chest C) Abdomen D) Other",
	"[ASK] How long have the symptoms been present? A) Less than a day B) One to three days C) More than three days",
	"[ASK] How intense is the discomfort right now? A) Mild B) Moderate C) Severe",
}

const finalReport = "[DIAGNOSIS] Findings are consistent with a mild, self-limited condition. " +
	"No red flags were reported. Clinical correlation and medical review are recommended."

type consultationRecord struct {
	api.Consultation
	answers []string
}

// Store holds all stub state behind one mutex. IDs are small auto-increment
// integers like the real backend's.
type Store struct {
	mu sync.Mutex

	patients      map[int]api.Patient
	consultations map[int]*consultationRecord
	media         map[string][]byte

	nextPatientID      int
	nextConsultationID int
}

func NewStore() *Store {
	return &Store{
		patients:      make(map[int]api.Patient),
		consultations: make(map[int]*consultationRecord),
		media:         make(map[string][]byte),
	}
}

// FieldErrors carries per-field validation messages for the error contract.
type FieldErrors map[string][]string

func (f FieldErrors) Error() string {
	return "validation failed"
}

func (s *Store) CreatePatient(req api.PatientCreate) (*api.Patient, error) {
	fields := FieldErrors{}
	if strings.TrimSpace(req.FirstName) == "" {
		fields["first_name"] = []string{"This field is required."}
	}
	if strings.TrimSpace(req.LastName) == "" {
		fields["last_name"] = []string{"This field is required."}
	}
	if strings.TrimSpace(req.DNI) == "" {
		fields["dni"] = []string{"This field is required."}
	}
	if strings.TrimSpace(req.BirthDate) == "" {
		fields["birth_date"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		return nil, fields
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPatientID++
	patient := api.Patient{
		ID:        s.nextPatientID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		DNI:       req.DNI,
		BirthDate: req.BirthDate,
		Age:       ageFromBirthDate(req.BirthDate),
	}
	s.patients[patient.ID] = patient
	return &patient, nil
}

func ageFromBirthDate(birthDate string) int {
	born, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return 0
	}
	years := time.Now().Year() - born.Year()
	if years < 0 {
		return 0
	}
	return years
}

func (s *Store) ListPatients() []api.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients := make([]api.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		patients = append(patients, p)
	}
	return patients
}

// CreateConsultation opens a consultation and seeds it with the first
// scripted question, mirroring the real backend's synchronous first
// evaluation.
func (s *Store) CreateConsultation(patientID int, image, audio *api.Upload, symptomsText string) (*api.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patient, ok := s.patients[patientID]
	if !ok {
		return nil, ErrNotFound
	}

	s.nextConsultationID++
	record := &consultationRecord{
		Consultation: api.Consultation{
			ID:      s.nextConsultationID,
			Patient: patientID,
			PatientDetails: &api.PatientDetails{
				FirstName: patient.FirstName,
				LastName:  patient.LastName,
				DNI:       patient.DNI,
			},
			Status:             api.StatusQuestionLoop,
			CombinedAIAnalysis: questionScript[0],
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		},
	}
	if image != nil {
		record.ImageURL = s.storeMediaLocked(image)
	}
	if audio != nil {
		record.AudioURL = s.storeMediaLocked(audio)
	}
	_ = symptomsText // accepted, not analyzed by the stub

	s.consultations[record.ID] = record
	snapshot := record.Consultation
	return &snapshot, nil
}

// storeMediaLocked keeps the uploaded blob under a uuid key and returns its
// serving path. Must hold s.mu.
func (s *Store) storeMediaLocked(u *api.Upload) string {
	key := uuid.NewString()
	s.media[key] = u.Data
	return fmt.Sprintf("/media/%s/%s", key, u.Filename)
}

func (s *Store) GetConsultation(id int) (*api.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := record.Consultation
	return &snapshot, nil
}

func (s *Store) ListConsultations(status string, patientID int) []api.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]api.Consultation, 0, len(s.consultations))
	for _, record := range s.consultations {
		if status != "" && string(record.Status) != status {
			continue
		}
		if patientID != 0 && record.Patient != patientID {
			continue
		}
		list = append(list, record.Consultation)
	}
	return list
}

// SubmitAnswer advances the scripted loop: next question, or the final
// report once the script is exhausted.
func (s *Store) SubmitAnswer(id int, answer string) (*api.Consultation, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if record.TriageCompleted {
		return nil, ErrTriageCompleted
	}

	record.answers = append(record.answers, answer)
	if len(record.answers) < len(questionScript) {
		record.CombinedAIAnalysis = questionScript[len(record.answers)]
	} else {
		record.CombinedAIAnalysis = finalReport
		record.TriageCompleted = true
		record.Status = api.StatusReadyToReview
	}
	record.UpdatedAt = time.Now()

	snapshot := record.Consultation
	return &snapshot, nil
}

func (s *Store) Finalize(id int, note string) (*api.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	record.Status = api.StatusFinalized
	record.UpdatedAt = time.Now()
	_ = note

	snapshot := record.Consultation
	return &snapshot, nil
}

func (s *Store) PatientHistory(patientID int) []api.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]api.HistoryEntry, 0)
	for _, record := range s.consultations {
		if record.Patient != patientID || !record.TriageCompleted {
			continue
		}
		summary := record.CombinedAIAnalysis
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
		entries = append(entries, api.HistoryEntry{
			ID:          record.ID,
			Title:       fmt.Sprintf("Triage completed - Consultation #%d", record.ID),
			Description: summary,
			CreatedAt:   record.CreatedAt,
		})
	}
	return entries
}

func (s *Store) Stats() api.DashboardStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats api.DashboardStats
	today := time.Now().Format("2006-01-02")
	for _, record := range s.consultations {
		switch {
		case record.Status == api.StatusFailed:
			stats.Errors++
		case record.Status.Active():
			stats.Waiting++
		case record.Status == api.StatusQuestionLoop:
			stats.Processing++
		case record.TriageCompleted && record.UpdatedAt.Format("2006-01-02") == today:
			stats.CompletedToday++
		}
	}
	return stats
}
