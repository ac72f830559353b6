package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
)

// Phase is the consultation's position in the triage lifecycle.
type Phase string

const (
	PhaseSelectPatient Phase = "SELECT_PATIENT"
	PhaseCollectInputs Phase = "COLLECT_INPUTS"
	PhaseQuestionLoop  Phase = "AI_QUESTION_LOOP"
	PhaseConfirm       Phase = "CONFIRM"
	PhaseSubmitted     Phase = "SUBMITTED"
)

var (
	// ErrBusy means a consultation-mutating call is already in flight; the
	// caller must wait for it to settle instead of issuing a second one.
	ErrBusy = errors.New("a backend call is already in flight")
	// ErrNotCompleted rejects advancing out of the question loop before the
	// backend reports triage_completed.
	ErrNotCompleted = errors.New("triage is not completed yet")
	// ErrTriageCompleted rejects answers once the loop has finished.
	ErrTriageCompleted = errors.New("triage already completed")
	// ErrTerminal means the session was submitted and must be discarded.
	ErrTerminal = errors.New("session already submitted")
	// ErrNoPatient means neither an existing patient nor a new-patient form
	// was provided.
	ErrNoPatient = errors.New("no patient selected")
	// ErrWrongPhase rejects an operation outside its phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")
)

// ValidationError lists the new-patient form fields still missing. It is a
// local error: it never triggers a network call.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required patient fields: " + strings.Join(e.Missing, ", ")
}

// Backend is the slice of the API client the machine drives. Declared here,
// consumer-side, so tests can fake it.
type Backend interface {
	CreatePatient(ctx context.Context, req api.PatientCreate) (*api.Patient, error)
	CreateConsultation(ctx context.Context, patientID int, image, audio *api.Upload, symptomsText string) (*api.Consultation, error)
	SubmitTriageAnswer(ctx context.Context, id int, answer string) (*api.Consultation, error)
	GetConsultation(ctx context.Context, id int) (*api.Consultation, error)
}

// View is the renderable snapshot of a session. Everything a front end needs
// to draw the current phase comes out of here; the machine's internals stay
// private.
type View struct {
	Phase           Phase
	Busy            bool
	ConsultationID  int
	Status          api.Status
	TriageCompleted bool
	Turn            Turn
	PatientName     string
	PatientDNI      string
	HasImage        bool
	HasAudio        bool
	SymptomsText    string
	Err             error
}

// Machine drives one consultation through its phases. All mutating entry
// points are serialized by a single in-flight flag: a second mutation while
// one is pending is rejected with ErrBusy and issues no network call.
type Machine struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger

	phase    Phase
	inFlight bool
	lastErr  error

	newPatient bool
	form       api.PatientCreate
	patient    *api.Patient

	image        *api.Upload
	audio        *api.Upload
	symptomsText string

	consultation *api.Consultation
}

func NewMachine(backend Backend, logger *zap.Logger) *Machine {
	return &Machine{
		backend: backend,
		logger:  logger,
		phase:   PhaseSelectPatient,
	}
}

// SelectExistingPatient binds an already-registered patient to the session.
func (m *Machine) SelectExistingPatient(p api.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseSelectPatient {
		return ErrWrongPhase
	}
	m.newPatient = false
	m.patient = &p
	return nil
}

// SetNewPatientForm switches the session to new-patient registration. The
// patient is created on the next Advance.
func (m *Machine) SetNewPatientForm(form api.PatientCreate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseSelectPatient {
		return ErrWrongPhase
	}
	m.newPatient = true
	m.patient = nil
	m.form = form
	return nil
}

func (m *Machine) AttachImage(u *api.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCollectInputs {
		return ErrWrongPhase
	}
	m.image = u
	return nil
}

func (m *Machine) AttachAudio(u *api.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCollectInputs {
		return ErrWrongPhase
	}
	m.audio = u
	return nil
}

// SetSymptomsText records a typed symptom description. Audio and text are
// both accepted; the machine does not enforce exclusivity (the backend does
// not either), front ends are expected to hide the text input once a clip is
// attached.
func (m *Machine) SetSymptomsText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCollectInputs {
		return ErrWrongPhase
	}
	m.symptomsText = text
	return nil
}

func validateForm(form api.PatientCreate) *ValidationError {
	var missing []string
	if strings.TrimSpace(form.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(form.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if strings.TrimSpace(form.DNI) == "" {
		missing = append(missing, "dni")
	}
	if strings.TrimSpace(form.BirthDate) == "" {
		missing = append(missing, "birth_date")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Advance moves the session one phase forward, performing whatever backend
// call the transition requires. On any failure the phase is unchanged, the
// in-flight flag cleared and the error recorded; retrying is up to the user.
func (m *Machine) Advance(ctx context.Context) error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return ErrBusy
	}

	switch m.phase {
	case PhaseSelectPatient:
		return m.advanceSelectPatient(ctx)
	case PhaseCollectInputs:
		return m.advanceCollectInputs(ctx)
	case PhaseQuestionLoop:
		defer m.mu.Unlock()
		if m.consultation == nil || !m.consultation.TriageCompleted {
			return ErrNotCompleted
		}
		m.phase = PhaseConfirm
		m.lastErr = nil
		return nil
	case PhaseConfirm:
		defer m.mu.Unlock()
		// Navigation only; the backend already holds the finished triage.
		m.phase = PhaseSubmitted
		m.lastErr = nil
		id := 0
		if m.consultation != nil {
			id = m.consultation.ID
		}
		m.logger.Info("session submitted", zap.Int("consultation_id", id))
		return nil
	default:
		m.mu.Unlock()
		return ErrTerminal
	}
}

// advanceSelectPatient is called with m.mu held and releases it itself.
func (m *Machine) advanceSelectPatient(ctx context.Context) error {
	if !m.newPatient {
		defer m.mu.Unlock()
		if m.patient == nil {
			m.lastErr = ErrNoPatient
			return ErrNoPatient
		}
		m.phase = PhaseCollectInputs
		m.lastErr = nil
		return nil
	}

	if vErr := validateForm(m.form); vErr != nil {
		m.lastErr = vErr
		m.mu.Unlock()
		return vErr
	}

	form := m.form
	m.inFlight = true
	m.mu.Unlock()

	patient, err := m.backend.CreatePatient(ctx, form)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		m.lastErr = err
		return fmt.Errorf("register patient: %w", err)
	}
	m.patient = patient
	m.phase = PhaseCollectInputs
	m.lastErr = nil
	return nil
}

// advanceCollectInputs is called with m.mu held and releases it itself. This
// is the expensive transition: it issues the single consultation-creation
// call, or skips straight back into the loop when an id is already bound.
func (m *Machine) advanceCollectInputs(ctx context.Context) error {
	if m.consultation != nil {
		defer m.mu.Unlock()
		// The consultation persists server-side; never create it twice.
		m.phase = PhaseQuestionLoop
		m.lastErr = nil
		return nil
	}

	patientID := m.patient.ID
	image, audio, text := m.image, m.audio, m.symptomsText
	m.inFlight = true
	m.mu.Unlock()

	consultation, err := m.backend.CreateConsultation(ctx, patientID, image, audio, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		m.lastErr = err
		return fmt.Errorf("start triage: %w", err)
	}
	m.consultation = consultation
	m.phase = PhaseQuestionLoop
	m.lastErr = nil
	return nil
}

// SubmitAnswer sends one answer into the question loop. Strictly serialized:
// a second submission while one is pending gets ErrBusy.
func (m *Machine) SubmitAnswer(ctx context.Context, answer string) error {
	m.mu.Lock()
	if m.phase != PhaseQuestionLoop {
		m.mu.Unlock()
		return ErrWrongPhase
	}
	if m.inFlight {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.consultation == nil {
		m.mu.Unlock()
		return ErrWrongPhase
	}
	if m.consultation.TriageCompleted {
		m.mu.Unlock()
		return ErrTriageCompleted
	}

	id := m.consultation.ID
	m.inFlight = true
	m.mu.Unlock()

	updated, err := m.backend.SubmitTriageAnswer(ctx, id, answer)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		m.lastErr = err
		return fmt.Errorf("submit answer: %w", err)
	}
	m.fold(updated)
	m.lastErr = nil
	return nil
}

// Refresh refetches the bound consultation (polling path). A refresh racing
// a pending mutation is discarded: the mutation's response is newer by
// issuance order.
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.consultation == nil {
		m.mu.Unlock()
		return nil
	}
	id := m.consultation.ID
	m.mu.Unlock()

	fetched, err := m.backend.GetConsultation(ctx, id)
	if err != nil {
		return fmt.Errorf("refresh consultation %d: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return nil
	}
	m.fold(fetched)
	return nil
}

// fold replaces the session's consultation state, preserving the invariant
// that triage_completed never flips back to false.
func (m *Machine) fold(c *api.Consultation) {
	if m.consultation != nil && m.consultation.TriageCompleted {
		c.TriageCompleted = true
	}
	m.consultation = c
}

// Retreat steps back one phase. Rejected while a call is in flight and from
// the terminal phase. Stepping back out of the question loop keeps the bound
// consultation: re-advancing re-enters the loop without a second create.
func (m *Machine) Retreat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return ErrBusy
	}
	switch m.phase {
	case PhaseSelectPatient:
		return nil
	case PhaseCollectInputs:
		m.phase = PhaseSelectPatient
	case PhaseQuestionLoop:
		m.phase = PhaseCollectInputs
	case PhaseConfirm:
		m.phase = PhaseQuestionLoop
	default:
		return ErrTerminal
	}
	return nil
}

// CanAdvance reports whether Advance would pass its local gate right now.
// Mirror of the wizard's next-button enablement.
func (m *Machine) CanAdvance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return false
	}
	switch m.phase {
	case PhaseSelectPatient:
		if m.newPatient {
			return validateForm(m.form) == nil
		}
		return m.patient != nil
	case PhaseCollectInputs:
		return true
	case PhaseQuestionLoop:
		return m.consultation != nil && m.consultation.TriageCompleted
	case PhaseConfirm:
		return true
	}
	return false
}

// Snapshot returns the current renderable state.
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Phase:        m.phase,
		Busy:         m.inFlight,
		HasImage:     m.image != nil,
		HasAudio:     m.audio != nil,
		SymptomsText: m.symptomsText,
		Err:          m.lastErr,
	}

	switch {
	case m.patient != nil:
		v.PatientName = m.patient.FirstName + " " + m.patient.LastName
		v.PatientDNI = m.patient.DNI
	case m.newPatient:
		v.PatientName = strings.TrimSpace(m.form.FirstName + " " + m.form.LastName)
		v.PatientDNI = m.form.DNI
	}

	if m.consultation != nil {
		v.ConsultationID = m.consultation.ID
		v.Status = m.consultation.Status
		v.TriageCompleted = m.consultation.TriageCompleted
		v.Turn = ParseTurn(m.consultation.CombinedAIAnalysis)
	}
	return v
}
