// kiosk is the terminal front end of the triage flow: role selection, the
// four-step consultation wizard and the doctor review queue, all driven
// against the backend REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
	"github.com/lemillion789/MedAI-Smart-Triage/internal/audio"
	"github.com/lemillion789/MedAI-Smart-Triage/internal/history"
	"github.com/lemillion789/MedAI-Smart-Triage/internal/session"
	"github.com/lemillion789/MedAI-Smart-Triage/internal/triage"
)

type appConfig struct {
	baseURL        string
	requestTimeout time.Duration
	idleTimeout    time.Duration
	pollInterval   time.Duration
	altScreen      bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	optionStyle  = lipgloss.NewStyle().PaddingLeft(2)
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

type screen int

const (
	screenRoleSelect screen = iota
	screenWizard
	screenQueue
	screenFarewell
)

var formLabels = []string{"First name", "Last name", "ID (DNI)", "Birth date (YYYY-MM-DD)"}

type (
	patientsMsg     struct{ patients []api.Patient; err error }
	queueMsg        struct{ list []api.Consultation; err error }
	advanceMsg      struct{ err error }
	answerMsg       struct{ err error }
	refreshMsg      struct{ err error }
	idleTickMsg     time.Time
	farewellTickMsg time.Time
	recorderTickMsg time.Time
	pollTickMsg     struct{}
)

type model struct {
	cfg    appConfig
	logger *zap.Logger

	client   *api.Client
	guard    *session.Guard
	machine  *triage.Machine
	recorder *audio.Recorder
	store    *history.Store

	screen  screen
	spinner spinner.Model
	input   textinput.Model
	width   int

	roleCursor int

	patients       []api.Patient
	patientsLoaded bool
	patientCursor  int
	useNewPatient  bool
	formIndex      int
	formValues     []string

	typingSymptoms bool
	typingAnswer   bool

	queue []api.Consultation

	warnBanner   bool
	farewellLeft int
	statusLine   string
}

func newModel(cfg appConfig, logger *zap.Logger) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.CharLimit = 200

	client := api.NewClient(cfg.baseURL, cfg.requestTimeout, logger)
	guard := session.NewGuard(cfg.idleTimeout, nil, logger)

	return model{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		guard:      guard,
		machine:    triage.NewMachine(client, logger),
		recorder:   audio.NewRecorder(&audio.SyntheticDevice{}, nil, logger),
		store:      history.NewStore(client, logger),
		spinner:    sp,
		input:      ti,
		formValues: make([]string, len(formLabels)),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, idleTick())
}

func idleTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return idleTickMsg(t) })
}

func farewellTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return farewellTickMsg(t) })
}

func recorderTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return recorderTickMsg(t) })
}

func (m model) pollTick() tea.Cmd {
	return tea.Tick(m.cfg.pollInterval, func(time.Time) tea.Msg { return pollTickMsg{} })
}

func (m model) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.requestTimeout)
}

func (m model) loadPatientsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		patients, err := m.client.ListPatients(ctx)
		return patientsMsg{patients: patients, err: err}
	}
}

func (m model) loadQueueCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		list, err := m.store.List(ctx)
		return queueMsg{list: list, err: err}
	}
}

func (m model) advanceCmd() tea.Cmd {
	machine := m.machine
	timeout := m.cfg.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return advanceMsg{err: machine.Advance(ctx)}
	}
}

func (m model) answerCmd(answer string) tea.Cmd {
	machine := m.machine
	store := m.store
	timeout := m.cfg.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := machine.SubmitAnswer(ctx, answer)
		if err == nil {
			if id := machine.Snapshot().ConsultationID; id != 0 {
				store.Invalidate(id)
				store.InvalidateLists()
			}
		}
		return answerMsg{err: err}
	}
}

func (m model) refreshCmd() tea.Cmd {
	machine := m.machine
	timeout := m.cfg.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return refreshMsg{err: machine.Refresh(ctx)}
	}
}

func (m *model) resetToRoleSelect() {
	m.guard.ClearRole()
	m.machine = triage.NewMachine(m.client, m.logger)
	m.recorder.Reset()
	m.screen = screenRoleSelect
	m.warnBanner = false
	m.typingSymptoms = false
	m.typingAnswer = false
	m.formIndex = 0
	m.formValues = make([]string, len(formLabels))
	m.useNewPatient = false
	m.statusLine = ""
	m.input.Reset()
	m.input.Blur()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case idleTickMsg:
		if m.screen != screenRoleSelect {
			state := m.guard.State()
			if state.Expired {
				m.resetToRoleSelect()
				return m, idleTick()
			}
			m.warnBanner = state.Warning
		}
		return m, idleTick()

	case farewellTickMsg:
		if m.screen != screenFarewell {
			return m, nil
		}
		m.farewellLeft--
		if m.farewellLeft <= 0 {
			m.resetToRoleSelect()
			return m, nil
		}
		return m, farewellTick()

	case recorderTickMsg:
		if m.recorder.Status() == audio.StatusRecording {
			return m, recorderTick()
		}
		return m, nil

	case patientsMsg:
		m.patientsLoaded = true
		if msg.err != nil {
			m.statusLine = msg.err.Error()
			return m, nil
		}
		m.patients = msg.patients
		return m, nil

	case queueMsg:
		if msg.err != nil {
			m.statusLine = msg.err.Error()
			return m, nil
		}
		m.queue = msg.list
		return m, nil

	case advanceMsg:
		if msg.err != nil {
			m.statusLine = msg.err.Error()
			return m, nil
		}
		m.statusLine = ""
		view := m.machine.Snapshot()
		if view.Phase == triage.PhaseQuestionLoop && view.Status.Active() {
			return m, m.pollTick()
		}
		if view.Phase == triage.PhaseSubmitted {
			m.screen = screenFarewell
			m.farewellLeft = int(session.FarewellTimeout / time.Second)
			return m, farewellTick()
		}
		return m, nil

	case answerMsg:
		if msg.err != nil {
			m.statusLine = msg.err.Error()
		} else {
			m.statusLine = ""
			m.input.Reset()
			m.typingAnswer = false
		}
		return m, nil

	case pollTickMsg:
		return m, m.refreshCmd()

	case refreshMsg:
		view := m.machine.Snapshot()
		if view.Phase == triage.PhaseQuestionLoop && view.Status.Active() {
			return m, m.pollTick()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Every keypress is a qualifying input event; dismissing the warning
	// resets the countdown in full.
	if m.warnBanner {
		m.guard.DismissWarning()
		m.warnBanner = false
		return m, nil
	}
	m.guard.Touch()

	switch m.screen {
	case screenRoleSelect:
		return m.handleRoleSelectKey(msg)
	case screenWizard:
		return m.handleWizardKey(msg)
	case screenQueue:
		return m.handleQueueKey(msg)
	case screenFarewell:
		if msg.String() == "enter" {
			m.resetToRoleSelect()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleRoleSelectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "down", "j":
		m.roleCursor = 1 - m.roleCursor
	case "enter":
		if m.roleCursor == 0 {
			m.guard.SetRole(session.RolePatient)
			m.screen = screenWizard
			return m, m.loadPatientsCmd()
		}
		m.guard.SetRole(session.RoleDoctor)
		m.screen = screenQueue
		return m, m.loadQueueCmd()
	}
	return m, nil
}

func (m model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.store.InvalidateLists()
		return m, m.loadQueueCmd()
	case "esc", "q":
		m.resetToRoleSelect()
	}
	return m, nil
}

func (m model) handleWizardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.machine.Snapshot()

	if m.input.Focused() {
		return m.handleTextEntry(msg, view)
	}

	switch view.Phase {
	case triage.PhaseSelectPatient:
		return m.handleSelectPatientKey(msg)
	case triage.PhaseCollectInputs:
		return m.handleCollectInputsKey(msg)
	case triage.PhaseQuestionLoop:
		return m.handleQuestionLoopKey(msg, view)
	case triage.PhaseConfirm:
		if msg.String() == "enter" {
			return m, m.advanceCmd()
		}
		if msg.String() == "b" {
			m.machineRetreat()
		}
	}
	return m, nil
}

func (m *model) machineRetreat() {
	if err := m.machine.Retreat(); err != nil {
		m.statusLine = err.Error()
	} else {
		m.statusLine = ""
	}
}

func (m model) handleTextEntry(msg tea.KeyMsg, view triage.View) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Reset()
		m.input.Blur()
		m.typingSymptoms = false
		m.typingAnswer = false
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch {
		case m.typingAnswer:
			if value == "" {
				return m, nil
			}
			m.input.Blur()
			return m, m.answerCmd(value)
		case m.typingSymptoms:
			if err := m.machine.SetSymptomsText(value); err != nil {
				m.statusLine = err.Error()
			}
			m.input.Reset()
			m.input.Blur()
			m.typingSymptoms = false
			return m, nil
		default: // new-patient form
			m.formValues[m.formIndex] = value
			m.input.Reset()
			if m.formIndex < len(formLabels)-1 {
				m.formIndex++
				return m, nil
			}
			m.input.Blur()
			if err := m.machine.SetNewPatientForm(api.PatientCreate{
				FirstName: m.formValues[0],
				LastName:  m.formValues[1],
				DNI:       m.formValues[2],
				BirthDate: m.formValues[3],
			}); err != nil {
				m.statusLine = err.Error()
				return m, nil
			}
			return m, m.advanceCmd()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleSelectPatientKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.useNewPatient = !m.useNewPatient
		if m.useNewPatient {
			m.formIndex = 0
			m.input.Placeholder = formLabels[0]
			m.input.Focus()
		}
	case "up", "k":
		if !m.useNewPatient && m.patientCursor > 0 {
			m.patientCursor--
		}
	case "down", "j":
		if !m.useNewPatient && m.patientCursor < len(m.patients)-1 {
			m.patientCursor++
		}
	case "enter":
		if m.useNewPatient {
			return m, nil
		}
		if len(m.patients) == 0 {
			m.statusLine = "No patients registered yet; press tab to create one"
			return m, nil
		}
		if err := m.machine.SelectExistingPatient(m.patients[m.patientCursor]); err != nil {
			m.statusLine = err.Error()
			return m, nil
		}
		return m, m.advanceCmd()
	}
	return m, nil
}

func (m model) handleCollectInputsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		switch m.recorder.Status() {
		case audio.StatusRecording, audio.StatusPaused:
			if err := m.recorder.Stop(); err != nil {
				m.statusLine = err.Error()
			}
		default:
			if err := m.recorder.Start(context.Background()); err != nil {
				m.statusLine = err.Error()
				return m, nil
			}
			return m, recorderTick()
		}
	case "p":
		switch m.recorder.Status() {
		case audio.StatusRecording:
			_ = m.recorder.Pause()
		case audio.StatusPaused:
			_ = m.recorder.Resume()
			return m, recorderTick()
		}
	case "x":
		m.recorder.Reset()
	case "a":
		clip := m.recorder.Clip()
		if clip == nil {
			m.statusLine = "Nothing recorded yet; press r to record"
			return m, nil
		}
		if err := m.machine.AttachAudio(&api.Upload{
			Filename: clip.Filename,
			MIMEType: clip.MIMEType,
			Data:     clip.Data,
		}); err != nil {
			m.statusLine = err.Error()
			return m, nil
		}
		m.statusLine = "Audio attached: " + clip.Filename
	case "t":
		if m.machine.Snapshot().HasAudio {
			m.statusLine = "Audio already attached; text description is hidden"
			return m, nil
		}
		m.typingSymptoms = true
		m.input.Placeholder = "Describe the symptoms..."
		m.input.Focus()
	case "b":
		m.machineRetreat()
	case "enter":
		return m, m.advanceCmd()
	}
	return m, nil
}

func (m model) handleQuestionLoopKey(msg tea.KeyMsg, view triage.View) (tea.Model, tea.Cmd) {
	if view.Busy {
		return m, nil
	}

	if view.TriageCompleted {
		switch msg.String() {
		case "enter":
			return m, m.advanceCmd()
		case "b":
			m.machineRetreat()
		}
		return m, nil
	}

	if view.Turn.HasOptions() {
		key := strings.ToUpper(msg.String())
		for _, opt := range view.Turn.Options {
			if key == opt.Key {
				return m, m.answerCmd(opt.Key)
			}
		}
		if msg.String() == "b" {
			m.machineRetreat()
		}
		return m, nil
	}

	if view.Turn.Kind == triage.TurnQuestion {
		m.typingAnswer = true
		m.input.Placeholder = "Type your answer..."
		m.input.Focus()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if msg.String() == "b" {
		m.machineRetreat()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	if m.warnBanner {
		remaining := m.guard.State().Remaining.Round(time.Second)
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"Still there? The session resets in %s. Press any key to continue.", remaining)))
		b.WriteString("\n\n")
	}

	switch m.screen {
	case screenRoleSelect:
		b.WriteString(m.viewRoleSelect())
	case screenWizard:
		b.WriteString(m.viewWizard())
	case screenQueue:
		b.WriteString(m.viewQueue())
	case screenFarewell:
		b.WriteString(m.viewFarewell())
	}

	if m.statusLine != "" {
		b.WriteString("\n" + errorStyle.Render(m.statusLine))
	}
	return b.String() + "\n"
}

func (m model) viewRoleSelect() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MedAI Smart Triage") + "\n\n")
	b.WriteString("Who is using this terminal?\n\n")
	roles := []string{"Patient (kiosk)", "Doctor (review queue)"}
	for i, label := range roles {
		if i == m.roleCursor {
			b.WriteString(cursorStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(optionStyle.Render(label) + "\n")
		}
	}
	b.WriteString("\n" + subtleStyle.Render("enter: select - ctrl+c: quit"))
	return b.String()
}

var wizardSteps = []string{"Patient", "Inputs", "Questions", "Confirm"}

func stepIndex(p triage.Phase) int {
	switch p {
	case triage.PhaseSelectPatient:
		return 0
	case triage.PhaseCollectInputs:
		return 1
	case triage.PhaseQuestionLoop:
		return 2
	default:
		return 3
	}
}

func (m model) viewWizard() string {
	view := m.machine.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("New Consultation") + "\n")
	current := stepIndex(view.Phase)
	marks := make([]string, len(wizardSteps))
	for i, s := range wizardSteps {
		switch {
		case i < current:
			marks[i] = successStyle.Render("[x] " + s)
		case i == current:
			marks[i] = cursorStyle.Render("[*] " + s)
		default:
			marks[i] = subtleStyle.Render("[ ] " + s)
		}
	}
	b.WriteString(strings.Join(marks, "  ") + "\n\n")

	if view.Busy {
		b.WriteString(m.spinner.View() + " Processing...\n\n")
	}

	switch view.Phase {
	case triage.PhaseSelectPatient:
		b.WriteString(m.viewSelectPatient())
	case triage.PhaseCollectInputs:
		b.WriteString(m.viewCollectInputs(view))
	case triage.PhaseQuestionLoop:
		b.WriteString(m.viewQuestionLoop(view))
	case triage.PhaseConfirm:
		b.WriteString(m.viewConfirm(view))
	}
	return b.String()
}

func (m model) viewSelectPatient() string {
	var b strings.Builder
	if m.useNewPatient {
		b.WriteString("New patient\n\n")
		for i, label := range formLabels {
			switch {
			case i < m.formIndex:
				b.WriteString(fmt.Sprintf("  %s: %s\n", label, m.formValues[i]))
			case i == m.formIndex:
				b.WriteString(fmt.Sprintf("> %s: %s\n", label, m.input.View()))
			default:
				b.WriteString(subtleStyle.Render(fmt.Sprintf("  %s:", label)) + "\n")
			}
		}
		b.WriteString("\n" + subtleStyle.Render("enter: next field - tab: existing patient - esc: cancel"))
		return b.String()
	}

	b.WriteString("Existing patient\n\n")
	if !m.patientsLoaded {
		b.WriteString(m.spinner.View() + " Loading patients...\n")
	} else if len(m.patients) == 0 {
		b.WriteString(subtleStyle.Render("No patients found") + "\n")
	} else {
		for i, p := range m.patients {
			line := fmt.Sprintf("%s %s - ID: %s", p.FirstName, p.LastName, p.DNI)
			if i == m.patientCursor {
				b.WriteString(cursorStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString(optionStyle.Render(line) + "\n")
			}
		}
	}
	b.WriteString("\n" + subtleStyle.Render("enter: continue - tab: new patient"))
	return b.String()
}

func (m model) viewCollectInputs(view triage.View) string {
	var b strings.Builder
	b.WriteString("System inputs (all optional)\n\n")

	status := m.recorder.Status()
	switch status {
	case audio.StatusRecording:
		b.WriteString(fmt.Sprintf("  Recording  %s\n", audio.FormatDuration(m.recorder.Duration())))
	case audio.StatusPaused:
		b.WriteString(fmt.Sprintf("  Paused     %s\n", audio.FormatDuration(m.recorder.Duration())))
	case audio.StatusStopped:
		clip := m.recorder.Clip()
		b.WriteString(fmt.Sprintf("  Recorded   %s (%s)\n", audio.FormatDuration(clip.Duration), clip.Filename))
	case audio.StatusError:
		_, remediation, _ := m.recorder.Failure()
		b.WriteString(errorStyle.Render("  "+remediation) + "\n")
	default:
		b.WriteString(subtleStyle.Render("  No audio recorded") + "\n")
	}

	if view.HasAudio {
		b.WriteString(successStyle.Render("  Audio attached") + "\n")
	}
	if view.SymptomsText != "" {
		b.WriteString("  Symptoms: " + view.SymptomsText + "\n")
	}
	if m.typingSymptoms {
		b.WriteString("\n  " + m.input.View() + "\n")
	}

	b.WriteString("\n" + subtleStyle.Render(
		"r: record/stop - p: pause/resume - x: discard - a: attach - t: type symptoms\n"+
			"enter: analyze with AI - b: back"))
	return b.String()
}

func (m model) viewQuestionLoop(view triage.View) string {
	var b strings.Builder

	switch view.Turn.Kind {
	case triage.TurnQuestion:
		b.WriteString(warnStyle.Render("AI QUESTION") + "\n\n")
		b.WriteString(view.Turn.Prompt + "\n\n")
		for _, opt := range view.Turn.Options {
			b.WriteString(optionStyle.Render(opt.Label) + "\n")
		}
		if view.Turn.HasOptions() {
			b.WriteString("\n" + subtleStyle.Render("press the option letter to answer"))
		} else {
			b.WriteString("  " + m.input.View() + "\n")
			b.WriteString(subtleStyle.Render("enter: send answer"))
		}
	case triage.TurnFinalReport:
		b.WriteString(successStyle.Render("FINAL REPORT") + "\n\n")
		b.WriteString(view.Turn.Prompt + "\n")
	default:
		if view.Turn.Prompt != "" {
			b.WriteString(view.Turn.Prompt + "\n")
		} else {
			b.WriteString(m.spinner.View() + " The AI is analyzing the inputs...\n")
		}
	}

	if view.TriageCompleted {
		b.WriteString("\n" + successStyle.Render("Triage completed successfully") + "\n")
		b.WriteString(subtleStyle.Render("enter: view summary - b: back"))
	}
	return b.String()
}

func (m model) viewConfirm(view triage.View) string {
	var b strings.Builder
	b.WriteString("Confirm consultation\n\n")
	b.WriteString(fmt.Sprintf("  Patient:       %s - ID: %s\n", view.PatientName, view.PatientDNI))
	b.WriteString(fmt.Sprintf("  Audio:         %s\n", attachedLabel(view.HasAudio)))
	b.WriteString(fmt.Sprintf("  Image:         %s\n", attachedLabel(view.HasImage)))
	triageLabel := "Pending"
	if view.TriageCompleted {
		triageLabel = "Completed"
	}
	b.WriteString(fmt.Sprintf("  Triage status: %s\n", triageLabel))
	b.WriteString(fmt.Sprintf("  Consultation:  #%d\n", view.ConsultationID))
	b.WriteString("\n" + subtleStyle.Render("enter: finish consultation - b: back"))
	return b.String()
}

func attachedLabel(ok bool) string {
	if ok {
		return "attached"
	}
	return "not attached"
}

func (m model) viewQueue() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Triage review queue") + "\n\n")
	if len(m.queue) == 0 {
		b.WriteString(subtleStyle.Render("No consultations yet") + "\n")
	}
	for _, c := range m.queue {
		name := "(unknown)"
		if c.PatientDetails != nil {
			name = c.PatientDetails.FirstName + " " + c.PatientDetails.LastName
		}
		b.WriteString(fmt.Sprintf("  #%-4d %-24s %s\n", c.ID, name, c.Status))
	}
	b.WriteString("\n" + subtleStyle.Render("r: refresh - esc: log out"))
	return b.String()
}

func (m model) viewFarewell() string {
	view := m.machine.Snapshot()
	var b strings.Builder
	b.WriteString(successStyle.Render("Consultation registered!") + "\n\n")
	b.WriteString(fmt.Sprintf("Consultation number: #%d\n\n", view.ConsultationID))
	b.WriteString("Wait to be called by the medical staff.\n")
	b.WriteString("If your symptoms worsen, inform the staff immediately.\n\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf(
		"This screen resets in %ds - enter: reset now", m.farewellLeft)))
	return b.String()
}

func main() {
	var cfg appConfig
	flag.StringVar(&cfg.baseURL, "api", envOr("MEDAI_API_URL", "http://localhost:8000"), "backend base URL")
	flag.DurationVar(&cfg.requestTimeout, "timeout", 30*time.Second, "backend request timeout")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", session.DefaultIdleTimeout, "kiosk inactivity timeout")
	flag.DurationVar(&cfg.pollInterval, "poll-interval", history.DefaultPollInterval, "consultation poll interval")
	flag.BoolVar(&cfg.altScreen, "alt-screen", true, "render in the terminal alt screen")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := []tea.ProgramOption{}
	if cfg.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(newModel(cfg, logger), opts...).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "kiosk:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
