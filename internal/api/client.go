package api

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client talks to the external triage backend. It is the only component that
// knows the REST contract; everything above it works with the typed model.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

func (c *Client) ListPatients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&patients).
		Get("/api/patients/")
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	return patients, nil
}

func (c *Client) CreatePatient(ctx context.Context, req PatientCreate) (*Patient, error) {
	var patient Patient
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&patient).
		Post("/api/patients/")
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	c.logger.Info("patient created", zap.Int("patient_id", patient.ID))
	return &patient, nil
}

// CreateConsultation opens a new consultation for a patient. When an image or
// audio clip is attached the request goes out as one multipart submission;
// with no files it degrades to a plain JSON create.
func (c *Client) CreateConsultation(ctx context.Context, patientID int, image, audio *Upload, symptomsText string) (*Consultation, error) {
	var consultation Consultation

	req := c.http.R().
		SetContext(ctx).
		SetResult(&consultation)

	if image != nil || audio != nil {
		req.SetFormData(map[string]string{"patient_id": strconv.Itoa(patientID)})
		if symptomsText != "" {
			req.SetFormData(map[string]string{"symptoms_text": symptomsText})
		}
		if image != nil {
			req.SetFileReader("image", image.Filename, bytes.NewReader(image.Data))
		}
		if audio != nil {
			req.SetFileReader("audio", audio.Filename, bytes.NewReader(audio.Data))
		}
	} else {
		body := map[string]any{"patient": patientID}
		if symptomsText != "" {
			body["symptoms_text"] = symptomsText
		}
		req.SetBody(body)
	}

	resp, err := req.Post("/api/consultations/")
	if err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}

	consultation.Status = CanonicalStatus(string(consultation.Status))
	c.logger.Info("consultation created",
		zap.Int("consultation_id", consultation.ID),
		zap.Int("patient_id", patientID),
		zap.Bool("has_image", image != nil),
		zap.Bool("has_audio", audio != nil),
	)
	return &consultation, nil
}

func (c *Client) GetConsultation(ctx context.Context, id int) (*Consultation, error) {
	var consultation Consultation
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&consultation).
		Get(fmt.Sprintf("/api/consultations/%d/", id))
	if err != nil {
		return nil, fmt.Errorf("get consultation %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	consultation.Status = CanonicalStatus(string(consultation.Status))
	return &consultation, nil
}

func (c *Client) ListConsultations(ctx context.Context, params ListParams) ([]Consultation, error) {
	req := c.http.R().SetContext(ctx)
	if params.Status != "" {
		req.SetQueryParam("status", params.Status)
	}
	if params.Patient != 0 {
		req.SetQueryParam("patient", strconv.Itoa(params.Patient))
	}

	var consultations []Consultation
	resp, err := req.SetResult(&consultations).Get("/api/consultations/")
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	for i := range consultations {
		consultations[i].Status = CanonicalStatus(string(consultations[i].Status))
	}
	return consultations, nil
}

// SubmitTriageAnswer sends one user answer into the interactive triage loop
// and returns the consultation with the next AI turn folded in.
func (c *Client) SubmitTriageAnswer(ctx context.Context, id int, answer string) (*Consultation, error) {
	var consultation Consultation
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(AnswerRequest{Answer: answer}).
		SetResult(&consultation).
		Post(fmt.Sprintf("/api/studies/%d/triage/", id))
	if err != nil {
		return nil, fmt.Errorf("submit triage answer for %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	consultation.Status = CanonicalStatus(string(consultation.Status))
	c.logger.Info("triage answer submitted",
		zap.Int("consultation_id", id),
		zap.Bool("triage_completed", consultation.TriageCompleted),
	)
	return &consultation, nil
}

func (c *Client) FinalizeConsultation(ctx context.Context, id int, note string) (*Consultation, error) {
	var consultation Consultation
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(FinalizeRequest{Note: note}).
		SetResult(&consultation).
		Post(fmt.Sprintf("/api/consultations/%d/finalize/", id))
	if err != nil {
		return nil, fmt.Errorf("finalize consultation %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	consultation.Status = CanonicalStatus(string(consultation.Status))
	return &consultation, nil
}

func (c *Client) PatientHistory(ctx context.Context, patientID int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(fmt.Sprintf("/api/patients/%d/history/", patientID))
	if err != nil {
		return nil, fmt.Errorf("patient history for %d: %w", patientID, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	return entries, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&stats).
		Get("/api/dashboard/stats/")
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	return &stats, nil
}
