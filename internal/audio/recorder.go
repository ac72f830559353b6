// Package audio turns a microphone grant into a finished symptom clip, with
// pause/resume, cancel and a negotiated container format.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusRequesting Status = "requesting"
	StatusRecording  Status = "recording"
	StatusPaused     Status = "paused"
	StatusStopped    Status = "stopped"
	StatusError      Status = "error"
)

// Device failure taxonomy, distinguished for user messaging.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrDeviceNotFound   = errors.New("no microphone found")
)

// ErrCaptureActive rejects opening a second device handle while one is live.
var ErrCaptureActive = errors.New("a capture session is already active")

type FailureKind string

const (
	FailurePermission FailureKind = "permission-denied"
	FailureNotFound   FailureKind = "device-not-found"
	FailureDevice     FailureKind = "device-error"
)

func classifyFailure(err error) (FailureKind, string) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return FailurePermission, "Microphone permission denied. Enable it in the system settings."
	case errors.Is(err, ErrDeviceNotFound):
		return FailureNotFound, "No microphone was found on this device."
	default:
		return FailureDevice, fmt.Sprintf("Device error: %v", err)
	}
}

// Constraints are the capture hints passed to the device on open.
type Constraints struct {
	MIMEType         string
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// Device is the microphone abstraction. Open blocks until the user grants or
// denies access; denial surfaces as ErrPermissionDenied / ErrDeviceNotFound.
type Device interface {
	Supports(mimeType string) bool
	Open(ctx context.Context, c Constraints) (Session, error)
}

// Session is one live capture. Close releases the underlying device handle
// and must be safe to call more than once.
type Session interface {
	Start(chunkInterval time.Duration, emit func(chunk []byte)) error
	Pause() error
	Resume() error
	Stop() error
	Close() error
}

// Clip is the finished audio artifact handed off to the consultation.
type Clip struct {
	Filename string
	MIMEType string
	Data     []byte
	Duration time.Duration
}

const (
	chunkInterval = 250 * time.Millisecond
	sampleRate    = 16000
)

// Container preference order; the first one the device supports wins. An
// empty result means best-effort default playback.
var preferredMIMETypes = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
}

func negotiateMIMEType(d Device) string {
	for _, mt := range preferredMIMETypes {
		if d.Supports(mt) {
			return mt
		}
	}
	return ""
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "mp4"):
		return "mp4"
	default:
		return "webm"
	}
}

// Recorder is the capture state machine:
// idle -> requesting -> recording <-> paused -> stopped, any -> error,
// stopped/error -> idle via Reset. At most one live device handle exists;
// every exit path releases it synchronously.
type Recorder struct {
	mu     sync.Mutex
	device Device
	clock  func() time.Time
	logger *zap.Logger

	status   Status
	session  Session
	mimeType string

	// Duration accumulates wall-clock time spent recording only; paused
	// intervals are excluded by re-basing resumedAt on resume.
	accumulated time.Duration
	resumedAt   time.Time

	chunksMu sync.Mutex
	chunks   []byte

	clip        *Clip
	failureKind FailureKind
	failureMsg  string
}

// NewRecorder builds a recorder over the given device. A nil clock means
// time.Now; tests inject a fake.
func NewRecorder(device Device, clock func() time.Time, logger *zap.Logger) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		device: device,
		clock:  clock,
		logger: logger,
		status: StatusIdle,
	}
}

// Start requests microphone access and begins chunked capture. Valid from
// idle, stopped or error (the latter two are cleaned up first); starting
// while a session is live is a misuse and returns ErrCaptureActive.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.status {
	case StatusRequesting, StatusRecording, StatusPaused:
		r.mu.Unlock()
		return ErrCaptureActive
	}
	r.releaseLocked()
	r.clearLocked()
	r.status = StatusRequesting
	mimeType := negotiateMIMEType(r.device)
	r.mimeType = mimeType
	r.mu.Unlock()

	session, err := r.device.Open(ctx, Constraints{
		MIMEType:         mimeType,
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       sampleRate,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status = StatusError
		r.failureKind, r.failureMsg = classifyFailure(err)
		r.logger.Warn("microphone open failed",
			zap.String("kind", string(r.failureKind)),
			zap.Error(err),
		)
		return err
	}

	r.session = session
	if err := session.Start(chunkInterval, r.appendChunk); err != nil {
		r.releaseLocked()
		r.status = StatusError
		r.failureKind, r.failureMsg = classifyFailure(err)
		return err
	}

	r.status = StatusRecording
	r.accumulated = 0
	r.resumedAt = r.clock()
	return nil
}

func (r *Recorder) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.chunksMu.Lock()
	r.chunks = append(r.chunks, chunk...)
	r.chunksMu.Unlock()
}

// Pause suspends capture. No-op outside recording.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording {
		return nil
	}
	if err := r.session.Pause(); err != nil {
		return err
	}
	r.accumulated += r.clock().Sub(r.resumedAt)
	r.status = StatusPaused
	return nil
}

// Resume continues capture, preserving duration continuity: the wall-clock
// reference restarts offset by what was already accumulated. No-op outside
// paused.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPaused {
		return nil
	}
	if err := r.session.Resume(); err != nil {
		return err
	}
	r.resumedAt = r.clock()
	r.status = StatusRecording
	return nil
}

// Stop finalizes the buffered chunks into a clip and releases the device
// immediately. Valid from recording or paused; no-op otherwise.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording && r.status != StatusPaused {
		return nil
	}

	if r.status == StatusRecording {
		r.accumulated += r.clock().Sub(r.resumedAt)
	}

	stopErr := r.session.Stop()
	r.releaseLocked()
	if stopErr != nil {
		r.status = StatusError
		r.failureKind, r.failureMsg = classifyFailure(stopErr)
		return stopErr
	}

	r.chunksMu.Lock()
	data := make([]byte, len(r.chunks))
	copy(data, r.chunks)
	r.chunksMu.Unlock()

	ext := extensionFor(r.mimeType)
	r.clip = &Clip{
		Filename: fmt.Sprintf("symptoms_%d.%s", r.clock().UnixMilli(), ext),
		MIMEType: r.mimeType,
		Data:     data,
		Duration: r.accumulated,
	}
	r.status = StatusStopped
	r.logger.Info("recording stopped",
		zap.String("filename", r.clip.Filename),
		zap.Duration("duration", r.clip.Duration),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Reset cancels any in-progress capture, releases the device, discards the
// buffer and any produced clip and returns to idle. Callable from every
// state; idempotent.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()
	r.clearLocked()
	r.status = StatusIdle
}

// releaseLocked closes the live session, if any. Must hold r.mu.
func (r *Recorder) releaseLocked() {
	if r.session != nil {
		_ = r.session.Close()
		r.session = nil
	}
}

// clearLocked discards buffered data, artifacts and failure state. Must hold r.mu.
func (r *Recorder) clearLocked() {
	r.chunksMu.Lock()
	r.chunks = nil
	r.chunksMu.Unlock()
	r.clip = nil
	r.accumulated = 0
	r.failureKind = ""
	r.failureMsg = ""
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Duration reports elapsed capture time, excluding paused intervals. Safe to
// poll at any rate for a live counter.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRecording {
		return r.accumulated + r.clock().Sub(r.resumedAt)
	}
	return r.accumulated
}

// Clip returns the finished artifact, or nil before a successful Stop.
func (r *Recorder) Clip() *Clip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clip
}

// Failure returns the device failure kind and remediation text when the
// recorder is in the error state.
func (r *Recorder) Failure() (FailureKind, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusError {
		return "", "", false
	}
	return r.failureKind, r.failureMsg, true
}

// FormatDuration renders a duration as MM:SS for the capture counter.
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
