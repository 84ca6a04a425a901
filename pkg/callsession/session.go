// Package callsession models the visitor-facing call flow as an explicit
// state machine: ready -> microphone permission -> audio device config ->
// live session. Transitions are linear; there is no skipping and no going
// back. The package is UI-agnostic so the flow is testable without a
// rendering environment.
package callsession

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Stage identifies a step of the call flow.
type Stage int

const (
	StageReady Stage = iota
	StageMicPermission
	StageAudioConfig
	StageLiveSession
)

func (s Stage) String() string {
	switch s {
	case StageReady:
		return "ready"
	case StageMicPermission:
		return "microphone_permission"
	case StageAudioConfig:
		return "audio_device_config"
	case StageLiveSession:
		return "live_session"
	default:
		return "unknown"
	}
}

// DeviceKind distinguishes capture and playback devices.
type DeviceKind string

const (
	DeviceKindInput  DeviceKind = "audioinput"
	DeviceKindOutput DeviceKind = "audiooutput"
)

// AudioDevice describes an available input or output device.
type AudioDevice struct {
	DeviceID string
	Label    string
	Kind     DeviceKind
}

// AudioRuntime abstracts the platform's audio capabilities.
type AudioRuntime interface {
	// RequestMicrophone performs a permission probe. The returned stream
	// must be closed immediately; holding it open can block the real
	// acquisition in the live session on some runtimes.
	RequestMicrophone(ctx context.Context) (io.Closer, error)

	// EnumerateDevices lists the available input and output devices.
	EnumerateDevices(ctx context.Context) ([]AudioDevice, error)
}

// ConnectionState tracks the live conversation's connection.
type ConnectionState int

const (
	ConnectionIdle ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionIdle:
		return "idle"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DialOptions carries the confirmed device selection into the live session.
type DialOptions struct {
	InputDeviceID  string
	OutputDeviceID string
}

// Dialer opens a live conversation against the voice provider.
type Dialer interface {
	Dial(ctx context.Context, agentID string, opts DialOptions) (Conversation, error)
}

// Conversation is an open live session. Muting never changes the connection
// status; Close must be safe to call on every exit path.
type Conversation interface {
	Status() ConnectionState
	SetMuted(muted bool)
	Muted() bool
	Close() error
}

// Session drives the call flow for one visitor. All transitions happen in
// response to discrete events and are serialized by the internal mutex.
type Session struct {
	mutex   sync.Mutex
	agentID string
	runtime AudioRuntime
	dialer  Dialer

	stage          Stage
	permissionErr  error
	enumerationErr error
	devices        []AudioDevice
	selectedInput  string
	selectedOutput string
	conversation   Conversation
	closed         bool
}

// NewSession creates a session for the given agent, starting at the ready stage.
func NewSession(agentID string, runtime AudioRuntime, dialer Dialer) *Session {
	return &Session{
		agentID: agentID,
		runtime: runtime,
		dialer:  dialer,
		stage:   StageReady,
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stage
}

// PermissionErr returns the microphone permission failure, if any.
func (s *Session) PermissionErr() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.permissionErr
}

// EnumerationErr returns the device enumeration failure, if any. A session can
// hold permission yet fail enumeration; the two surfaces are kept apart so the
// caller can prompt for the right recovery.
func (s *Session) EnumerationErr() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.enumerationErr
}

// Start leaves the ready stage on the user's explicit action: it probes
// microphone permission, releases the probe stream immediately, and on
// success enumerates devices and advances to audio device config with the
// first device of each kind preselected. On permission failure the session
// stays in the microphone permission stage and the error is returned for the
// caller to surface; the flow never auto-advances past a denied probe.
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("session already ended")
	}
	if s.stage != StageReady {
		return fmt.Errorf("cannot start from stage %s", s.stage)
	}

	s.stage = StageMicPermission

	probe, err := s.runtime.RequestMicrophone(ctx)
	if probe != nil {
		// Permission probe only; release before anything else acquires audio.
		if closeErr := probe.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if err != nil {
		s.permissionErr = err
		return fmt.Errorf("microphone permission denied: %w", err)
	}

	devices, err := s.runtime.EnumerateDevices(ctx)
	if err != nil {
		s.enumerationErr = err
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	s.devices = devices
	s.selectedInput = firstOfKind(devices, DeviceKindInput)
	s.selectedOutput = firstOfKind(devices, DeviceKindOutput)
	s.stage = StageAudioConfig
	return nil
}

// Devices returns the enumerated devices of the given kind.
func (s *Session) Devices(kind DeviceKind) []AudioDevice {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []AudioDevice
	for _, d := range s.devices {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// SelectInput picks the capture device. Only valid during audio device config.
func (s *Session) SelectInput(deviceID string) error {
	return s.selectDevice(deviceID, DeviceKindInput)
}

// SelectOutput picks the playback device. Only valid during audio device config.
func (s *Session) SelectOutput(deviceID string) error {
	return s.selectDevice(deviceID, DeviceKindOutput)
}

func (s *Session) selectDevice(deviceID string, kind DeviceKind) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stage != StageAudioConfig {
		return fmt.Errorf("cannot select a device in stage %s", s.stage)
	}

	for _, d := range s.devices {
		if d.Kind == kind && d.DeviceID == deviceID {
			if kind == DeviceKindInput {
				s.selectedInput = deviceID
			} else {
				s.selectedOutput = deviceID
			}
			return nil
		}
	}
	return fmt.Errorf("unknown %s device: %s", kind, deviceID)
}

// SelectedInput returns the chosen capture device id.
func (s *Session) SelectedInput() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.selectedInput
}

// SelectedOutput returns the chosen playback device id.
func (s *Session) SelectedOutput() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.selectedOutput
}

// Confirm locks in the device selection and opens the live session carrying
// the two chosen device identifiers. A dial failure leaves the session in the
// audio device config stage for retry.
func (s *Session) Confirm(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("session already ended")
	}
	if s.stage != StageAudioConfig {
		return fmt.Errorf("cannot confirm devices in stage %s", s.stage)
	}
	if s.selectedInput == "" || s.selectedOutput == "" {
		return fmt.Errorf("both input and output devices must be selected")
	}

	conversation, err := s.dialer.Dial(ctx, s.agentID, DialOptions{
		InputDeviceID:  s.selectedInput,
		OutputDeviceID: s.selectedOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to open live session: %w", err)
	}

	s.conversation = conversation
	s.stage = StageLiveSession
	return nil
}

// ConnectionStatus returns the live session's connection state, or idle when
// no session is open.
func (s *Session) ConnectionStatus() ConnectionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conversation == nil {
		return ConnectionIdle
	}
	return s.conversation.Status()
}

// SetMuted toggles the microphone without affecting the connection.
func (s *Session) SetMuted(muted bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stage != StageLiveSession || s.conversation == nil {
		return fmt.Errorf("no live session to mute")
	}
	s.conversation.SetMuted(muted)
	return nil
}

// Muted reports the microphone mute state.
func (s *Session) Muted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conversation == nil {
		return false
	}
	return s.conversation.Muted()
}

// End tears the session down. It is valid in every stage and idempotent, so
// callers can defer it to guarantee teardown on cancellation and early exits
// as well as on the explicit end-call action.
func (s *Session) End() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.conversation != nil {
		err := s.conversation.Close()
		s.conversation = nil
		return err
	}
	return nil
}

// Ended reports whether the session was torn down.
func (s *Session) Ended() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func firstOfKind(devices []AudioDevice, kind DeviceKind) string {
	for _, d := range devices {
		if d.Kind == kind {
			return d.DeviceID
		}
	}
	return ""
}
