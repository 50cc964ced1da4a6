package tts

import (
	"encoding/json"
	"errors"
)

// Common errors for the engine layer.
var (
	// ErrNeverStarted is reported when an engine produced no event before its timeout.
	ErrNeverStarted = errors.New("Timeout, TTS never started, try picking another voice?")

	// ErrNotAllowed is returned by media elements when the host refuses
	// playback without a user gesture.
	ErrNotAllowed = errors.New("play() is not allowed without a user gesture")

	// ErrEngineUnavailable indicates there is no host capability behind an engine.
	ErrEngineUnavailable = errors.New("TTS engine is not available")

	// ErrVoiceNotFound indicates no engine serves the requested voice.
	ErrVoiceNotFound = errors.New("requested voice not found")
)

// ErrorKind classifies failures callers need to branch on.
type ErrorKind int

const (
	// KindOther is a failure with a free-text message only.
	KindOther ErrorKind = iota
	// KindLoginRequired means a gated voice was requested without a valid login.
	KindLoginRequired
	// KindPaymentRequired means the account balance is exhausted.
	KindPaymentRequired
	// KindUserGestureRequired means the host refused autoplay.
	KindUserGestureRequired
	// KindWavenetAuthRequired means cloud vendor credentials are missing or rejected.
	KindWavenetAuthRequired
	// KindNetwork is a failed fetch.
	KindNetwork
	// KindHost is a media element or host synthesizer failure.
	KindHost
	// KindTimeout is a synthesized failure from the timeout decorator.
	KindTimeout
	// KindInvalidInput is a rejected utterance or option set.
	KindInvalidInput
)

var errorCodes = map[ErrorKind]string{
	KindLoginRequired:       "error_login_required",
	KindPaymentRequired:     "error_payment_required",
	KindUserGestureRequired: "error_user_gesture_required",
	KindWavenetAuthRequired: "error_wavenet_auth_required",
}

// Code returns the wire code for kinds callers branch on, or "".
func (k ErrorKind) Code() string {
	return errorCodes[k]
}

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLoginRequired:
		return "login_required"
	case KindPaymentRequired:
		return "payment_required"
	case KindUserGestureRequired:
		return "user_gesture_required"
	case KindWavenetAuthRequired:
		return "wavenet_auth_required"
	case KindNetwork:
		return "network"
	case KindHost:
		return "host"
	case KindTimeout:
		return "timeout"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "other"
	}
}

// Error is the structured error carried by EventError events.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError creates an Error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if e.Cause != nil && e.Code() == "" {
			return e.Cause.Error()
		}
		msg = e.Code()
		if msg == "" {
			msg = e.Kind.String()
		}
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Code returns the wire code, or "" for uncoded kinds.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// MarshalJSON encodes coded errors as {"code": "..."}.
func (e *Error) MarshalJSON() ([]byte, error) {
	if code := e.Code(); code != "" {
		return json.Marshal(struct {
			Code string `json:"code"`
		}{code})
	}
	return json.Marshal(struct {
		Message string `json:"message"`
	}{e.Error()})
}

// Sentinels for errors.Is checks by kind.
var (
	ErrLoginRequired       = &Error{Kind: KindLoginRequired}
	ErrPaymentRequired     = &Error{Kind: KindPaymentRequired}
	ErrUserGestureRequired = &Error{Kind: KindUserGestureRequired}
	ErrWavenetAuthRequired = &Error{Kind: KindWavenetAuthRequired}
)

// KindOf returns the kind of err, or KindOther.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// ErrorMessage renders err the way callers receive it: a JSON {"code"}
// document for coded kinds, the plain message otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code() != "" {
		b, _ := json.Marshal(e)
		return string(b)
	}
	return err.Error()
}

// PlaybackError maps a media element failure to the caller-visible error:
// host autoplay refusal becomes KindUserGestureRequired and anything else
// passes through with its message intact.
func PlaybackError(err error) error {
	if errors.Is(err, ErrNotAllowed) {
		return NewError(KindUserGestureRequired, "", err)
	}
	return err
}
