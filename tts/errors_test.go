package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "login", err: NewError(KindLoginRequired, "", nil), want: `{"code":"error_login_required"}`},
		{name: "payment with message", err: NewError(KindPaymentRequired, "balance is 0", nil), want: `{"code":"error_payment_required"}`},
		{name: "wrapped gesture", err: fmt.Errorf("play: %w", NewError(KindUserGestureRequired, "", nil)), want: `{"code":"error_user_gesture_required"}`},
		{name: "wavenet", err: ErrWavenetAuthRequired, want: `{"code":"error_wavenet_auth_required"}`},
		{name: "free text", err: errors.New("HTTP 500"), want: "HTTP 500"},
		{name: "uncoded kind keeps cause text", err: NewError(KindTimeout, "", ErrNeverStarted), want: ErrNeverStarted.Error()},
		{name: "uncoded kind with message", err: NewError(KindNetwork, "fetch voices", errors.New("refused")), want: "fetch voices: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestErrorIsByKind(t *testing.T) {
	err := fmt.Errorf("speak: %w", NewError(KindPaymentRequired, "", errors.New("balance 0")))

	assert.ErrorIs(t, err, ErrPaymentRequired)
	assert.NotErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, KindPaymentRequired, KindOf(err))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))

	cause := errors.New("root")
	assert.ErrorIs(t, NewError(KindHost, "", cause), cause)
}

func TestErrorMarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewError(KindLoginRequired, "no token", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"error_login_required"}`, string(b))

	b, err = json.Marshal(NewError(KindHost, "decoder failed", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"decoder failed"}`, string(b))
}

func TestPlaybackError(t *testing.T) {
	err := PlaybackError(fmt.Errorf("element: %w", ErrNotAllowed))
	assert.ErrorIs(t, err, ErrUserGestureRequired)
	assert.Equal(t, `{"code":"error_user_gesture_required"}`, ErrorMessage(err))

	other := errors.New("media decode error")
	assert.Same(t, other, PlaybackError(other))
}
