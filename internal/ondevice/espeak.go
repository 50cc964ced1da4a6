package ondevice

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultESpeakBinary is looked up on PATH.
const DefaultESpeakBinary = "espeak-ng"

const (
	espeakWPM       = 175
	espeakPitch     = 50
	espeakAmplitude = 100
	listTimeout     = 5 * time.Second
)

// ESpeak is a Synthesizer that runs espeak-ng, which plays audio itself.
type ESpeak struct {
	binary string

	listOnce sync.Once
	voices   []HostVoice
	files    map[string]string

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

// NewESpeak creates an ESpeak host. An empty binary uses DefaultESpeakBinary.
func NewESpeak(binary string) *ESpeak {
	if binary == "" {
		binary = DefaultESpeakBinary
	}
	return &ESpeak{binary: binary}
}

// Available reports whether the binary can be found.
func (s *ESpeak) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// Speak starts a process for u, killing any previous one.
func (s *ESpeak) Speak(u *Utterance) error {
	s.Cancel()

	cmd := exec.Command(s.binary, s.args(u)...)
	// stdin is set before start so the text is never raced.
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", s.binary, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.paused = false
	s.mu.Unlock()

	u.Started()
	go s.wait(cmd, u, &stderr)
	return nil
}

func (s *ESpeak) wait(cmd *exec.Cmd, u *Utterance, stderr *bytes.Buffer) {
	err := cmd.Wait()

	s.mu.Lock()
	current := s.cmd == cmd
	if current {
		s.cmd = nil
		s.paused = false
	}
	s.mu.Unlock()

	if !current {
		return
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			u.Failed(fmt.Errorf("%s failed: %w, stderr: %s", s.binary, err, msg))
			return
		}
		u.Failed(fmt.Errorf("%s failed: %w", s.binary, err))
		return
	}
	u.Ended()
}

func (s *ESpeak) args(u *Utterance) []string {
	voice := u.Lang
	if f, ok := s.voiceFile(u.Voice); ok {
		voice = f
	}
	args := []string{
		"-s", strconv.Itoa(scale(espeakWPM, u.Rate, 80, 450)),
		"-p", strconv.Itoa(scale(espeakPitch, u.Pitch, 0, 99)),
		"-a", strconv.Itoa(scale(espeakAmplitude, u.Volume, 0, 200)),
	}
	if voice != "" {
		args = append([]string{"-v", voice}, args...)
	}
	return append(args, "--stdin")
}

func scale(base int, factor float64, lo, hi int) int {
	v := int(math.Round(float64(base) * factor))
	return min(max(v, lo), hi)
}

// Cancel kills the running process. Its exit is not reported.
func (s *ESpeak) Cancel() {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.paused = false
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Pause suspends the running process.
func (s *ESpeak) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.paused {
		return
	}
	if err := suspend(s.cmd.Process); err != nil {
		log.Debug("Cannot pause espeak", "error", err)
		return
	}
	s.paused = true
}

// Resume continues a suspended process.
func (s *ESpeak) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || !s.paused {
		return
	}
	if err := resume(s.cmd.Process); err != nil {
		log.Debug("Cannot resume espeak", "error", err)
		return
	}
	s.paused = false
}

// Speaking reports whether a process is producing audio.
func (s *ESpeak) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && !s.paused
}

// Voices lists the installed espeak-ng voices. The list is read once.
func (s *ESpeak) Voices() []HostVoice {
	s.listOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
		defer cancel()
		out, err := exec.CommandContext(ctx, s.binary, "--voices").Output()
		if err != nil {
			log.Warn("Cannot list espeak voices", "binary", s.binary, "error", err)
			return
		}
		s.voices, s.files = parseVoices(out)
	})
	return s.voices
}

// VoicesChanged returns nil; the list is read synchronously.
func (s *ESpeak) VoicesChanged() <-chan struct{} { return nil }

func (s *ESpeak) voiceFile(name string) (string, bool) {
	s.Voices()
	f, ok := s.files[name]
	return f, ok
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 5)
func parseVoices(out []byte) ([]HostVoice, map[string]string) {
	var voices []HostVoice
	files := make(map[string]string)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 5 || f[0] == "Pty" {
			continue
		}
		name := strings.ReplaceAll(f[3], "_", " ")
		if _, dup := files[name]; dup {
			continue
		}
		voices = append(voices, HostVoice{Name: name, Lang: f[1], Gender: gender(f[2])})
		files[name] = f[4]
	}
	return voices, files
}

func gender(ageGender string) string {
	_, g, _ := strings.Cut(ageGender, "/")
	switch g {
	case "M":
		return "male"
	case "F":
		return "female"
	}
	return ""
}

var _ Synthesizer = (*ESpeak)(nil)
