package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/readaloud/ttsengine/internal/reader"
	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/sentence"
	"github.com/readaloud/ttsengine/ui"
)

var (
	speakVoice     string
	speakLang      string
	speakRate      float64
	speakPitch     float64
	speakVolume    float64
	speakClipboard bool
	speakMarkdown  bool
	speakSkipCode  bool
	speakTUI       bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [FILE|-|TEXT...]",
	Short: "Read text aloud",
	Long: paragraph(fmt.Sprintf("\n%s a file, standard input, the clipboard or the given words. "+
		"Markdown is read without its markup.", keyword("Read"))),
	Example: paragraph("readaloud speak README.md\necho hello | readaloud speak\nreadaloud speak --voice \"GoogleTranslate English\" Good morning"),
	RunE:    runSpeak,
}

func init() {
	f := speakCmd.Flags()
	f.StringVarP(&speakVoice, "voice", "v", "", "voice name (see: readaloud voices)")
	f.StringVarP(&speakLang, "lang", "l", "", "pick the best voice for this language")
	f.Float64VarP(&speakRate, "rate", "r", 1, "speaking rate")
	f.Float64Var(&speakPitch, "pitch", 1, "voice pitch")
	f.Float64Var(&speakVolume, "volume", 1, "volume between 0 and 1")
	f.BoolVarP(&speakClipboard, "clipboard", "c", false, "read the clipboard")
	f.BoolVarP(&speakMarkdown, "markdown", "m", false, "treat input as markdown")
	f.BoolVar(&speakSkipCode, "skip-code", false, "skip fenced code blocks in markdown")
	f.BoolVarP(&speakTUI, "tui", "t", false, "show an interactive reading view")

	_ = viper.BindPFlag("voice", f.Lookup("voice"))
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput returns the text to speak and whether it is markdown.
func readInput(args []string) (string, bool, error) {
	if speakClipboard {
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", false, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, speakMarkdown, nil
	}

	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		if yes, err := stdinIsPipe(); err != nil {
			return "", false, err
		} else if !yes && len(args) == 0 {
			return "", false, errors.New("nothing to read: pass a file, text or pipe to stdin")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), speakMarkdown, nil
	}

	if len(args) == 1 {
		if st, err := os.Stat(args[0]); err == nil && !st.IsDir() {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return "", false, fmt.Errorf("unable to open file: %w", err)
			}
			return string(b), speakMarkdown || isMarkdownFile(args[0]), nil
		}
	}
	return strings.Join(args, " "), speakMarkdown, nil
}

func isMarkdownFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".mdown", ".mkdn", ".mkd", ".markdown":
		return true
	}
	return false
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, markdown, err := readInput(args)
	if err != nil {
		return err
	}

	p := sentence.NewParser()
	p.SkipCodeBlocks = speakSkipCode
	var utterances []string
	if markdown {
		utterances = p.Markdown(text)
	} else {
		utterances = p.Text(text)
	}
	if len(utterances) == 0 {
		return errors.New("nothing to read")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	voice, autoSelect, err := pickVoice(ctx, a)
	if err != nil {
		return err
	}
	engine, err := a.selector.EngineFor(voice)
	if err != nil {
		return err
	}
	log.Info("Reading", "voice", voice.Name, "sentences", len(utterances))

	watchConfig()

	opts := tts.SpeakOptions{
		Voice:      voice,
		AutoSelect: autoSelect,
		Lang:       speakLang,
		Rate:       speakRate,
		Pitch:      speakPitch,
		Volume:     speakVolume,
	}
	if speakTUI {
		return readInteractive(ctx, engine, utterances, opts)
	}

	r := reader.New(engine,
		reader.WithGap(viper.GetDuration("gap")),
		reader.WithProgress(func(i int, ev tts.Event) {
			if ev.Type == tts.EventStart {
				fmt.Fprintln(cmd.ErrOrStderr(), faint(fmt.Sprintf("[%d/%d]", i+1, len(utterances))), utterances[i])
			}
		}))

	return readResult(r.Read(ctx, utterances, opts))
}

// readInteractive reads utterances behind the bubbletea reading view.
func readInteractive(ctx context.Context, engine tts.Engine, utterances []string, opts tts.SpeakOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.New(utterances, engine, cancel), tea.WithContext(ctx))
	r := reader.New(engine,
		reader.WithGap(viper.GetDuration("gap")),
		reader.WithProgress(func(i int, ev tts.Event) {
			p.Send(ui.EventMsg{Index: i, Event: ev})
		}))

	done := make(chan error, 1)
	go func() {
		err := r.Read(ctx, utterances, opts)
		p.Send(ui.DoneMsg{Err: err})
		done <- err
	}()

	_, runErr := p.Run()
	cancel()
	err := <-done
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("reading view: %w", runErr)
	}
	return readResult(err)
}

func readResult(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return errors.New(speakFailure(err))
}

// pickVoice uses the voice setting when present and otherwise the best
// voice for --lang. A language match is an automatic selection.
func pickVoice(ctx context.Context, a *app) (tts.Voice, bool, error) {
	if name := viper.GetString("voice"); name != "" {
		v, err := a.selector.Find(ctx, name)
		return v, false, err
	}
	lang := speakLang
	if lang == "" {
		lang = "en"
	}
	v, err := a.selector.Match(ctx, lang)
	return v, true, err
}

// speakFailure turns the wire codes reported by engines into advice.
func speakFailure(err error) string {
	switch tts.KindOf(err) {
	case tts.KindLoginRequired:
		return "this voice needs an account: run " + keyword("readaloud login TOKEN")
	case tts.KindPaymentRequired:
		return "your balance is empty: run " + keyword("readaloud buy")
	case tts.KindWavenetAuthRequired:
		return "Google voices need neural.api_key or a relay token: run " + keyword("readaloud login --relay TOKEN")
	case tts.KindUserGestureRequired:
		return "the audio device refused to start playback"
	}
	return tts.ErrorMessage(err)
}

// watchConfig re-applies the log level when the config file changes
// during a long read.
func watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Debug("Configuration changed", "path", e.Name)
		applyLogLevel(viper.GetString("log.level"))
	})
	viper.WatchConfig()
}
