package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/readaloud/ttsengine/internal/selection"
	"github.com/readaloud/ttsengine/tts"
)

var (
	voicesFind    string
	voicesLang    string
	voicesRefresh bool
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List available voices",
	Long:    paragraph(fmt.Sprintf("\n%s every voice this machine can use, grouped by engine.", keyword("List"))),
	Example: paragraph("readaloud voices\nreadaloud voices --find wavenet\nreadaloud voices --lang fr"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ctx := cmd.Context()
		if voicesRefresh {
			if _, err := a.catalog.Refresh(ctx); err != nil {
				return fmt.Errorf("unable to refresh catalog: %w", err)
			}
		}

		voices := a.selector.Voices(ctx)
		if voicesLang != "" {
			voices = filterLang(voices, voicesLang)
		}
		if voicesFind != "" {
			voices = findVoices(voices, voicesFind)
		}

		out := cmd.OutOrStdout()
		writeVoices(out, voices)
		if at := a.catalog.FetchedAt(); !at.IsZero() {
			fmt.Fprintln(out, faint("Google catalog updated "+humanize.Time(at)))
		}
		return nil
	},
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesFind, "find", "f", "", "fuzzy search voice names")
	voicesCmd.Flags().StringVarP(&voicesLang, "lang", "l", "", "only voices whose language starts with this")
	voicesCmd.Flags().BoolVar(&voicesRefresh, "refresh", false, "refresh the Google voice catalog first")
}

// findVoices ranks voices by fuzzy match against their names.
func findVoices(voices []tts.Voice, pattern string) []tts.Voice {
	names := make([]string, len(voices))
	for i, v := range voices {
		names[i] = v.Name
	}
	matches := fuzzy.Find(pattern, names)
	out := make([]tts.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func filterLang(voices []tts.Voice, lang string) []tts.Voice {
	var out []tts.Voice
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), strings.ToLower(lang)) {
			out = append(out, v)
		}
	}
	return out
}

// writeVoices prints one aligned row per voice.
func writeVoices(w io.Writer, voices []tts.Voice) {
	width := runewidth.StringWidth("VOICE")
	for _, v := range voices {
		width = max(width, runewidth.StringWidth(v.Name))
	}

	fmt.Fprintf(w, "%s  %-8s  %-7s  %s\n", runewidth.FillRight("VOICE", width), "LANG", "GENDER", "ENGINE")
	for _, v := range voices {
		fmt.Fprintf(w, "%s  %-8s  %-7s  %s\n",
			runewidth.FillRight(v.Name, width), v.Lang, v.Gender, selection.BackendOf(v))
	}
	if len(voices) == 0 {
		fmt.Fprintln(w, faint("no voices"))
	}
}
