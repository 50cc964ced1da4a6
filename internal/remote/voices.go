package remote

import "github.com/readaloud/ttsengine/tts"

// DefaultVoices are the voices served by the read-aloud service.
var DefaultVoices = []tts.Voice{
	{Name: "Amazon Australian English (Nicole)", Lang: "en-AU", Gender: "female"},
	{Name: "Amazon Australian English (Russell)", Lang: "en-AU", Gender: "male"},
	{Name: "Amazon British English (Amy)", Lang: "en-GB", Gender: "female"},
	{Name: "Amazon British English (Brian)", Lang: "en-GB", Gender: "male"},
	{Name: "Amazon British English (Emma)", Lang: "en-GB", Gender: "female"},
	{Name: "Amazon US English (Ivy)", Lang: "en-US", Gender: "female"},
	{Name: "Amazon US English (Joey)", Lang: "en-US", Gender: "male"},
	{Name: "Amazon US English (Justin)", Lang: "en-US", Gender: "male"},
	{Name: "Amazon US English (Kendra)", Lang: "en-US", Gender: "female"},
	{Name: "Amazon US English (Kimberly)", Lang: "en-US", Gender: "female"},
	{Name: "Amazon US English (Salli)", Lang: "en-US", Gender: "female"},
	{Name: "Amazon US Spanish (Miguel)", Lang: "es-US", Gender: "male"},
	{Name: "Amazon US Spanish (Penelope)", Lang: "es-US", Gender: "female"},
	{Name: "Amazon German (Hans)", Lang: "de-DE", Gender: "male"},
	{Name: "Amazon German (Marlene)", Lang: "de-DE", Gender: "female"},
	{Name: "Amazon French (Celine)", Lang: "fr-FR", Gender: "female"},
	{Name: "Amazon French (Mathieu)", Lang: "fr-FR", Gender: "male"},
	{Name: "Microsoft US English (David)", Lang: "en-US", Gender: "male"},
	{Name: "Microsoft US English (Mark)", Lang: "en-US", Gender: "male"},
	{Name: "Microsoft US English (Zira)", Lang: "en-US", Gender: "female"},
}
