package assistant

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicons/*.yaml
var builtinLexicons embed.FS

const inputPlaceholder = "{input}"

// Markers are the substrings that select an intent in the model's analysis.
type Markers struct {
	Query  string `yaml:"query"`
	Create string `yaml:"create"`
	Mark   string `yaml:"mark"`
}

// Labels are the field names the model writes as "label: value" lines.
type Labels struct {
	Title       string `yaml:"title"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
}

// Prompts are the model prompt templates. {input} is replaced by the user text.
type Prompts struct {
	Intent string `yaml:"intent"`
	Chat   string `yaml:"chat"`
}

// Replies are the fixed user-facing messages.
type Replies struct {
	Unauthorized     string `yaml:"unauthorized"`
	NoEvents         string `yaml:"no_events"`
	EventsHeader     string `yaml:"events_header"`
	EventLine        string `yaml:"event_line"`
	Created          string `yaml:"created"`
	CreateIncomplete string `yaml:"create_incomplete"`
	CreateError      string `yaml:"create_error"`
	NoMarkCandidates string `yaml:"no_mark_candidates"`
	Marked           string `yaml:"marked"`
	NoMatch          string `yaml:"no_match"`
	CalendarError    string `yaml:"calendar_error"`
	NotUnderstood    string `yaml:"not_understood"`
	ErrorRetry       string `yaml:"error_retry"`
	EmptyMessage     string `yaml:"empty_message"`
	Apology          string `yaml:"apology"`
	AuthorizeFailed  string `yaml:"authorize_failed"`
	HealthOK         string `yaml:"health_ok"`
	HealthNotLoaded  string `yaml:"health_not_loaded"`
}

// Lexicon holds every language-dependent string the assistant uses.
type Lexicon struct {
	Language          string   `yaml:"language"`
	Markers           Markers  `yaml:"markers"`
	Labels            Labels   `yaml:"labels"`
	ImportanceKeyword string   `yaml:"importance_keyword"`
	CalendarKeywords  []string `yaml:"calendar_keywords"`
	Prompts           Prompts  `yaml:"prompts"`
	Replies           Replies  `yaml:"replies"`
}

// LoadLexicon returns the built-in lexicon for language, with the YAML file
// at overridePath (if any) applied on top of it.
func LoadLexicon(language, overridePath string) (*Lexicon, error) {
	data, err := builtinLexicons.ReadFile("lexicons/" + language + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unsupported assistant language %q", language)
	}

	lex := &Lexicon{}
	if err := decodeLexicon(data, lex); err != nil {
		return nil, fmt.Errorf("failed to parse %s lexicon: %w", language, err)
	}

	if overridePath != "" {
		override, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read lexicon file: %w", err)
		}
		if err := decodeLexicon(override, lex); err != nil {
			return nil, fmt.Errorf("failed to parse lexicon file %s: %w", overridePath, err)
		}
	}

	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return lex, nil
}

// MustLexicon returns a built-in lexicon and panics if it cannot be loaded.
func MustLexicon(language string) *Lexicon {
	lex, err := LoadLexicon(language, "")
	if err != nil {
		panic(err)
	}
	return lex
}

func decodeLexicon(data []byte, lex *Lexicon) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(lex); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports missing entries.
func (l *Lexicon) Validate() error {
	required := map[string]string{
		"markers.query":             l.Markers.Query,
		"markers.create":            l.Markers.Create,
		"markers.mark":              l.Markers.Mark,
		"labels.title":              l.Labels.Title,
		"labels.start":              l.Labels.Start,
		"labels.end":                l.Labels.End,
		"importance_keyword":        l.ImportanceKeyword,
		"prompts.intent":            l.Prompts.Intent,
		"prompts.chat":              l.Prompts.Chat,
		"replies.unauthorized":      l.Replies.Unauthorized,
		"replies.no_events":         l.Replies.NoEvents,
		"replies.event_line":        l.Replies.EventLine,
		"replies.created":           l.Replies.Created,
		"replies.create_incomplete": l.Replies.CreateIncomplete,
		"replies.create_error":      l.Replies.CreateError,
		"replies.marked":            l.Replies.Marked,
		"replies.no_match":          l.Replies.NoMatch,
		"replies.not_understood":    l.Replies.NotUnderstood,
		"replies.error_retry":       l.Replies.ErrorRetry,
		"replies.apology":           l.Replies.Apology,
	}

	var missing []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("lexicon %q is missing: %s", l.Language, strings.Join(missing, ", "))
	}

	for key, prompt := range map[string]string{"prompts.intent": l.Prompts.Intent, "prompts.chat": l.Prompts.Chat} {
		if !strings.Contains(prompt, inputPlaceholder) {
			return fmt.Errorf("lexicon %q: %s must contain %s", l.Language, key, inputPlaceholder)
		}
	}
	return nil
}

// IntentPrompt returns the classification prompt for the user text.
func (l *Lexicon) IntentPrompt(input string) string {
	return strings.ReplaceAll(l.Prompts.Intent, inputPlaceholder, input)
}

// ChatPrompt returns the general assistant prompt for the user text.
func (l *Lexicon) ChatPrompt(input string) string {
	return strings.ReplaceAll(l.Prompts.Chat, inputPlaceholder, input)
}

// MentionsCalendar reports whether the text contains a calendar keyword.
func (l *Lexicon) MentionsCalendar(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range l.CalendarKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MarksImportant reports whether the user text contains the importance keyword.
func (l *Lexicon) MarksImportant(text string) bool {
	return containsFold(text, l.ImportanceKeyword)
}
