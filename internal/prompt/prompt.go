// Package prompt loads the local prompt inputs and renders request prompts.
//
// Two files are required at startup:
//   - system instructions: persona text baked into the context cache
//   - prompt template: text with literal {messages} and {question} placeholders
//
// Both are deployment artifacts, not user input; a missing or malformed file
// aborts process startup.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Placeholders the template must contain.
const (
	PlaceholderMessages = "{messages}"
	PlaceholderQuestion = "{question}"
)

var (
	// ErrMissingPlaceholder indicates the template lacks a required placeholder.
	ErrMissingPlaceholder = errors.New("missing placeholder")

	// ErrEmptyInstructions indicates the system instructions file is empty.
	ErrEmptyInstructions = errors.New("empty system instructions")
)

// Message is one turn of conversation history supplied by the caller.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Template renders the final prompt from a question and message history.
type Template struct {
	raw string
}

// LoadTemplate reads and validates the prompt template at path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt template: %w", err)
	}

	raw := string(data)
	for _, ph := range []string{PlaceholderMessages, PlaceholderQuestion} {
		if !strings.Contains(raw, ph) {
			return nil, fmt.Errorf("%w: template %s has no %s", ErrMissingPlaceholder, path, ph)
		}
	}

	return &Template{raw: raw}, nil
}

// LoadSystemInstructions reads the system instructions at path.
func LoadSystemInstructions(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading system instructions: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyInstructions, path)
	}
	return text, nil
}

// Render substitutes the question and formatted message history into the
// template. Both placeholders are replaced in a single pass, so placeholder
// text inside the question or history is left alone.
func (t *Template) Render(question string, messages []Message) string {
	r := strings.NewReplacer(
		PlaceholderMessages, FormatMessages(messages),
		PlaceholderQuestion, question,
	)
	return r.Replace(t.raw)
}

// FormatMessages renders history one turn per line as "role: content".
func FormatMessages(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
