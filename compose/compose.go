// Package compose builds outbound generation requests from conversation
// state. Composition is a pure function of its inputs: participants, global
// settings, attached-document text, retrieved context and the tool notice all
// arrive as explicit values, never as reads of ambient state.
package compose

import (
	"fmt"
	"strings"

	"blackia/model"
)

// AttachmentMaxChars bounds the text included per attached document. The
// bound is a hard contract: operator-supplied files must not grow the context
// without limit.
const AttachmentMaxChars = 10000

// TruncationMarker is appended to any attachment block that was cut at
// AttachmentMaxChars.
const TruncationMarker = "[truncated]"

// AttachmentText is the resolved text of one attached document.
type AttachmentText struct {
	Name string
	Text string
}

// Snippet is one piece of retrieved context (library retrieval or web search).
type Snippet struct {
	Source string // document title, or result title + URL for web results
	Text   string
}

// Input carries everything composition needs for one turn.
type Input struct {
	History     []model.Message
	UserContent string

	// Participants in priority order: explicitly mentioned personas, or the
	// conversation's bound persona, or none.
	Participants []model.Persona

	Settings model.GenerationSettings

	Attachments      []AttachmentText
	RetrievedContext []Snippet
	WebContext       []Snippet
	ToolNotice       string

	// ParticipantsFromMention records where Participants came from. Few-shot
	// inclusion is governed by exactly one of two independently tracked
	// booleans: IncludeMentionFewShots when the participants were explicitly
	// mentioned for this message, Settings.IncludeFewShots otherwise. They
	// are distinct choices and must never be conflated.
	ParticipantsFromMention bool
	IncludeMentionFewShots  bool
}

// SamplingParams are the resolved generation parameters for the request.
type SamplingParams struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Output is the composed request body.
type Output struct {
	// Messages is [system?] ++ history ++ [new user message]. No system
	// entry is emitted when there is nothing to say.
	Messages []model.Message

	// ModelOverride is the first participant's preferred model, or empty to
	// use the session-default model.
	ModelOverride string

	Sampling SamplingParams
}

// Compose turns one submitted user message plus conversation state into the
// ordered message list and parameters for a generation request.
func Compose(in Input) Output {
	system := systemContent(in)

	var messages []model.Message
	if system != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	}
	messages = append(messages, in.History...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: in.UserContent})

	out := Output{
		Messages: messages,
		Sampling: SamplingParams{
			Temperature: in.Settings.Temperature,
			MaxTokens:   in.Settings.MaxTokens,
			TopP:        in.Settings.TopP,
		},
	}

	// Persona settings always win when present.
	if len(in.Participants) > 0 {
		first := in.Participants[0]
		out.ModelOverride = first.Model
		if first.Temperature != nil {
			out.Sampling.Temperature = *first.Temperature
		}
		if first.MaxTokens != nil {
			out.Sampling.MaxTokens = *first.MaxTokens
		}
	}

	return out
}

// systemContent assembles the system message body: persona or global
// instructions, then few-shot examples, then attachment blocks, retrieved
// context, web context and the tool notice, in that fixed order.
func systemContent(in Input) string {
	var b strings.Builder

	switch len(in.Participants) {
	case 0:
		b.WriteString(strings.TrimSpace(in.Settings.SystemPrompt))
	case 1:
		b.WriteString(in.Participants[0].SystemPrompt)
	default:
		b.WriteString(multiRolePrompt(in.Participants))
	}

	if len(in.Participants) > 0 && includeFewShots(in) {
		if examples := fewShotText(in.Participants); examples != "" {
			b.WriteString("\n\nExamples:\n")
			b.WriteString(examples)
		}
	}

	for _, att := range in.Attachments {
		appendBlock(&b, attachmentBlock(att))
	}
	if len(in.RetrievedContext) > 0 {
		appendBlock(&b, snippetBlock("Retrieved context", in.RetrievedContext))
	}
	if len(in.WebContext) > 0 {
		appendBlock(&b, snippetBlock("Web search results", in.WebContext))
	}
	if in.ToolNotice != "" {
		appendBlock(&b, in.ToolNotice)
	}

	return strings.TrimSpace(b.String())
}

// includeFewShots selects which of the two few-shot booleans governs this
// call: the per-mention choice when the participants were mentioned, the
// global setting otherwise.
func includeFewShots(in Input) bool {
	if in.ParticipantsFromMention {
		return in.IncludeMentionFewShots
	}
	return in.Settings.IncludeFewShots
}

// multiRolePrompt synthesizes a single instruction enumerating every
// participant's role and instruction text. Roles with empty instruction text
// are still named: predictable output over silent omission.
func multiRolePrompt(participants []model.Persona) string {
	var roles []string
	for i, p := range participants {
		roles = append(roles, fmt.Sprintf("[Role %d: %s]\n%s", i+1, p.Name, p.SystemPrompt))
	}

	return "You must combine the perspectives of several roles to answer. Here are the roles to adopt:\n\n" +
		strings.Join(roles, "\n\n---\n\n") +
		"\n\nAnswer by integrating the perspectives of all these roles."
}

// fewShotText serializes every participant's few-shot examples as alternating
// user/assistant exchanges, concatenated in participant order.
func fewShotText(participants []model.Persona) string {
	var exchanges []string
	for _, p := range participants {
		for _, ex := range p.FewShotExamples {
			exchanges = append(exchanges, fmt.Sprintf("User: %s\nAssistant: %s", ex.UserMessage, ex.AssistantResponse))
		}
	}
	return strings.Join(exchanges, "\n\n")
}

func attachmentBlock(att AttachmentText) string {
	text, cut := truncateChars(att.Text, AttachmentMaxChars)
	if cut {
		text += "\n" + TruncationMarker
	}
	return fmt.Sprintf("--- Attached document: %s ---\n%s", att.Name, text)
}

// truncateChars cuts s after max characters, always on a rune boundary so a
// multibyte document is never committed as invalid UTF-8.
func truncateChars(s string, max int) (string, bool) {
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}

func snippetBlock(title string, snippets []Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ---", title)
	for _, s := range snippets {
		b.WriteString("\n")
		if s.Source != "" {
			b.WriteString(s.Source)
			b.WriteString("\n")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func appendBlock(b *strings.Builder, block string) {
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(block)
}
