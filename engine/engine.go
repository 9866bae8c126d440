// Package engine is the streaming conversation session engine: it owns the
// lifecycle of the single outstanding generation, routes push events by
// stream id, reconciles streamed output into the message history and
// recovers cleanly from cancellation and failure.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"blackia/compose"
	"blackia/config"
	"blackia/gate"
	"blackia/model"
)

// ErrorPrefix marks synthetic system messages produced by terminal errors so
// they are distinguishable from normal assistant output.
const ErrorPrefix = "❌ Error: "

// InterruptionMarker is appended to partial content committed after a
// user-initiated stop. Losing partial output on cancellation is a defect, not
// acceptable behavior.
const InterruptionMarker = " [interrupted]"

// Config wires an Engine to its transport and collaborators.
type Config struct {
	Transport    model.Transport
	DefaultModel string
	Settings     model.GenerationSettings

	// ToolingEnabled gates tool attachment globally.
	ToolingEnabled bool

	// Gate overrides the default capability gate (optional).
	Gate *gate.Gate

	// Collaborators; any of them may be nil, the corresponding context is
	// then simply not gathered.
	Personas    PersonaSource
	Attachments AttachmentResolver
	Tools       ToolCatalog
	Web         WebSearcher

	// BoundPersonaID is the conversation's persistently bound persona.
	BoundPersonaID string

	// OnUpdate receives notifications about streaming and history changes.
	// It is called outside the engine's lock, in event order, and must not
	// block for long.
	OnUpdate func(Update)

	// OnParticipants is called with the resolved participant ids each time a
	// turn dispatches. The engine itself never mutates persona state; usage
	// accounting belongs to the embedder.
	OnParticipants func(ids []string)
}

// Engine drives one conversation view. All state mutation is linearized
// behind a single mutex: the transport delivers events sequentially from one
// goroutine, and every entry point takes the lock for its full critical
// section, so event handling completes before the next event is processed.
type Engine struct {
	mu sync.Mutex

	transport      model.Transport
	gate           *gate.Gate
	personas       PersonaSource
	attachments    AttachmentResolver
	tools          ToolCatalog
	web            WebSearcher
	onUpdate       func(Update)
	onParticipants func([]string)

	history        *History
	settings       model.GenerationSettings
	defaultModel   string
	toolingEnabled bool
	boundPersonaID string

	status Status
	// liveID is the single authoritative field for "what stream is live".
	// It is never duplicated elsewhere; every event is correlated against it
	// and nothing else.
	liveID      string
	acc         strings.Builder
	pendingMeta *model.MessageMetadata
}

// New creates an engine and registers it as the transport's event sink.
func New(cfg Config) *Engine {
	e := &Engine{
		transport:      cfg.Transport,
		gate:           cfg.Gate,
		personas:       cfg.Personas,
		attachments:    cfg.Attachments,
		tools:          cfg.Tools,
		web:            cfg.Web,
		onUpdate:       cfg.OnUpdate,
		onParticipants: cfg.OnParticipants,
		history:        NewHistory(),
		settings:       cfg.Settings,
		defaultModel:   cfg.DefaultModel,
		toolingEnabled: cfg.ToolingEnabled,
		boundPersonaID: cfg.BoundPersonaID,
		status:         StatusIdle,
	}
	if e.gate == nil {
		e.gate = &gate.Gate{}
	}
	if e.transport != nil {
		e.transport.SetSink(e.HandleEvent)
	}
	return e
}

// SendOptions carry the per-message choices for one submitted turn.
type SendOptions struct {
	// MentionedPersonaIDs are personas explicitly mentioned for this single
	// message. They take precedence over the bound persona for this turn
	// only and never alter the binding.
	MentionedPersonaIDs []string

	// IncludeMentionFewShots is the per-mention few-shot choice. It is
	// independent of the global GenerationSettings.IncludeFewShots and only
	// consulted when MentionedPersonaIDs is non-empty.
	IncludeMentionFewShots bool

	AttachmentIDs []string
	WebSearch     bool

	// RetrievedContext is pre-retrieved library context supplied by the
	// caller, with its provenance descriptor.
	RetrievedContext []compose.Snippet
	RAGProvenance    string
}

// Send submits a user message: it gathers context, composes the request,
// appends the user message to the history and dispatches the stream. Returns
// ErrBusy when a session is already active; auxiliary context failures
// (attachments, web search, tools) degrade gracefully and never block the
// turn.
func (e *Engine) Send(ctx context.Context, content string, opts SendOptions) error {
	e.mu.Lock()
	notes, err := e.sendLocked(ctx, content, opts)
	e.mu.Unlock()
	e.emit(notes)
	return err
}

func (e *Engine) sendLocked(ctx context.Context, content string, opts SendOptions) ([]Update, error) {
	if e.status != StatusIdle {
		return nil, ErrBusy
	}

	participants, fromMention := e.resolveParticipants(ctx, opts.MentionedPersonaIDs)
	attachmentTexts, attachmentIDs := e.resolveAttachments(ctx, opts.AttachmentIDs)
	webContext, webProvenance := e.searchWeb(ctx, content, opts.WebSearch)

	targetModel := e.defaultModel
	if len(participants) > 0 && participants[0].Model != "" {
		targetModel = participants[0].Model
	}
	tools, notice := e.evaluateTools(ctx, targetModel)

	if e.onParticipants != nil && len(participants) > 0 {
		e.onParticipants(participantIDs(participants))
	}

	now := time.Now()
	userMsg := model.Message{Role: model.RoleUser, Content: content, Timestamp: now}
	index := e.history.Append(userMsg)
	notes := []Update{{Kind: UpdateMessage, Message: userMsg, Index: index}}

	if fromMention || len(attachmentIDs) > 0 || webProvenance != "" || opts.RAGProvenance != "" {
		md := model.MessageMetadata{
			AttachmentIDs:       attachmentIDs,
			RAGProvenance:       opts.RAGProvenance,
			WebSearchProvenance: webProvenance,
			Timestamp:           now,
		}
		if fromMention {
			ids := participantIDs(participants)
			md.PersonaID = ids[0]
			md.PersonaIDs = ids
		}
		e.history.AttachMetadata(index, md)
	}

	out := compose.Compose(compose.Input{
		History:                 e.history.Messages()[:index],
		UserContent:             content,
		Participants:            participants,
		Settings:                e.settings,
		Attachments:             attachmentTexts,
		RetrievedContext:        opts.RetrievedContext,
		WebContext:              webContext,
		ToolNotice:              notice,
		ParticipantsFromMention: fromMention,
		IncludeMentionFewShots:  opts.IncludeMentionFewShots,
	})

	var pending *model.MessageMetadata
	if fromMention {
		ids := participantIDs(participants)
		pending = &model.MessageMetadata{PersonaID: ids[0], PersonaIDs: ids}
	}

	startNotes, err := e.startLocked(ctx, out, tools, pending)
	return append(notes, startNotes...), err
}

// Regenerate truncates the history to just before the last assistant message
// and re-dispatches the preceding user turn with the bound persona and
// global settings. Message content is never mutated in place.
func (e *Engine) Regenerate(ctx context.Context) error {
	e.mu.Lock()
	notes, err := e.regenerateLocked(ctx)
	e.mu.Unlock()
	e.emit(notes)
	return err
}

func (e *Engine) regenerateLocked(ctx context.Context) ([]Update, error) {
	if e.status != StatusIdle {
		return nil, ErrBusy
	}

	lastAssistant := e.history.LastIndexOfRole(model.RoleAssistant)
	if lastAssistant == -1 {
		return nil, ErrNothingToRegenerate
	}
	e.history.TruncateFrom(lastAssistant)

	msgs := e.history.Messages()
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != model.RoleUser {
		return nil, ErrNothingToRegenerate
	}

	return e.redispatchLocked(ctx, msgs)
}

// EditLastUserMessage replaces the last user message with new content: the
// old message and everything after it are truncated, the edited content is
// appended as a new message and the turn re-dispatches.
func (e *Engine) EditLastUserMessage(ctx context.Context, newContent string) error {
	e.mu.Lock()
	notes, err := e.editLocked(ctx, newContent)
	e.mu.Unlock()
	e.emit(notes)
	return err
}

func (e *Engine) editLocked(ctx context.Context, newContent string) ([]Update, error) {
	if e.status != StatusIdle {
		return nil, ErrBusy
	}

	lastUser := e.history.LastIndexOfRole(model.RoleUser)
	if lastUser == -1 {
		return nil, ErrNothingToEdit
	}
	e.history.TruncateFrom(lastUser)

	userMsg := model.Message{Role: model.RoleUser, Content: newContent, Timestamp: time.Now()}
	index := e.history.Append(userMsg)
	notes := []Update{{Kind: UpdateMessage, Message: userMsg, Index: index}}

	startNotes, err := e.redispatchLocked(ctx, e.history.Messages())
	return append(notes, startNotes...), err
}

// redispatchLocked composes and starts a stream for a history that already
// ends with the user message to answer. Used by regenerate and edit, which
// carry no per-message mention or attachment choices.
func (e *Engine) redispatchLocked(ctx context.Context, msgs []model.Message) ([]Update, error) {
	last := msgs[len(msgs)-1]
	participants, fromMention := e.resolveParticipants(ctx, nil)

	targetModel := e.defaultModel
	if len(participants) > 0 && participants[0].Model != "" {
		targetModel = participants[0].Model
	}
	tools, notice := e.evaluateTools(ctx, targetModel)

	out := compose.Compose(compose.Input{
		History:                 msgs[:len(msgs)-1],
		UserContent:             last.Content,
		Participants:            participants,
		Settings:                e.settings,
		ToolNotice:              notice,
		ParticipantsFromMention: fromMention,
	})

	return e.startLocked(ctx, out, tools, nil)
}

// startLocked transitions Idle → Starting and dispatches the composed
// request. On transport failure the session returns to Idle and the error is
// surfaced as a system message.
func (e *Engine) startLocked(ctx context.Context, out compose.Output, tools []mcptypes.Tool, pending *model.MessageMetadata) ([]Update, error) {
	reqModel := e.defaultModel
	if out.ModelOverride != "" {
		reqModel = out.ModelOverride
	}

	req := model.Request{
		Model:    reqModel,
		Messages: out.Messages,
		Tools:    tools,
		Options: model.SamplingOptions{
			Temperature: out.Sampling.Temperature,
			TopP:        out.Sampling.TopP,
			MaxTokens:   out.Sampling.MaxTokens,
		},
	}

	e.status = StatusStarting
	e.acc.Reset()
	e.pendingMeta = pending

	streamID, err := e.transport.StartStream(ctx, req)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] dispatch failed: %v", err)
		}
		notes := e.failLocked(err)
		return notes, &TransportError{Err: err}
	}

	e.liveID = streamID
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] dispatched stream %s (model=%s, %d messages, %d tools)",
			streamID, reqModel, len(req.Messages), len(tools))
	}
	return []Update{{Kind: UpdateStatus, Status: StatusStarting}}, nil
}

// Stop requests cancellation of the live session. Safe to call when no
// session is active (no-op). Already-produced partial content is preserved:
// the stop confirmation commits it with an interruption marker.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.status == StatusIdle || e.liveID == "" {
		e.mu.Unlock()
		return nil
	}
	streamID := e.liveID
	e.status = StatusStopping
	e.mu.Unlock()
	e.emit([]Update{{Kind: UpdateStatus, Status: StatusStopping}})

	if err := e.transport.StopStream(ctx, streamID); err != nil {
		// The backend did not confirm; clean up locally so the user is not
		// stuck, keeping whatever content had accumulated.
		e.mu.Lock()
		var notes []Update
		if e.liveID == streamID {
			notes = e.finishLocked(true)
		}
		e.mu.Unlock()
		e.emit(notes)
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// HandleEvent is the transport's event sink. Events whose stream id does not
// match the live session id are discarded without side effects; id equality
// is the only correlation mechanism.
func (e *Engine) HandleEvent(ev model.Event) {
	e.mu.Lock()
	notes := e.handleEventLocked(ev)
	e.mu.Unlock()
	e.emit(notes)
}

func (e *Engine) handleEventLocked(ev model.Event) []Update {
	if e.status == StatusIdle {
		return nil
	}
	// Error events may arrive without an id when the failure predates stream
	// assignment; every other event must match the live id exactly.
	if ev.StreamID != e.liveID && !(ev.Kind == model.EventError && ev.StreamID == "") {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] discarding stale %s event (stream %s, live %s)",
				ev.Kind, ev.StreamID, e.liveID)
		}
		return nil
	}

	switch ev.Kind {
	case model.EventStart:
		if e.status == StatusStarting {
			e.status = StatusStreaming
			return []Update{{Kind: UpdateStatus, Status: StatusStreaming}}
		}
	case model.EventChunk:
		if e.status == StatusStreaming || e.status == StatusStopping {
			e.acc.WriteString(ev.Delta)
			return []Update{{Kind: UpdateDelta, Delta: ev.Delta}}
		}
	case model.EventEnd:
		return e.finishLocked(ev.Stopped)
	case model.EventError:
		return e.failLocked(ev.Err)
	}
	return nil
}

// finishLocked commits the accumulated content (with the interruption marker
// when the stream was stopped) and returns the session to idle. Empty
// accumulated content produces no message.
func (e *Engine) finishLocked(stopped bool) []Update {
	content := e.acc.String()
	pending := e.pendingMeta
	e.resetLocked()

	var notes []Update
	if strings.TrimSpace(content) != "" {
		if stopped {
			content += InterruptionMarker
		}
		msg := model.Message{Role: model.RoleAssistant, Content: content, Timestamp: time.Now()}
		index := e.history.Append(msg)
		if pending != nil {
			md := *pending
			md.Timestamp = msg.Timestamp
			e.history.AttachMetadata(index, md)
		}
		notes = append(notes, Update{Kind: UpdateMessage, Message: msg, Index: index})
	}
	return append(notes, Update{Kind: UpdateStatus, Status: StatusIdle})
}

// failLocked surfaces a terminal error as a system message and returns the
// session to idle. The session is never left in a non-idle state after an
// error.
func (e *Engine) failLocked(err error) []Update {
	e.resetLocked()

	text := "unknown error"
	if err != nil {
		text = err.Error()
	}
	msg := model.Message{Role: model.RoleSystem, Content: ErrorPrefix + text, Timestamp: time.Now()}
	index := e.history.Append(msg)

	return []Update{
		{Kind: UpdateMessage, Message: msg, Index: index},
		{Kind: UpdateStatus, Status: StatusIdle},
	}
}

// resetLocked clears per-session state and invalidates the stream id.
func (e *Engine) resetLocked() {
	e.status = StatusIdle
	e.liveID = ""
	e.acc.Reset()
	e.pendingMeta = nil
}

// resolveParticipants resolves the turn's participants in priority order:
// explicitly mentioned personas, else the bound persona, else none. The
// second return reports whether the participants came from a mention.
func (e *Engine) resolveParticipants(ctx context.Context, mentioned []string) ([]model.Persona, bool) {
	if e.personas == nil {
		return nil, false
	}

	var participants []model.Persona
	for _, id := range mentioned {
		p, err := e.personas.GetByID(ctx, id)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] mentioned persona %s not resolved: %v", id, err)
			}
			continue
		}
		participants = append(participants, p)
	}
	if len(participants) > 0 {
		return participants, true
	}

	if e.boundPersonaID != "" {
		if p, err := e.personas.GetByID(ctx, e.boundPersonaID); err == nil {
			return []model.Persona{p}, false
		} else if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] bound persona %s not resolved: %v", e.boundPersonaID, err)
		}
	}
	return nil, false
}

// resolveAttachments resolves attachment ids to their extracted text. A
// failing attachment is skipped; the turn proceeds with whatever resolved.
func (e *Engine) resolveAttachments(ctx context.Context, ids []string) ([]compose.AttachmentText, []string) {
	if e.attachments == nil || len(ids) == 0 {
		return nil, nil
	}

	var texts []compose.AttachmentText
	var resolved []string
	for _, id := range ids {
		att, err := e.attachments.GetByID(ctx, id)
		if err != nil {
			rerr := &AttachmentResolutionError{ID: id, Err: err}
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] %v", rerr)
			}
			continue
		}
		texts = append(texts, compose.AttachmentText{Name: att.OriginalName, Text: att.ExtractedText})
		resolved = append(resolved, att.ID)
	}
	return texts, resolved
}

// searchWeb runs the web search for the submitted message. Failures are
// logged and the turn proceeds without web context.
func (e *Engine) searchWeb(ctx context.Context, query string, enabled bool) ([]compose.Snippet, string) {
	if !enabled || e.web == nil {
		return nil, ""
	}

	snippets, provenance, err := e.web.Search(ctx, query)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] web search failed: %v", err)
		}
		return nil, ""
	}
	return snippets, provenance
}

// evaluateTools fetches the permission-checked catalog and gates it for the
// target model. A catalog failure is non-fatal: the turn proceeds without
// tools and the failure is folded into the notice.
func (e *Engine) evaluateTools(ctx context.Context, targetModel string) ([]mcptypes.Tool, string) {
	if !e.toolingEnabled {
		return nil, ""
	}
	if e.tools == nil {
		return nil, ""
	}

	catalog, err := e.tools.ToolsForChat(ctx)
	if err != nil {
		terr := &ToolResolutionError{Err: err}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] %v", terr)
		}
		return nil, fmt.Sprintf("Note: tools are unavailable (%v).", terr)
	}
	return e.gate.Evaluate(targetModel, catalog, true)
}

func (e *Engine) emit(notes []Update) {
	if e.onUpdate == nil {
		return
	}
	for _, n := range notes {
		e.onUpdate(n)
	}
}

func participantIDs(participants []model.Persona) []string {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return ids
}

// Status returns the current session status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LiveStreamID returns the live stream id, or empty when idle.
func (e *Engine) LiveStreamID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveID
}

// AccumulatedContent returns the content streamed so far for the live
// session.
func (e *Engine) AccumulatedContent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc.String()
}

// Messages returns a snapshot of the conversation history.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Messages()
}

// MetadataAt returns the metadata attached at a history index, if any.
func (e *Engine) MetadataAt(index int) (model.MessageMetadata, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.MetadataAt(index)
}

// Metadata returns a snapshot of the full metadata map.
func (e *Engine) Metadata() map[int]model.MessageMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Metadata()
}

// BindPersona sets the conversation's bound persona. Mentions still take
// precedence per turn.
func (e *Engine) BindPersona(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundPersonaID = id
}

// BoundPersona returns the bound persona id, or empty.
func (e *Engine) BoundPersona() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundPersonaID
}

// UpdateSettings replaces the global generation settings used for subsequent
// turns.
func (e *Engine) UpdateSettings(s model.GenerationSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
}

// SetDefaultModel changes the session-default model for subsequent turns.
func (e *Engine) SetDefaultModel(m string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultModel = m
}

// Restore replaces the history with a persisted conversation's contents.
// Rejected while a session is active.
func (e *Engine) Restore(messages []model.Message, metadata map[int]model.MessageMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusIdle {
		return ErrBusy
	}
	e.history.Restore(messages, metadata)
	return nil
}

// Clear empties the conversation history and metadata. Rejected while a
// session is active.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusIdle {
		return ErrBusy
	}
	e.history.Restore(nil, nil)
	return nil
}
