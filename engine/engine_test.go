package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"blackia/compose"
	"blackia/gate"
	"blackia/model"
	"blackia/ollama"
)

// fakeTransport records dispatched requests and lets tests deliver events by
// hand through the registered sink.
type fakeTransport struct {
	sink     model.EventSink
	nextID   string
	startErr error
	stopErr  error
	requests []model.Request
	stopped  []string
}

func (f *fakeTransport) StartStream(_ context.Context, req model.Request) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.requests = append(f.requests, req)
	return f.nextID, nil
}

func (f *fakeTransport) StopStream(_ context.Context, id string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeTransport) SetSink(sink model.EventSink) { f.sink = sink }

func (f *fakeTransport) ListModels(_ context.Context) ([]ollama.ModelInfo, error) {
	return nil, nil
}

func (f *fakeTransport) Ping(_ context.Context) error { return nil }

type fakePersonas struct {
	byID map[string]model.Persona
}

func (f *fakePersonas) GetByID(_ context.Context, id string) (model.Persona, error) {
	p, ok := f.byID[id]
	if !ok {
		return model.Persona{}, fmt.Errorf("persona not found: %s", id)
	}
	return p, nil
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{nextID: "stream-1"}
	cfg.Transport = tr
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.1:latest"
	}
	e := New(cfg)
	if tr.sink == nil {
		t.Fatal("engine did not register itself as the transport sink")
	}
	return e, tr
}

func TestSendRoutesEventsByStreamID(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "Hello", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := e.Status(); got != StatusStarting {
		t.Fatalf("status after dispatch = %v, want %v", got, StatusStarting)
	}

	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	if got := e.Status(); got != StatusStreaming {
		t.Fatalf("status after start = %v, want %v", got, StatusStreaming)
	}

	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "Hi"})

	// A chunk from a dead stream must not contaminate the live session.
	tr.sink(model.Event{StreamID: "stream-0", Kind: model.EventChunk, Delta: "STALE"})

	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	msgs := e.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if got, want := msgs[1].Role, model.RoleAssistant; got != want {
		t.Errorf("final role = %q, want %q", got, want)
	}
	if got, want := msgs[1].Content, "Hi"; got != want {
		t.Errorf("final content = %q, want %q", got, want)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status after end = %v, want %v", got, StatusIdle)
	}
}

func TestStaleEventsAfterCompletionAreDropped(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "hi", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "done"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	before := len(e.Messages())

	// Late duplicates from the finished stream: every one is a no-op.
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "late"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventError, Err: errors.New("late failure")})

	if got := len(e.Messages()); got != before {
		t.Errorf("len(messages) after stale events = %d, want %d", got, before)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestSendWhileActiveReturnsBusy(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "first", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})

	before := len(e.Messages())
	if err := e.Send(context.Background(), "second", SendOptions{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("Send() while streaming error = %v, want ErrBusy", err)
	}
	if got := len(e.Messages()); got != before {
		t.Errorf("rejected send appended to history: len = %d, want %d", got, before)
	}
	if got := len(tr.requests); got != 1 {
		t.Errorf("rejected send dispatched: %d requests, want 1", got)
	}
}

func TestStopCommitsPartialWithMarker(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "go", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "part"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "ial"})

	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := e.Status(); got != StatusStopping {
		t.Fatalf("status after stop request = %v, want %v", got, StatusStopping)
	}
	if got, want := tr.stopped, []string{"stream-1"}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("stopped streams = %v, want %v", got, want)
	}

	// Chunks may still race in while the backend winds down.
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "!"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Stopped: true})

	msgs := e.Messages()
	if got, want := msgs[len(msgs)-1].Content, "partial!"+InterruptionMarker; got != want {
		t.Errorf("committed content = %q, want %q", got, want)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestStopWithoutContentCommitsNothing(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "go", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Stopped: true})

	msgs := e.Messages()
	if got := len(msgs); got != 1 {
		t.Fatalf("len(messages) = %d, want 1 (user message only)", got)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	e, tr := newTestEngine(t, Config{})
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() while idle error = %v", err)
	}
	if len(tr.stopped) != 0 {
		t.Errorf("Stop() while idle reached the transport: %v", tr.stopped)
	}
}

func TestStopFailureCleansUpLocally(t *testing.T) {
	e, tr := newTestEngine(t, Config{})
	tr.stopErr = errors.New("backend unreachable")

	if err := e.Send(context.Background(), "go", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "kept"})

	if err := e.Stop(context.Background()); err == nil {
		t.Fatal("Stop() error = nil, want backend failure")
	}

	msgs := e.Messages()
	if got, want := msgs[len(msgs)-1].Content, "kept"+InterruptionMarker; got != want {
		t.Errorf("committed content = %q, want %q", got, want)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestStreamErrorProducesSystemMessage(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "go", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "partial that must be discarded"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventError, Err: errors.New("model crashed")})

	msgs := e.Messages()
	last := msgs[len(msgs)-1]
	if got, want := last.Role, model.RoleSystem; got != want {
		t.Errorf("last role = %q, want %q", got, want)
	}
	if got, want := last.Content, ErrorPrefix+"model crashed"; got != want {
		t.Errorf("last content = %q, want %q", got, want)
	}
	for _, m := range msgs {
		if strings.Contains(m.Content, "discarded") && m.Role == model.RoleAssistant {
			t.Errorf("partial content was committed: %q", m.Content)
		}
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestDispatchFailureSurfacesTransportError(t *testing.T) {
	e, tr := newTestEngine(t, Config{})
	tr.startErr = errors.New("connection refused")

	err := e.Send(context.Background(), "hello", SendOptions{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Send() error = %v, want *TransportError", err)
	}

	msgs := e.Messages()
	last := msgs[len(msgs)-1]
	if got, want := last.Content, ErrorPrefix+"connection refused"; got != want {
		t.Errorf("last content = %q, want %q", got, want)
	}
	if got := e.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}
}

func TestEmptyAccumulatedContentCommitsNothing(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "go", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "  \n"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	if got := len(e.Messages()); got != 1 {
		t.Errorf("len(messages) = %d, want 1", got)
	}
}

func TestMentionAttachesMetadataToBothSides(t *testing.T) {
	temp := 0.3
	personas := &fakePersonas{byID: map[string]model.Persona{
		"p1": {ID: "p1", Name: "Reviewer", SystemPrompt: "Review code.", Temperature: &temp},
	}}
	e, tr := newTestEngine(t, Config{Personas: personas})

	err := e.Send(context.Background(), "check this", SendOptions{
		MentionedPersonaIDs: []string{"p1", "missing"},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	md, ok := e.MetadataAt(0)
	if !ok {
		t.Fatal("no metadata attached to the user message")
	}
	if got, want := md.PersonaID, "p1"; got != want {
		t.Errorf("user metadata PersonaID = %q, want %q", got, want)
	}
	if len(md.PersonaIDs) != 1 || md.PersonaIDs[0] != "p1" {
		t.Errorf("user metadata PersonaIDs = %v, want [p1] (unresolvable mention skipped)", md.PersonaIDs)
	}

	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "Looks fine."})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	amd, ok := e.MetadataAt(1)
	if !ok {
		t.Fatal("no metadata attached to the assistant message")
	}
	if got, want := amd.PersonaID, "p1"; got != want {
		t.Errorf("assistant metadata PersonaID = %q, want %q", got, want)
	}
}

func TestBoundPersonaGetsNoPersonaMetadata(t *testing.T) {
	personas := &fakePersonas{byID: map[string]model.Persona{
		"bound": {ID: "bound", Name: "Helper", SystemPrompt: "Help."},
	}}
	e, tr := newTestEngine(t, Config{Personas: personas, BoundPersonaID: "bound"})

	if err := e.Send(context.Background(), "hi", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, ok := e.MetadataAt(0); ok {
		t.Error("bound-persona turn attached persona metadata to the user message")
	}

	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "Hello."})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	if _, ok := e.MetadataAt(1); ok {
		t.Error("bound-persona turn attached persona metadata to the assistant message")
	}

	// The bound persona still shapes the request itself.
	req := tr.requests[0]
	if len(req.Messages) == 0 || req.Messages[0].Role != model.RoleSystem {
		t.Fatal("bound persona produced no system message")
	}
	if got, want := req.Messages[0].Content, "Help."; got != want {
		t.Errorf("system message = %q, want %q", got, want)
	}
}

func TestPersonaModelOverrideWinsForRequest(t *testing.T) {
	personas := &fakePersonas{byID: map[string]model.Persona{
		"m": {ID: "m", Name: "Coder", SystemPrompt: "Code.", Model: "qwen2.5-coder:7b"},
	}}
	e, tr := newTestEngine(t, Config{Personas: personas, DefaultModel: "llama3.1:latest"})

	err := e.Send(context.Background(), "write code", SendOptions{MentionedPersonaIDs: []string{"m"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got, want := tr.requests[0].Model, "qwen2.5-coder:7b"; got != want {
		t.Errorf("request model = %q, want %q", got, want)
	}
}

func TestRegenerateReplacesLastAssistantMessage(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "question", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "first answer"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	tr.nextID = "stream-2"
	if err := e.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}

	msgs := e.Messages()
	if got := len(msgs); got != 1 {
		t.Fatalf("len(messages) after regenerate = %d, want 1 (old answer truncated)", got)
	}

	req := tr.requests[len(tr.requests)-1]
	last := req.Messages[len(req.Messages)-1]
	if got, want := last.Content, "question"; got != want {
		t.Errorf("re-dispatched user content = %q, want %q", got, want)
	}
	for _, m := range req.Messages {
		if m.Content == "first answer" {
			t.Error("truncated assistant message leaked into the re-dispatched request")
		}
	}

	tr.sink(model.Event{StreamID: "stream-2", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-2", Kind: model.EventChunk, Delta: "second answer"})
	tr.sink(model.Event{StreamID: "stream-2", Kind: model.EventEnd, Done: true})

	msgs = e.Messages()
	if got, want := msgs[len(msgs)-1].Content, "second answer"; got != want {
		t.Errorf("regenerated content = %q, want %q", got, want)
	}
}

func TestRegenerateWithEmptyHistory(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	if err := e.Regenerate(context.Background()); !errors.Is(err, ErrNothingToRegenerate) {
		t.Errorf("Regenerate() error = %v, want ErrNothingToRegenerate", err)
	}
}

func TestEditLastUserMessageTruncatesAndRedispatches(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	if err := e.Send(context.Background(), "original", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "old answer"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	tr.nextID = "stream-2"
	if err := e.EditLastUserMessage(context.Background(), "edited"); err != nil {
		t.Fatalf("EditLastUserMessage() error = %v", err)
	}

	msgs := e.Messages()
	if got := len(msgs); got != 1 {
		t.Fatalf("len(messages) after edit = %d, want 1", got)
	}
	if got, want := msgs[0].Content, "edited"; got != want {
		t.Errorf("edited content = %q, want %q", got, want)
	}

	req := tr.requests[len(tr.requests)-1]
	last := req.Messages[len(req.Messages)-1]
	if got, want := last.Content, "edited"; got != want {
		t.Errorf("re-dispatched content = %q, want %q", got, want)
	}
}

func TestEditWithNoUserMessage(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	if err := e.EditLastUserMessage(context.Background(), "x"); !errors.Is(err, ErrNothingToEdit) {
		t.Errorf("EditLastUserMessage() error = %v, want ErrNothingToEdit", err)
	}
}

func TestUpdatesDeliveredInOrder(t *testing.T) {
	var kinds []UpdateKind
	cfg := Config{OnUpdate: func(u Update) { kinds = append(kinds, u.Kind) }}
	e, tr := newTestEngine(t, cfg)

	if err := e.Send(context.Background(), "hi", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventStart})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventChunk, Delta: "a"})
	tr.sink(model.Event{StreamID: "stream-1", Kind: model.EventEnd, Done: true})

	want := []UpdateKind{
		UpdateMessage, // user message appended
		UpdateStatus,  // starting
		UpdateStatus,  // streaming
		UpdateDelta,   // "a"
		UpdateMessage, // assistant committed
		UpdateStatus,  // idle
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d updates %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("update[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestOnParticipantsHookFires(t *testing.T) {
	personas := &fakePersonas{byID: map[string]model.Persona{
		"p1": {ID: "p1", Name: "A", SystemPrompt: "a"},
	}}
	var seen [][]string
	e, _ := newTestEngine(t, Config{
		Personas:       personas,
		OnParticipants: func(ids []string) { seen = append(seen, ids) },
	})

	err := e.Send(context.Background(), "hi", SendOptions{MentionedPersonaIDs: []string{"p1"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(seen) != 1 || len(seen[0]) != 1 || seen[0][0] != "p1" {
		t.Errorf("participant hook saw %v, want [[p1]]", seen)
	}
}

func TestRetrievedContextFlowsIntoRequestAndMetadata(t *testing.T) {
	e, tr := newTestEngine(t, Config{})

	err := e.Send(context.Background(), "what does the doc say", SendOptions{
		RetrievedContext: []compose.Snippet{{Source: "notes.md", Text: "the doc says hello"}},
		RAGProvenance:    "library:notes",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := tr.requests[0]
	if len(req.Messages) == 0 || req.Messages[0].Role != model.RoleSystem {
		t.Fatal("retrieved context produced no system message")
	}
	if !strings.Contains(req.Messages[0].Content, "the doc says hello") {
		t.Errorf("system message missing retrieved snippet: %q", req.Messages[0].Content)
	}

	md, ok := e.MetadataAt(0)
	if !ok {
		t.Fatal("no metadata attached for retrieved context")
	}
	if got, want := md.RAGProvenance, "library:notes"; got != want {
		t.Errorf("RAGProvenance = %q, want %q", got, want)
	}
}

func TestRestoreRejectedWhileActive(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	if err := e.Send(context.Background(), "hi", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	err := e.Restore([]model.Message{{Role: model.RoleUser, Content: "x"}}, nil)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Restore() while active error = %v, want ErrBusy", err)
	}
}

type failingCatalog struct {
	err error
}

func (f *failingCatalog) ToolsForChat(_ context.Context) ([]gate.CatalogEntry, error) {
	return nil, f.err
}

type failingResolver struct {
	err error
}

func (f *failingResolver) GetByID(_ context.Context, id string) (Attachment, error) {
	return Attachment{}, f.err
}

func TestCatalogFailureFoldsToolResolutionErrorIntoNotice(t *testing.T) {
	e, tr := newTestEngine(t, Config{
		ToolingEnabled: true,
		Tools:          &failingCatalog{err: errors.New("server gone")},
	})

	if err := e.Send(context.Background(), "hello", SendOptions{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := tr.requests[0]
	if len(req.Messages) == 0 || req.Messages[0].Role != model.RoleSystem {
		t.Fatal("catalog failure produced no system notice")
	}
	want := (&ToolResolutionError{Err: errors.New("server gone")}).Error()
	if !strings.Contains(req.Messages[0].Content, want) {
		t.Errorf("system message %q missing %q", req.Messages[0].Content, want)
	}
	if len(req.Tools) != 0 {
		t.Errorf("catalog failure attached %d tools, want 0", len(req.Tools))
	}
}

func TestFailingAttachmentResolverDegradesGracefully(t *testing.T) {
	e, tr := newTestEngine(t, Config{
		Attachments: &failingResolver{err: errors.New("db closed")},
	})

	err := e.Send(context.Background(), "question", SendOptions{AttachmentIDs: []string{"att-1"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := tr.requests[0]
	for _, msg := range req.Messages {
		if strings.Contains(msg.Content, "Attached document") {
			t.Errorf("unresolvable attachment leaked into request: %q", msg.Content)
		}
	}
	if md, ok := e.MetadataAt(0); ok && len(md.AttachmentIDs) != 0 {
		t.Errorf("metadata carries unresolved attachment ids: %v", md.AttachmentIDs)
	}
}

func TestResolutionErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	var aerr error = &AttachmentResolutionError{ID: "att-1", Err: cause}
	if !errors.Is(aerr, cause) {
		t.Error("AttachmentResolutionError does not unwrap to its cause")
	}
	var target *AttachmentResolutionError
	if !errors.As(aerr, &target) || target.ID != "att-1" {
		t.Errorf("errors.As failed for AttachmentResolutionError: %+v", target)
	}

	var terr error = &ToolResolutionError{Err: cause}
	if !errors.Is(terr, cause) {
		t.Error("ToolResolutionError does not unwrap to its cause")
	}
}
