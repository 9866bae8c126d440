package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blackia/config"
	"blackia/engine"
	"blackia/mcp"
	"blackia/model"
	"blackia/provider"
	"blackia/storage"
	"blackia/websearch"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

type app struct {
	cfg           *config.Config
	conversations *storage.ConversationStorage
	personas      *storage.PersonaStorage
	attachments   *storage.AttachmentStorage
	search        *storage.SearchIndex
	mcpManager    *mcp.Manager
	eng           *engine.Engine
	current       *storage.Conversation

	// pendingAttachments are ids queued by /attach for the next message.
	pendingAttachments []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitDebugLog(cfg.DataDir())

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	fmt.Printf("blackia %s (%s) — model %s via %s\n", Version, License, cfg.DefaultModel, cfg.BackendProvider)
	fmt.Println("Type a message, @persona to mention, /help for commands.")

	a.repl()
}

func newApp(cfg *config.Config) (*app, error) {
	dataDir := cfg.DataDir()

	conversations, err := storage.NewConversationStorage(dataDir)
	if err != nil {
		return nil, fmt.Errorf("conversation storage: %w", err)
	}
	personas, err := storage.NewPersonaStorage(dataDir)
	if err != nil {
		return nil, fmt.Errorf("persona storage: %w", err)
	}
	attachments, err := storage.NewAttachmentStorage(dataDir)
	if err != nil {
		return nil, fmt.Errorf("attachment storage: %w", err)
	}

	creds, err := openCredentials(cfg, dataDir)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	backendKey, _ := creds.Get(cfg.BackendProvider)
	transport, err := provider.NewTransport(provider.Config{
		Type:    provider.MapBackendID(cfg.BackendProvider),
		BaseURL: cfg.BackendHost,
		APIKey:  backendKey,
		Model:   cfg.DefaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	mcpManager := mcp.NewManager()
	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, sc := range cfg.MCPServers {
		err := mcpManager.StartServer(startCtx, mcp.ServerConfig{
			ID:                  sc.ID,
			Command:             sc.Command,
			Args:                sc.Args,
			Env:                 sc.Env,
			RequiredPermissions: sc.Permissions,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MCP server %s failed to start: %v\n", sc.ID, err)
		}
	}

	var web engine.WebSearcher
	if cfg.WebSearch.Enabled {
		apiKey, _ := creds.Get(cfg.WebSearch.Provider)
		svc := websearch.NewService(websearch.ProviderConfig{
			ID:      cfg.WebSearch.Provider,
			Name:    cfg.WebSearch.Provider,
			Type:    websearch.ProviderType(cfg.WebSearch.Provider),
			APIKey:  apiKey,
			BaseURL: cfg.WebSearch.BaseURL,
		}, websearch.Options{})
		if cfg.WebSearch.CacheTTLMinutes > 0 {
			svc.SetCacheTTL(time.Duration(cfg.WebSearch.CacheTTLMinutes) * time.Minute)
		}
		web = &websearch.ChatSearcher{Service: svc}
	}

	a := &app{
		cfg:           cfg,
		conversations: conversations,
		personas:      personas,
		attachments:   attachments,
		search:        storage.NewSearchIndex(conversations),
		mcpManager:    mcpManager,
		current:       &storage.Conversation{Model: cfg.DefaultModel},
	}

	a.eng = engine.New(engine.Config{
		Transport:    transport,
		DefaultModel: cfg.DefaultModel,
		Settings: model.GenerationSettings{
			SystemPrompt:    cfg.Generation.SystemPrompt,
			Temperature:     cfg.Generation.Temperature,
			MaxTokens:       cfg.Generation.MaxTokens,
			TopP:            cfg.Generation.TopP,
			IncludeFewShots: cfg.Generation.IncludeFewShots,
		},
		ToolingEnabled: cfg.ToolsEnabled,
		Personas:       personas,
		Attachments:    attachments,
		Tools:          mcpManager,
		Web:            web,
		OnUpdate:       a.onUpdate,
		OnParticipants: a.onParticipants,
	})

	if lastID, err := conversations.LoadCurrentConversationID(); err == nil && lastID != "" {
		if conv, err := conversations.Load(lastID); err == nil {
			if err := a.eng.Restore(conv.Messages, conv.Metadata); err == nil {
				a.current = conv
				a.eng.BindPersona(conv.PersonaID)
				fmt.Printf("Resumed conversation %q (%d messages)\n", conv.Name, len(conv.Messages))
			}
		}
	}

	return a, nil
}

// openCredentials builds the credential store per the config's encryption
// method. With ssh_key the AES key is derived before loading so stored keys
// decrypt; a passphrase-protected SSH key reads BLACKIA_SSH_PASSPHRASE.
func openCredentials(cfg *config.Config, dataDir string) (*config.CredentialStore, error) {
	method := config.EncryptionMethod(cfg.Credentials.Encryption)
	if method == "" {
		method = config.EncryptionNone
	}

	creds := config.NewCredentialStore(method)
	if method == config.EncryptionSSHKey {
		keyPath := cfg.Credentials.SSHKeyPath
		if keyPath == "" {
			found := config.FindSSHKeys()
			if len(found) == 0 {
				return nil, fmt.Errorf("ssh_key encryption requires an SSH key; none found under ~/.ssh")
			}
			keyPath = found[0]
		}
		passphrase := []byte(os.Getenv("BLACKIA_SSH_PASSPHRASE"))
		if err := creds.UseSSHKey(keyPath, passphrase); err != nil {
			return nil, err
		}
	}

	if err := creds.Load(dataDir); err != nil {
		return nil, err
	}
	return creds, nil
}

func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.mcpManager.Shutdown(shutdownCtx); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("mcp shutdown: %v", err)
	}
	a.personas.Close()
	a.attachments.Close()
}

// onUpdate runs on the transport's event goroutine. Deltas go straight to
// stdout; committed messages are persisted as they land.
func (a *app) onUpdate(u engine.Update) {
	switch u.Kind {
	case engine.UpdateDelta:
		fmt.Print(u.Delta)
	case engine.UpdateMessage:
		if u.Message.Role == model.RoleAssistant || u.Message.Role == model.RoleSystem {
			fmt.Println()
		}
		a.persist()
	case engine.UpdateStatus:
		if u.Status == engine.StatusIdle {
			fmt.Print("> ")
		}
	}
}

func (a *app) onParticipants(ids []string) {
	for _, id := range ids {
		if err := a.personas.IncrementUsage(id); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("usage increment for %s failed: %v", id, err)
		}
	}
}

func (a *app) persist() {
	a.current.Messages = a.eng.Messages()
	a.current.Metadata = a.eng.Metadata()
	a.current.PersonaID = a.eng.BoundPersona()
	if err := a.conversations.Save(a.current); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: save failed: %v\n", err)
		return
	}
	if err := a.conversations.SaveCurrentConversationID(a.current.ID); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("current pointer save failed: %v", err)
	}
}

func (a *app) repl() {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !a.command(ctx, line) {
				return
			}
			if a.eng.Status() == engine.StatusIdle {
				fmt.Print("> ")
			}
			continue
		}

		mentions, content := parseMentions(line)
		attachmentIDs := a.pendingAttachments
		a.pendingAttachments = nil
		err := a.eng.Send(ctx, content, engine.SendOptions{
			MentionedPersonaIDs:    mentions,
			IncludeMentionFewShots: a.cfg.Generation.IncludeFewShots,
			AttachmentIDs:          attachmentIDs,
			WebSearch:              a.cfg.WebSearch.Enabled,
		})
		if err != nil {
			a.pendingAttachments = attachmentIDs
			a.report(err)
			fmt.Print("> ")
		}
		// The stream prints asynchronously; the prompt returns on idle.
	}
}

// command handles a slash command; returns false to exit.
func (a *app) command(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Println(`/stop            cancel the live generation
/regen           regenerate the last assistant message
/edit <text>     replace the last user message and resend
/persona <id>    bind a persona ("" unbinds)
/attach <file>   attach a text file to the next message
/search <query>  search across saved conversations
/grant <perm>    grant an MCP permission
/new             start a new conversation
/list            list saved conversations
/load <id>       load a conversation
/quit            exit`)
	case "/stop":
		if err := a.eng.Stop(ctx); err != nil {
			a.report(err)
		}
	case "/regen":
		if err := a.eng.Regenerate(ctx); err != nil {
			a.report(err)
		}
	case "/edit":
		if err := a.eng.EditLastUserMessage(ctx, arg); err != nil {
			a.report(err)
		}
	case "/persona":
		a.eng.BindPersona(arg)
		if arg == "" {
			fmt.Println("Persona unbound.")
		} else {
			fmt.Printf("Bound persona %s.\n", arg)
		}
	case "/attach":
		if arg == "" {
			fmt.Println("Usage: /attach <file>")
			break
		}
		data, err := os.ReadFile(config.ExpandPath(arg))
		if err != nil {
			a.report(err)
			break
		}
		mimeType := mime.TypeByExtension(filepath.Ext(arg))
		if mimeType == "" {
			mimeType = "text/plain"
		}
		id, err := a.attachments.Save(filepath.Base(arg), mimeType, string(data))
		if err != nil {
			a.report(err)
			break
		}
		a.pendingAttachments = append(a.pendingAttachments, id)
		fmt.Printf("Attached %s (%d bytes); it will accompany your next message.\n", filepath.Base(arg), len(data))
	case "/search":
		if arg == "" {
			fmt.Println("Usage: /search <query>")
			break
		}
		matches, err := a.search.SearchAllConversations(arg)
		if err != nil {
			a.report(err)
			break
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			break
		}
		for _, m := range matches {
			fmt.Printf("%s  [%s] %s: %s\n", m.ConversationID, m.ConversationName, m.Role, m.Preview)
		}
	case "/grant":
		a.mcpManager.Grant(arg)
		fmt.Printf("Granted %s.\n", arg)
	case "/new":
		if err := a.eng.Clear(); err != nil {
			a.report(err)
			break
		}
		a.current = &storage.Conversation{Model: a.cfg.DefaultModel}
	case "/list":
		metas, err := a.conversations.List()
		if err != nil {
			a.report(err)
			break
		}
		for _, m := range metas {
			fmt.Printf("%s  %s  (%d messages)\n", m.ID, m.Name, m.MessageCount)
		}
	case "/load":
		conv, err := a.conversations.Load(arg)
		if err != nil {
			a.report(err)
			break
		}
		if err := a.eng.Restore(conv.Messages, conv.Metadata); err != nil {
			a.report(err)
			break
		}
		a.current = conv
		a.eng.BindPersona(conv.PersonaID)
		fmt.Printf("Loaded %q (%d messages)\n", conv.Name, len(conv.Messages))
	default:
		fmt.Printf("Unknown command %s (try /help)\n", cmd)
	}
	return true
}

func (a *app) report(err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		fmt.Println("A generation is already running; /stop it first.")
	case errors.Is(err, engine.ErrNothingToRegenerate):
		fmt.Println("Nothing to regenerate.")
	case errors.Is(err, engine.ErrNothingToEdit):
		fmt.Println("No user message to edit.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// parseMentions extracts leading @persona tokens from the message.
func parseMentions(line string) ([]string, string) {
	var mentions []string
	rest := line
	for {
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, "@") {
			break
		}
		token, remainder, _ := strings.Cut(rest, " ")
		mentions = append(mentions, strings.TrimPrefix(token, "@"))
		rest = remainder
	}
	return mentions, strings.TrimSpace(rest)
}
