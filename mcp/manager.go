// Package mcp connects the chat to MCP tool servers over stdio and exposes
// their tools as a permission-checked catalog.
package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"blackia/config"
	"blackia/gate"
)

const protocolVersion = "2025-06-18"

// ServerConfig describes one MCP server to launch.
type ServerConfig struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string

	// RequiredPermissions are the permission keys the user must grant before
	// this server's tools may be attached to a request. Tools from a server
	// with ungranted permissions still appear in the catalog, disabled, so
	// the notice can explain what is missing.
	RequiredPermissions []string
}

type server struct {
	cfg    ServerConfig
	client *mcpclient.Client
	tools  []mcptypes.Tool
}

// Manager launches MCP servers, aggregates their tools and answers catalog
// queries. It implements the engine's ToolCatalog.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*server
	granted map[string]bool
}

func NewManager() *Manager {
	return &Manager{
		servers: make(map[string]*server),
		granted: make(map[string]bool),
	}
}

// StartServer launches the server process, initializes the MCP session and
// caches its tool list.
func (m *Manager) StartServer(ctx context.Context, cfg ServerConfig) error {
	m.mu.Lock()
	if _, exists := m.servers[cfg.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("server %s already running", cfg.ID)
	}
	m.mu.Unlock()

	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	c, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return fmt.Errorf("failed to start server %s: %w", cfg.ID, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "BlackIA",
				Version: "1.0.0",
			},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("failed to initialize server %s: %w", cfg.ID, err)
	}

	toolsResult, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Server %s up with %d tools", cfg.ID, len(toolsResult.Tools))
	}

	m.mu.Lock()
	m.servers[cfg.ID] = &server{cfg: cfg, client: c, tools: toolsResult.Tools}
	m.mu.Unlock()
	return nil
}

// StopServer shuts one server down and drops its tools from the catalog.
func (m *Manager) StopServer(ctx context.Context, id string) error {
	m.mu.Lock()
	srv, exists := m.servers[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("server %s not found", id)
	}
	delete(m.servers, id)
	m.mu.Unlock()

	return closeWithTimeout(ctx, srv, id)
}

// Shutdown stops every running server. Individual close failures are logged
// and do not abort the rest.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	servers := m.servers
	m.servers = make(map[string]*server)
	m.mu.Unlock()

	var firstErr error
	for id, srv := range servers {
		if err := closeWithTimeout(ctx, srv, id); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Shutdown of %s failed: %v", id, err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func closeWithTimeout(ctx context.Context, srv *server, id string) error {
	closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.client.Close() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close server %s: %w", id, err)
		}
		return nil
	case <-closeCtx.Done():
		return fmt.Errorf("timed out closing server %s", id)
	}
}

// Grant marks a permission key as granted by the user.
func (m *Manager) Grant(permission string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted[permission] = true
}

// Revoke withdraws a previously granted permission key.
func (m *Manager) Revoke(permission string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.granted, permission)
}

// GrantedPermissions returns the granted keys in sorted order.
func (m *Manager) GrantedPermissions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.granted))
	for k := range m.granted {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToolsForChat returns every known tool with its permission verdict. Servers
// are visited in sorted id order so the catalog is deterministic.
func (m *Manager) ToolsForChat(_ context.Context) ([]gate.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var entries []gate.CatalogEntry
	for _, id := range ids {
		srv := m.servers[id]
		var missing []string
		for _, perm := range srv.cfg.RequiredPermissions {
			if !m.granted[perm] {
				missing = append(missing, perm)
			}
		}
		for _, tool := range srv.tools {
			entries = append(entries, gate.CatalogEntry{
				Tool:               tool,
				Enabled:            len(missing) == 0,
				MissingPermissions: missing,
			})
		}
	}
	return entries, nil
}

// CallTool executes a tool by name on whichever server provides it.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	m.mu.RLock()
	var target *server
	for _, srv := range m.servers {
		for _, tool := range srv.tools {
			if tool.Name == name {
				target = srv
				break
			}
		}
		if target != nil {
			break
		}
	}
	m.mu.RUnlock()

	if target == nil {
		return nil, fmt.Errorf("tool %s not found", name)
	}

	req := mcptypes.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return target.client.CallTool(ctx, req)
}
