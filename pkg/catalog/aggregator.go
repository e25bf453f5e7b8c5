// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

// maxParallelListings bounds concurrent list_tools requests during a build.
const maxParallelListings = 10

// ChangeListener is told about every new snapshot.
type ChangeListener func(entries []Entry)

// snapshot is an immutable view of the catalog.
type snapshot struct {
	// servers holds the tools last listed from each server.
	servers map[string][]protocol.Tool
	entries map[string]Entry
	sorted  []Entry
}

// Aggregator maintains the tool catalog.
type Aggregator struct {
	source    Source
	separator string

	// mu serializes rebuilds and built-in registration.
	mu       sync.Mutex
	builtins map[string]BuiltinTool
	current  atomic.Pointer[snapshot]

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSeparator overrides the namespace separator.
func WithSeparator(sep string) Option {
	return func(a *Aggregator) {
		if sep != "" {
			a.separator = sep
		}
	}
}

// NewAggregator creates an empty catalog over source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:    source,
		separator: config.DefaultSeparator,
		builtins:  make(map[string]BuiltinTool),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.current.Store(a.compose(map[string][]protocol.Tool{}))
	return a
}

// Separator returns the namespace separator.
func (a *Aggregator) Separator() string {
	return a.separator
}

// QualifiedName returns the catalog name of a server's tool.
func (a *Aggregator) QualifiedName(server, tool string) string {
	return server + a.separator + tool
}

// Register adds built-in tools. A name containing the separator, or one that
// is already used by another built-in or an external tool, is rejected with
// ErrBuiltinCollision and nothing is registered.
func (a *Aggregator) Register(tools ...BuiltinTool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.current.Load()
	pending := make(map[string]BuiltinTool, len(tools))
	for _, bt := range tools {
		name := bt.Tool.Name
		switch {
		case name == "":
			return fmt.Errorf("%w: built-in tool without a name", ErrBuiltinCollision)
		case bt.Handler == nil:
			return fmt.Errorf("built-in tool %s has no handler", name)
		case strings.Contains(name, a.separator):
			return fmt.Errorf("%w: %s contains the namespace separator %q", ErrBuiltinCollision, name, a.separator)
		}
		if _, dup := a.builtins[name]; dup {
			return fmt.Errorf("%w: %s is already registered", ErrBuiltinCollision, name)
		}
		if _, dup := pending[name]; dup {
			return fmt.Errorf("%w: %s is registered twice", ErrBuiltinCollision, name)
		}
		if e, taken := cur.entries[name]; taken && !e.Builtin {
			return fmt.Errorf("%w: %s is provided by server %s", ErrBuiltinCollision, name, e.Server)
		}
		pending[name] = bt
	}

	maps.Copy(a.builtins, pending)
	a.swapLocked(cur.servers)
	return nil
}

// OnChange registers a listener for catalog changes.
func (a *Aggregator) OnChange(l ChangeListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	a.listeners = append(a.listeners, l)
}

// BuildCatalog lists the tools of every Ready server in parallel and replaces
// the whole snapshot. A server whose listing fails contributes no entries.
func (a *Aggregator) BuildCatalog(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	servers := a.source.ReadyServers()
	logger.Debugw("building tool catalog", "servers", len(servers))

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string][]protocol.Tool, len(servers))
	)
	g.SetLimit(maxParallelListings)
	for _, srv := range servers {
		g.Go(func() error {
			tools, err := srv.ListTools(ctx)
			if err != nil {
				logger.Warnw("failed to list tools", "server", srv.Name(), "error", err)
				return nil
			}
			mu.Lock()
			results[srv.Name()] = tools
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	a.swapLocked(results)
	return nil
}

// RefreshServer rebuilds the entries of one server. A server that is gone or
// not Ready loses its entries. It is the refresh callback of the connection
// manager.
func (a *Aggregator) RefreshServer(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	servers := maps.Clone(a.current.Load().servers)

	srv, ok := a.source.Server(name)
	if !ok || !srv.Ready() {
		if _, had := servers[name]; had {
			delete(servers, name)
			logger.Infow("removed tool server from catalog", "server", name)
			a.swapLocked(servers)
		}
		return nil
	}

	tools, err := srv.ListTools(ctx)
	if err != nil {
		delete(servers, name)
		a.swapLocked(servers)
		return fmt.Errorf("list tools of %s: %w", name, err)
	}
	servers[name] = tools
	a.swapLocked(servers)
	logger.Debugw("refreshed tool server entries", "server", name, "tools", len(tools))
	return nil
}

// Tools returns the current entries sorted by qualified name.
func (a *Aggregator) Tools() []Entry {
	return append([]Entry(nil), a.current.Load().sorted...)
}

// Lookup returns the entry with the given qualified name.
func (a *Aggregator) Lookup(name string) (Entry, bool) {
	e, ok := a.current.Load().entries[name]
	return e, ok
}

// Definitions returns the catalog in the shape offered to the model.
func (a *Aggregator) Definitions() []chat.ToolDefinition {
	entries := a.current.Load().sorted
	out := make([]chat.ToolDefinition, 0, len(entries))
	for _, e := range entries {
		out = append(out, chat.ToolDefinition{
			Name:        e.QualifiedName,
			Description: e.Tool.Description,
			Parameters:  e.Tool.InputSchema,
		})
	}
	return out
}

// CallTool invokes the tool with the given qualified name. Every failure to
// run the tool is reported as an error result; the returned error is only
// ever the context's error.
func (a *Aggregator) CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error) {
	entry, ok := a.Lookup(name)
	if !ok {
		return protocol.ErrorResult("%v: %s", ErrToolNotFound, name), nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if problems := validate(entry.schema, args); len(problems) > 0 {
		return protocol.ErrorResult("invalid arguments for %s: %s", name, strings.Join(problems, "; ")), nil
	}

	var (
		result *protocol.CallToolResult
		err    error
	)
	if entry.Builtin {
		result, err = entry.handler(ctx, args)
	} else {
		result, err = a.callServer(ctx, entry, args)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Debugw("tool call failed", "tool", name, "error", err)
		return protocol.ErrorResult("tool %s failed: %v", name, err), nil
	}
	if result == nil {
		result = &protocol.CallToolResult{Content: []protocol.Content{}}
	}
	return result, nil
}

func (a *Aggregator) callServer(ctx context.Context, entry Entry, args map[string]any) (*protocol.CallToolResult, error) {
	srv, ok := a.source.Server(entry.Server)
	if !ok || !srv.Ready() {
		return nil, fmt.Errorf("tool server %s is not available", entry.Server)
	}
	return srv.CallTool(ctx, entry.Tool.Name, args)
}

// swapLocked composes and publishes a snapshot. a.mu must be held.
func (a *Aggregator) swapLocked(servers map[string][]protocol.Tool) {
	snap := a.compose(servers)
	a.current.Store(snap)

	a.listenersMu.RLock()
	listeners := append([]ChangeListener(nil), a.listeners...)
	a.listenersMu.RUnlock()
	for _, l := range listeners {
		l(append([]Entry(nil), snap.sorted...))
	}
}

func (a *Aggregator) compose(servers map[string][]protocol.Tool) *snapshot {
	snap := &snapshot{
		servers: servers,
		entries: make(map[string]Entry, len(a.builtins)),
	}
	for name, bt := range a.builtins {
		snap.entries[name] = Entry{
			QualifiedName: name,
			Builtin:       true,
			Tool:          bt.Tool,
			schema:        compileSchema(name, bt.Tool.InputSchema),
			handler:       bt.Handler,
		}
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, server := range names {
		for _, tool := range servers[server] {
			qualified := a.QualifiedName(server, tool.Name)
			if existing, taken := snap.entries[qualified]; taken {
				if existing.Builtin {
					logger.Warnw("skipping tool shadowed by a built-in", "server", server, "tool", tool.Name)
				} else {
					logger.Warnw("skipping duplicate tool", "server", server, "tool", tool.Name)
				}
				continue
			}
			snap.entries[qualified] = Entry{
				QualifiedName: qualified,
				Server:        server,
				Tool:          tool,
				schema:        compileSchema(qualified, tool.InputSchema),
			}
		}
	}

	snap.sorted = make([]Entry, 0, len(snap.entries))
	for _, e := range snap.entries {
		snap.sorted = append(snap.sorted, e)
	}
	sort.Slice(snap.sorted, func(i, j int) bool {
		return snap.sorted[i].QualifiedName < snap.sorted[j].QualifiedName
	})
	return snap
}

// compileSchema compiles a tool's input schema. A schema that does not
// compile disables validation for that tool.
func compileSchema(name string, schema map[string]any) *gojsonschema.Schema {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		logger.Warnw("ignoring invalid input schema", "tool", name, "error", err)
		return nil
	}
	return compiled
}

func validate(schema *gojsonschema.Schema, args map[string]any) []string {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}
