// Package agent composes the bot's memory subsystems into one unit: a
// store, a thought journal, a request ledger, a context document, an
// action log, and an optional coupled external memory, all rooted under
// a single working directory. Every dependency is an explicit field, so
// multiple bots can coexist in one process.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ctavolazzi/bot-memory/internal/contextdoc"
	"github.com/ctavolazzi/bot-memory/internal/coupler"
	"github.com/ctavolazzi/bot-memory/internal/llm"
	"github.com/ctavolazzi/bot-memory/internal/model"
	"github.com/ctavolazzi/bot-memory/internal/safety"
	"github.com/ctavolazzi/bot-memory/internal/store"
)

// dbName is the bot's relational database inside its working directory.
const dbName = "bot_data.db"

// Options configure a Bot.
type Options struct {
	// WorkingDir is the bot's own directory; the database, context
	// document, and snapshot history live here. Required.
	WorkingDir string
	// WorkspaceRoot is the tree the bot may touch without permission.
	// Defaults to WorkingDir.
	WorkspaceRoot string
	// Config holds tunables; zero fields fall back to defaults.
	Config Config
	// Generator is the generation collaborator. Required.
	Generator llm.Generator
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Bot is the composition root.
type Bot struct {
	cfg   Config
	dir   string
	store *store.SQLiteStore
	gate  *safety.Gate
	doc   *contextdoc.Manager
	ext   *coupler.Coupler
	gen   llm.Generator
	log   *zap.Logger
	banks map[model.Scope]coupler.Bank
}

// New builds a Bot rooted at opts.WorkingDir, creating the directory,
// database, and context document as needed.
func New(ctx context.Context, opts Options) (*Bot, error) {
	if opts.WorkingDir == "" {
		return nil, fmt.Errorf("working directory is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	cfg := applyDefaults(opts.Config)

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(opts.WorkingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working dir: %w", err)
	}

	st, err := store.NewSQLiteStore(filepath.Join(opts.WorkingDir, dbName))
	if err != nil {
		return nil, err
	}

	root := opts.WorkspaceRoot
	if root == "" {
		root = opts.WorkingDir
	}
	gate, err := safety.NewGate(root, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	doc, err := contextdoc.NewManager(ctx, opts.WorkingDir, contextdoc.Config{
		MaxBytes:  cfg.Context.MaxBytes,
		Retention: cfg.Context.Retention,
		Title:     cfg.Name,
	}, st, st, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	ext := coupler.New(gate, log)

	b := &Bot{
		cfg:   cfg,
		dir:   opts.WorkingDir,
		store: st,
		gate:  gate,
		doc:   doc,
		ext:   ext,
		gen:   opts.Generator,
		log:   log,
	}
	b.banks = map[model.Scope]coupler.Bank{
		model.ScopeInternal: internalBank{st: st},
		model.ScopeExternal: ext,
	}
	return b, nil
}

// Close releases the bot's stores. The external coupling, if any, is
// detached first.
func (b *Bot) Close() error {
	b.ext.Uncouple()
	return b.store.Close()
}

// Store exposes the relational store.
func (b *Bot) Store() *store.SQLiteStore { return b.store }

// Context exposes the context document manager.
func (b *Bot) Context() *contextdoc.Manager { return b.doc }

// External exposes the external memory coupler.
func (b *Bot) External() *coupler.Coupler { return b.ext }

// Gate exposes the safety gate.
func (b *Bot) Gate() *safety.Gate { return b.gate }

// Config returns the effective configuration.
func (b *Bot) Config() Config { return b.cfg }

// Remember stores a value in the given memory scope.
func (b *Bot) Remember(ctx context.Context, scope model.Scope, key string, value any) error {
	bank, ok := b.banks[scope]
	if !ok {
		return fmt.Errorf("unknown memory scope %q", scope)
	}
	if err := bank.Store(ctx, key, value); err != nil {
		return err
	}
	b.store.LogAction(ctx, "memory_write", map[string]any{"scope": scope, "key": key})
	return nil
}

// Recall retrieves a value from the given memory scope.
func (b *Bot) Recall(ctx context.Context, scope model.Scope, key string) (*model.MemoryEntry, error) {
	bank, ok := b.banks[scope]
	if !ok {
		return nil, fmt.Errorf("unknown memory scope %q", scope)
	}
	entry, err := bank.Retrieve(ctx, key)
	if err != nil {
		return nil, err
	}
	b.store.LogAction(ctx, "memory_read", map[string]any{"scope": scope, "key": key})
	return entry, nil
}

// internalBank adapts the bot's own store to the Bank capability.
type internalBank struct {
	st *store.SQLiteStore
}

func (b internalBank) Store(ctx context.Context, key string, value any) error {
	_, err := b.st.PutMemory(ctx, model.ScopeInternal, key, value)
	return err
}

func (b internalBank) Retrieve(ctx context.Context, key string) (*model.MemoryEntry, error) {
	return b.st.GetMemory(ctx, model.ScopeInternal, key)
}

// Result is the outcome of one Process call.
type Result struct {
	Response    string `json:"response"`
	RequestHash string `json:"request_hash"`
	Attempt     int    `json:"attempt"`
	Reused      bool   `json:"reused,omitempty"`
}

// Process handles one prompt: the ledger is consulted first, and a
// request whose latest attempt was accepted (or that exhausted its
// attempt budget) is answered from the ledger without calling the
// generator. Otherwise the payload is assembled — with the context
// document appended unless excluded — and sent to the generator; the
// attempt, a thought, and an action entry are recorded either way.
// Generation failures are noticed, recorded, and returned wrapped in
// model.ErrGeneration.
func (b *Bot) Process(ctx context.Context, prompt string, includeContext bool) (*Result, error) {
	rec, err := b.store.RecordRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	attemptNew, err := b.store.ShouldAttemptNew(ctx, rec.Hash, b.cfg.Ledger.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if !attemptNew {
		latest, err := b.store.LatestAttempt(ctx, rec.Hash)
		if err == nil {
			b.store.LogAction(ctx, "reuse_response", map[string]any{
				"request_hash": rec.Hash,
				"attempt":      latest.AttemptNumber,
			})
			b.log.Info("reusing recorded response",
				zap.String("request_hash", rec.Hash),
				zap.Int("attempt", latest.AttemptNumber))
			return &Result{
				Response:    latest.ResponseText,
				RequestHash: rec.Hash,
				Attempt:     latest.AttemptNumber,
				Reused:      true,
			}, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
	}

	payload := prompt
	if includeContext {
		current, err := b.doc.GetForPrompt(ctx)
		if err != nil {
			return nil, err
		}
		payload = prompt + "\n\n---\n\nCurrent Context:\n" + current
	}

	b.store.LogAction(ctx, "api_call", map[string]any{
		"prompt":          snippet(prompt),
		"model":           b.cfg.Model,
		"include_context": includeContext,
	})
	b.log.Debug("generating",
		zap.String("request_hash", rec.Hash),
		zap.String("payload_hash", store.Digest(payload)),
		zap.Int("payload_bytes", len(payload)))

	text, genErr := b.gen.Generate(ctx, payload)
	if genErr != nil {
		b.store.LogAction(ctx, "api_error", map[string]any{
			"request_hash": rec.Hash,
			"error":        genErr.Error(),
		})
		b.store.RecordThought(ctx, "error",
			fmt.Sprintf("generation failed for request %s: %v", rec.Hash, genErr), nil, nil)
		b.log.Warn("generation failed", zap.String("request_hash", rec.Hash), zap.Error(genErr))
		if errors.Is(genErr, model.ErrGeneration) {
			return nil, genErr
		}
		return nil, fmt.Errorf("%w: %v", model.ErrGeneration, genErr)
	}

	attempt, err := b.store.RecordAttempt(ctx, rec.Hash, text, true)
	if err != nil {
		return nil, err
	}
	b.store.RecordThought(ctx, "processing", "processed prompt: "+snippet(prompt), nil, nil)
	b.store.LogAction(ctx, "process", map[string]any{
		"request_hash":  rec.Hash,
		"attempt":       attempt.AttemptNumber,
		"response_hash": store.Digest(text),
	})

	return &Result{
		Response:    text,
		RequestHash: rec.Hash,
		Attempt:     attempt.AttemptNumber,
	}, nil
}

// snippet bounds log payloads to the first 100 runes.
func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= 100 {
		return s
	}
	return string(runes[:100]) + "..."
}
