// Package coupler manages the attachment of an external key/value store
// outside the bot's working directory. Coupling is session state, not
// ownership: the external store's lifecycle is independent of the bot's.
package coupler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ctavolazzi/bot-memory/internal/model"
	"github.com/ctavolazzi/bot-memory/internal/safety"
	"github.com/ctavolazzi/bot-memory/internal/store"
)

// externalDBName is the database file created inside a coupled directory.
const externalDBName = "memory.db"

// Bank is the capability shared by the internal and external memory
// scopes: store a value under a key, retrieve it later.
type Bank interface {
	Store(ctx context.Context, key string, value any) error
	Retrieve(ctx context.Context, key string) (*model.MemoryEntry, error)
}

// Coupler holds at most one active coupling to an external store.
// Coupling state is process-local; two bots may each couple independently
// to the same directory.
type Coupler struct {
	gate *safety.Gate
	log  *zap.Logger

	mu   sync.Mutex
	path string
	ext  *store.SQLiteStore
}

// New returns an uncoupled Coupler.
func New(gate *safety.Gate, log *zap.Logger) *Coupler {
	return &Coupler{gate: gate, log: log}
}

// Couple attaches the external store rooted at dir. Directories inside
// the workspace are allowed unconditionally; outside directories need a
// covering grant, and absent one the call fails closed — recording a
// pending grant request when requestPermission is set.
func (c *Coupler) Couple(ctx context.Context, dir string, requestPermission bool) error {
	canonical, err := safety.Canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve external path: %w", err)
	}

	decision, err := c.gate.Authorize(ctx, canonical, safety.OpReadWrite, requestPermission)
	if err != nil {
		return err
	}
	switch decision {
	case safety.Allowed:
	case safety.PendingPermission:
		return fmt.Errorf("%s: grant request recorded: %w", canonical, model.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %w", canonical, model.ErrPermissionDenied)
	}

	ext, err := store.NewSQLiteStore(filepath.Join(canonical, externalDBName))
	if err != nil {
		return fmt.Errorf("open external store: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ext != nil {
		c.ext.Close()
	}
	c.path = canonical
	c.ext = ext
	c.log.Info("external memory coupled", zap.String("path", canonical))
	return nil
}

// Uncouple detaches the external store. It never fails and never deletes
// the backing files.
func (c *Coupler) Uncouple() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ext == nil {
		return
	}
	c.ext.Close()
	c.log.Info("external memory uncoupled", zap.String("path", c.path))
	c.path = ""
	c.ext = nil
}

// Coupled reports whether an external store is currently attached.
func (c *Coupler) Coupled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ext != nil
}

// Path returns the coupled directory, or "" when uncoupled.
func (c *Coupler) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Store writes to the coupled external store.
func (c *Coupler) Store(ctx context.Context, key string, value any) error {
	ext, err := c.current()
	if err != nil {
		return err
	}
	_, err = ext.PutMemory(ctx, model.ScopeExternal, key, value)
	return err
}

// Retrieve reads from the coupled external store.
func (c *Coupler) Retrieve(ctx context.Context, key string) (*model.MemoryEntry, error) {
	ext, err := c.current()
	if err != nil {
		return nil, err
	}
	return ext.GetMemory(ctx, model.ScopeExternal, key)
}

func (c *Coupler) current() (*store.SQLiteStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ext == nil {
		return nil, model.ErrNotCoupled
	}
	return c.ext, nil
}

// Status is the coupling state exposed to callers.
type Status struct {
	Coupled bool   `json:"coupled"`
	Path    string `json:"path,omitempty"`
}

// Status reports the current coupling state.
func (c *Coupler) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Coupled: c.ext != nil, Path: c.path}
}
