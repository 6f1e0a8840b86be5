// Package contextdoc manages the bot's single evolving context document:
// a markdown file with named sections, a hard byte budget enforced by
// synchronous trimming, and a snapshot history of everything a trim
// discards.
package contextdoc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	docName    = "context.md"
	historyDir = "context_history"

	// headerMarker separates the identity block from the trimmable body.
	// Content before the marker survives every trim.
	headerMarker = "\n---\n"

	defaultMaxBytes  = 16 * 1024
	defaultRetention = 5
)

// Config bounds the context document.
type Config struct {
	MaxBytes  int    // encoded document size ceiling; default 16 KiB
	Retention int    // snapshots kept; oldest pruned first; default 5
	Title     string // used when seeding a fresh document
}

// Locker serializes the read-modify-write-trim-snapshot sequence across
// processes sharing the working directory. *store.SQLiteStore satisfies it.
type Locker interface {
	WithContextLock(ctx context.Context, fn func() error) error
}

// ActionRecorder receives an audit entry for every document mutation.
type ActionRecorder interface {
	LogAction(ctx context.Context, action string, details any) error
}

// Manager owns the context document under one working directory.
// The size invariant holds after every mutating call returns: the
// encoded document never exceeds MaxBytes.
type Manager struct {
	docPath   string
	histDir   string
	maxBytes  int
	retention int
	locker    Locker
	actions   ActionRecorder
	log       *zap.Logger

	mu sync.Mutex
}

// NewManager builds a manager rooted at dir and seeds a default document
// if none exists. actions may be nil.
func NewManager(ctx context.Context, dir string, cfg Config, locker Locker, actions ActionRecorder, log *zap.Logger) (*Manager, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	m := &Manager{
		docPath:   filepath.Join(dir, docName),
		histDir:   filepath.Join(dir, historyDir),
		maxBytes:  cfg.MaxBytes,
		retention: cfg.Retention,
		locker:    locker,
		actions:   actions,
		log:       log,
	}

	if err := os.MkdirAll(m.histDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	if _, err := os.Stat(m.docPath); os.IsNotExist(err) {
		if err := m.mutate(ctx, "context_init", func(string) (string, error) {
			return defaultDocument(cfg.Title), nil
		}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// MaxBytes returns the configured size ceiling.
func (m *Manager) MaxBytes() int {
	return m.maxBytes
}

// Get returns the current document content.
func (m *Manager) Get() (string, error) {
	b, err := os.ReadFile(m.docPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read context: %w", err)
	}
	return string(b), nil
}

// GetForPrompt returns the document for inclusion in an outgoing payload.
// A document pushed over the limit by an external edit is snapshotted and
// trimmed first, so the returned content always fits the budget.
func (m *Manager) GetForPrompt(ctx context.Context) (string, error) {
	content, err := m.Get()
	if err != nil {
		return "", err
	}
	if len(content) <= m.maxBytes {
		return content, nil
	}

	if err := m.mutate(ctx, "auto_trim", func(current string) (string, error) {
		return current, nil
	}); err != nil {
		return "", err
	}
	return m.Get()
}

// Update replaces the entire document.
func (m *Manager) Update(ctx context.Context, content string) error {
	return m.mutate(ctx, "full_update", func(string) (string, error) {
		return content, nil
	})
}

// Append concatenates text onto the end of the document, separated by a
// blank line.
func (m *Manager) Append(ctx context.Context, text string) error {
	return m.mutate(ctx, "append", func(current string) (string, error) {
		current = strings.TrimRight(current, "\n")
		if current == "" {
			return text, nil
		}
		return current + "\n\n" + text, nil
	})
}

// UpdateSection replaces the body of the named section, creating the
// section at the end of the document if absent. Other sections are
// preserved verbatim.
func (m *Manager) UpdateSection(ctx context.Context, name, text string) error {
	return m.mutate(ctx, "section_update", func(current string) (string, error) {
		return setSection(current, name, text), nil
	})
}

// AppendSection appends text to the named section's body, creating the
// section if absent.
func (m *Manager) AppendSection(ctx context.Context, name, text string) error {
	return m.mutate(ctx, "section_append", func(current string) (string, error) {
		return appendToSection(current, name, text), nil
	})
}

// mutate runs one read-modify-write-trim-snapshot sequence under both the
// in-process mutex and the cross-process lock. A crash mid-sequence
// leaves either the previous document or the fully written new one; the
// document file itself is replaced atomically via rename.
func (m *Manager) mutate(ctx context.Context, action string, fn func(current string) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.locker.WithContextLock(ctx, func() error {
		current, err := m.Get()
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return m.write(ctx, action, next)
	})
}

func (m *Manager) write(ctx context.Context, action string, content string) error {
	normalized := refreshLastUpdated(normalizeContent(content))

	trimmed := false
	snapIndex := 0
	if len(normalized) > m.maxBytes {
		idx, err := m.saveSnapshot(normalized)
		if err != nil {
			return err
		}
		normalized = m.trim(normalized, idx)
		if err := m.pruneHistory(); err != nil {
			return err
		}
		trimmed = true
		snapIndex = idx
	}

	if err := atomicWrite(m.docPath, []byte(normalized)); err != nil {
		return fmt.Errorf("write context: %w", err)
	}

	m.log.Debug("context updated",
		zap.String("action", action),
		zap.Int("bytes", len(normalized)),
		zap.Bool("trimmed", trimmed))

	if m.actions != nil {
		details := map[string]any{"action": action, "bytes": len(normalized)}
		if trimmed {
			details["trimmed"] = true
			details["snapshot"] = snapIndex
		}
		if err := m.actions.LogAction(ctx, "context_update", details); err != nil {
			return err
		}
	}
	return nil
}

// trim cuts the document down to the byte budget. The identity block
// before the header marker is preserved, the body is truncated from the
// front at a UTF-8-safe boundary, and a notice naming the snapshot is
// appended.
func (m *Manager) trim(content string, snapIndex int) string {
	notice := fmt.Sprintf("\n(trimmed to fit context limit; see snapshot %d)\n", snapIndex)
	header, body := splitAtMarker(content)

	budget := m.maxBytes - len(header) - len(notice)
	if budget < 0 {
		header = ""
		budget = m.maxBytes - len(notice)
	}
	if budget < 0 {
		// The limit cannot even hold the notice; keep its head.
		return string(truncateBack([]byte(notice), m.maxBytes))
	}

	tail := truncateFront([]byte(body), budget)
	return header + string(tail) + notice
}

// truncateFront drops bytes from the front so at most max remain, never
// splitting a multi-byte code point.
func truncateFront(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	start := len(b) - max
	for start < len(b) && !utf8.RuneStart(b[start]) {
		start++
	}
	return b[start:]
}

// truncateBack keeps at most max bytes from the front, never splitting a
// multi-byte code point.
func truncateBack(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	end := max
	for end > 0 && !utf8.RuneStart(b[end]) {
		end--
	}
	return b[:end]
}

func splitAtMarker(content string) (header, body string) {
	idx := strings.Index(content, headerMarker)
	if idx < 0 {
		return "", content
	}
	cut := idx + len(headerMarker)
	return content[:cut], content[cut:]
}

// normalizeContent unifies line endings, strips trailing whitespace per
// line, and guarantees a single trailing newline.
func normalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

var lastUpdatedRe = regexp.MustCompile(`(?m)^- Last Updated: .*$`)

func refreshLastUpdated(content string) string {
	loc := lastUpdatedRe.FindStringIndex(content)
	if loc == nil {
		return content
	}
	stamp := "- Last Updated: " + time.Now().UTC().Format(time.RFC3339)
	return content[:loc[0]] + stamp + content[loc[1]:]
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".context-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func defaultDocument(title string) string {
	if title == "" {
		title = "bot"
	}
	return fmt.Sprintf(`# Current Context - %s

- Status: Active
- Last Updated: %s

---

## Current Awareness
-

## Pending Items
-

## Notes
-
`, title, time.Now().UTC().Format(time.RFC3339))
}
