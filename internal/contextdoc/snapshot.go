package contextdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// Snapshot files are named context_NNNNNN.md and open with a single
// comment line carrying index, timestamp, a hash of the snapshotted
// content, and the predecessor snapshot's content hash for audit
// chaining:
//
//	<!-- snapshot 12 | 2026-01-02T15:04:05Z | sha256 ab12... | prev cd34... -->

const snapshotPrefix = "context_"

// saveSnapshot writes the pre-trim content as the next numbered snapshot
// and returns its index. Callers hold the context lock.
func (m *Manager) saveSnapshot(content string) (int, error) {
	infos, err := m.listSnapshots()
	if err != nil {
		return 0, err
	}

	index := 1
	prev := "-"
	if len(infos) > 0 {
		// listSnapshots returns newest first.
		index = infos[0].Index + 1
		prev = infos[0].Hash
	}

	hash := contentHash(content)
	header := fmt.Sprintf("<!-- snapshot %d | %s | sha256 %s | prev %s -->\n\n",
		index, time.Now().UTC().Format(time.RFC3339), hash, prev)

	path := m.snapshotPath(index)
	if err := atomicWrite(path, []byte(header+content)); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	return index, nil
}

// pruneHistory deletes the oldest snapshots until at most retention
// remain.
func (m *Manager) pruneHistory() error {
	infos, err := m.listSnapshots()
	if err != nil {
		return err
	}
	for i := len(infos) - 1; i >= m.retention; i-- {
		if err := os.Remove(infos[i].Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune snapshot %d: %w", infos[i].Index, err)
		}
	}
	return nil
}

// History lists snapshot metadata, newest first. A non-positive limit
// means no limit.
func (m *Manager) History(limit int) ([]model.SnapshotInfo, error) {
	infos, err := m.listSnapshots()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// LoadSnapshot resolves ref as a snapshot index when it parses as an
// integer, otherwise as a file path, and returns the snapshotted content
// after verifying its recorded hash.
func (m *Manager) LoadSnapshot(ref string) (string, error) {
	if index, err := strconv.Atoi(ref); err == nil {
		return m.LoadSnapshotIndex(index)
	}
	return m.LoadSnapshotPath(ref)
}

// LoadSnapshotIndex returns the content of the snapshot with the given
// index.
func (m *Manager) LoadSnapshotIndex(index int) (string, error) {
	return m.loadSnapshotFile(m.snapshotPath(index))
}

// LoadSnapshotPath returns the content of the snapshot at path; relative
// paths resolve against the history directory.
func (m *Manager) LoadSnapshotPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.histDir, path)
	}
	return m.loadSnapshotFile(path)
}

func (m *Manager) loadSnapshotFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("snapshot %s: %w", path, model.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read snapshot %s: %w", path, err)
	}

	_, hash, content, err := parseSnapshot(string(b))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, model.ErrCorruptSnapshot)
	}
	if contentHash(content) != hash {
		return "", fmt.Errorf("%s: hash mismatch: %w", path, model.ErrCorruptSnapshot)
	}
	return content, nil
}

func (m *Manager) snapshotPath(index int) string {
	return filepath.Join(m.histDir, fmt.Sprintf("%s%06d.md", snapshotPrefix, index))
}

func (m *Manager) listSnapshots() ([]model.SnapshotInfo, error) {
	entries, err := os.ReadDir(m.histDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}

	var infos []model.SnapshotInfo
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".md"))
		if err != nil {
			continue
		}

		path := filepath.Join(m.histDir, name)
		info := model.SnapshotInfo{Index: index, Path: path}
		if fi, err := entry.Info(); err == nil {
			info.Size = fi.Size()
		}
		if b, err := os.ReadFile(path); err == nil {
			if created, hash, _, err := parseSnapshot(string(b)); err == nil {
				info.CreatedAt = created
				info.Hash = hash
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Index > infos[j].Index })
	return infos, nil
}

func parseSnapshot(raw string) (created time.Time, hash, content string, err error) {
	newline := strings.Index(raw, "\n")
	if newline < 0 {
		return created, "", "", fmt.Errorf("missing snapshot header")
	}
	header := raw[:newline]
	if !strings.HasPrefix(header, "<!-- snapshot ") || !strings.HasSuffix(header, " -->") {
		return created, "", "", fmt.Errorf("malformed snapshot header")
	}

	fields := strings.Split(strings.TrimSuffix(strings.TrimPrefix(header, "<!-- "), " -->"), " | ")
	if len(fields) != 4 {
		return created, "", "", fmt.Errorf("malformed snapshot header")
	}
	created, err = time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return created, "", "", fmt.Errorf("bad snapshot timestamp: %w", err)
	}
	hash = strings.TrimPrefix(fields[2], "sha256 ")

	content = strings.TrimPrefix(raw[newline+1:], "\n")
	return created, hash, content, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
