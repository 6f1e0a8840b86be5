// Package model defines the core data types shared across the bot's
// memory subsystems.
package model

import (
	"encoding/json"
	"time"
)

// Scope identifies which memory bank an entry belongs to.
type Scope string

const (
	// ScopeInternal is the bot's own permanent memory.
	ScopeInternal Scope = "internal"
	// ScopeExternal is a coupled, permission-gated memory outside the
	// bot's working directory.
	ScopeExternal Scope = "external"
)

// MemoryEntry is a stored key/value pair, unique per (scope, key).
// Last write wins.
type MemoryEntry struct {
	Scope     Scope           `json:"scope"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the entry's value into v.
func (e *MemoryEntry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

// ThoughtRecord is one entry in the append-only reasoning journal.
// ParentID, when set, references an earlier record; the journal forms a
// forest, never a cycle.
type ThoughtRecord struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestRecord tracks one distinct normalized request text.
type RequestRecord struct {
	Hash           string    `json:"hash"`
	NormalizedText string    `json:"normalized_text"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
}

// ResponseAttempt is one recorded response for a request, ordered by
// AttemptNumber within a hash.
type ResponseAttempt struct {
	RequestHash   string    `json:"request_hash"`
	AttemptNumber int       `json:"attempt_number"`
	ResponseText  string    `json:"response_text"`
	Accepted      bool      `json:"accepted"`
	CreatedAt     time.Time `json:"created_at"`
}

// SnapshotInfo is the metadata of one context snapshot on disk.
type SnapshotInfo struct {
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	Path      string    `json:"path"`
}

// GrantStatus is the state of a permission record.
type GrantStatus string

const (
	// GrantGranted authorizes access.
	GrantGranted GrantStatus = "granted"
	// GrantPending records a request that has not been approved; it
	// never authorizes anything.
	GrantPending GrantStatus = "pending"
)

// PermissionGrant maps an absolute path prefix to access rights for
// paths outside the workspace root.
type PermissionGrant struct {
	ID         string      `json:"id"`
	PathPrefix string      `json:"path_prefix"`
	AllowRead  bool        `json:"allow_read"`
	AllowWrite bool        `json:"allow_write"`
	Status     GrantStatus `json:"status"`
	GrantedAt  time.Time   `json:"granted_at"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
}

// Expired reports whether the grant has an expiry in the past.
func (g *PermissionGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// ActionLogEntry is one row of the bot's audit trail.
type ActionLogEntry struct {
	ID         int64           `json:"id"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details"`
	Reflection string          `json:"reflection,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
