// Package temporal implements the bi-temporal version lifecycle shared by every
// mutable ledger record.
//
// A logical entity (an account, a transaction, a contact) is a chain of version
// rows sharing the same ID. Exactly one row per ID is current: its ValidTo is
// MaxDate and it is not deleted. Rows are never updated in place except to be
// closed, which stamps ValidTo and SystemTo with the closing instant while the
// successor opens at that same instant with a fresh VersionID.
package temporal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/fundledger/internal/errs"
)

// MaxDate is the open-ended upper bound of a current version's windows.
var MaxDate = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)

// Version holds the versioning columns carried by every versioned entity.
type Version struct {
	ID                uuid.UUID  `json:"id"`
	VersionID         uuid.UUID  `json:"version_id"`
	PreviousVersionID *uuid.UUID `json:"previous_version_id,omitempty"`
	ValidFrom         time.Time  `json:"valid_from"`
	ValidTo           time.Time  `json:"valid_to"`
	SystemFrom        time.Time  `json:"system_from"`
	SystemTo          time.Time  `json:"system_to"`
	IsDeleted         bool       `json:"is_deleted"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         string     `json:"deleted_by,omitempty"`
}

// Versioning gives generic helpers access to the embedded Version.
func (v *Version) Versioning() *Version { return v }

// Versioned is implemented by pointers to entities embedding Version.
type Versioned interface {
	Versioning() *Version
}

// Open returns the first version of a new logical entity.
func Open(at time.Time) Version {
	at = at.UTC()
	return Version{
		ID:         uuid.New(),
		VersionID:  uuid.New(),
		ValidFrom:  at,
		ValidTo:    MaxDate,
		SystemFrom: at,
		SystemTo:   MaxDate,
	}
}

// IsOpen reports whether the version has not been closed.
func (v Version) IsOpen() bool { return v.ValidTo.Equal(MaxDate) }

// IsCurrent reports whether v is the current version of its lineage.
func (v Version) IsCurrent() bool { return v.IsOpen() && !v.IsDeleted }

// Close stamps both windows of v as ending at the given instant.
// Closing an already closed version is a logic error and reported as a conflict.
func (v *Version) Close(at time.Time) error {
	if !v.IsOpen() {
		return errs.ErrConcurrentModification
	}
	at = at.UTC()
	v.ValidTo = at
	v.SystemTo = at
	return nil
}

// successor returns the versioning columns of the row superseding v.
func (v Version) successor(at time.Time) Version {
	at = at.UTC()
	prev := v.VersionID
	next := v
	next.VersionID = uuid.New()
	next.PreviousVersionID = &prev
	next.ValidFrom = at
	next.ValidTo = MaxDate
	next.SystemFrom = at
	next.SystemTo = MaxDate
	return next
}

// BuildNext copies existing, applies update to the copy and rewires its
// versioning columns so it supersedes existing at the given instant.
// The logical ID is preserved; the VersionID is always fresh, whatever update did.
func BuildNext[T any, PT interface {
	*T
	Versioned
}](existing T, at time.Time, update func(PT)) T {
	base := PT(&existing).Versioning()
	ver := base.successor(at)
	next := existing
	if update != nil {
		update(PT(&next))
	}
	v := PT(&next).Versioning()
	deleted, deletedAt, deletedBy := v.IsDeleted, v.DeletedAt, v.DeletedBy
	*v = ver
	v.IsDeleted, v.DeletedAt, v.DeletedBy = deleted, deletedAt, deletedBy
	return next
}

// CheckClosed turns the affected-row count of a close statement into an error.
// Anything other than exactly one row means another writer got there first.
func CheckClosed(rows int64) error {
	if rows != 1 {
		return errs.ErrConcurrentModification
	}
	return nil
}

// Current wraps pred so only current versions match.
func Current[T any, PT interface {
	*T
	Versioned
}](pred func(T) bool) func(T) bool {
	return func(row T) bool {
		if !PT(&row).Versioning().IsCurrent() {
			return false
		}
		return pred == nil || pred(row)
	}
}

// Where renders a SQL predicate selecting current versions combined with
// equality filters on the given columns. Placeholders start at $start.
// Keys are emitted in sorted order so the statement text is stable.
func Where(eq map[string]any, start int) (string, []any) {
	cols := make([]string, 0, len(eq))
	for c := range eq {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := []string{fmt.Sprintf("valid_to = $%d", start), "is_deleted = false"}
	args := []any{MaxDate}
	n := start + 1
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s = $%d", c, n))
		args = append(args, eq[c])
		n++
	}
	return strings.Join(parts, " and "), args
}

// IndexCurrent maps logical IDs to their current version, dropping every
// closed or deleted row. IDs with no current version are simply absent.
func IndexCurrent[T any, PT interface {
	*T
	Versioned
}](rows []T) map[uuid.UUID]T {
	out := make(map[uuid.UUID]T, len(rows))
	for _, r := range rows {
		v := PT(&r).Versioning()
		if v.IsCurrent() {
			out[v.ID] = r
		}
	}
	return out
}

// Chain orders the versions of one lineage newest first by following
// PreviousVersionID links from the head. A head is a row no other row points
// back to; when the chain has gaps the walk restarts from the newest
// remaining head so every row is returned exactly once.
func Chain[T any, PT interface {
	*T
	Versioned
}](rows []T) []T {
	if len(rows) == 0 {
		return nil
	}
	byVersion := make(map[uuid.UUID]int, len(rows))
	referenced := make(map[uuid.UUID]bool, len(rows))
	for i := range rows {
		v := PT(&rows[i]).Versioning()
		byVersion[v.VersionID] = i
		if v.PreviousVersionID != nil {
			referenced[*v.PreviousVersionID] = true
		}
	}
	heads := make([]int, 0, 1)
	for i := range rows {
		if !referenced[PT(&rows[i]).Versioning().VersionID] {
			heads = append(heads, i)
		}
	}
	sort.SliceStable(heads, func(a, b int) bool {
		return PT(&rows[heads[a]]).Versioning().SystemFrom.After(PT(&rows[heads[b]]).Versioning().SystemFrom)
	})
	out := make([]T, 0, len(rows))
	seen := make(map[uuid.UUID]bool, len(rows))
	for _, h := range heads {
		i, ok := h, true
		for ok {
			v := PT(&rows[i]).Versioning()
			if seen[v.VersionID] {
				break
			}
			seen[v.VersionID] = true
			out = append(out, rows[i])
			if v.PreviousVersionID == nil {
				break
			}
			i, ok = byVersion[*v.PreviousVersionID]
		}
	}
	return out
}

// AsOf returns the version whose system-time window contains at.
func AsOf[T any, PT interface {
	*T
	Versioned
}](rows []T, at time.Time) (T, bool) {
	for _, r := range rows {
		v := PT(&r).Versioning()
		if !at.Before(v.SystemFrom) && at.Before(v.SystemTo) {
			return r, true
		}
	}
	var zero T
	return zero, false
}
