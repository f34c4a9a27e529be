package memory

import (
    "time"

    "github.com/google/uuid"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/temporal"
)

// table is an append-only version log with a materialized pointer from each
// logical ID to the index of its current version.
type table[T any, PT interface {
    *T
    temporal.Versioned
}] struct {
    rows      []T
    byVersion map[uuid.UUID]int
    current   map[uuid.UUID]int
    org       func(T) uuid.UUID
}

func newTable[T any, PT interface {
    *T
    temporal.Versioned
}](org func(T) uuid.UUID) *table[T, PT] {
    return &table[T, PT]{byVersion: map[uuid.UUID]int{}, current: map[uuid.UUID]int{}, org: org}
}

func (t *table[T, PT]) clone() *table[T, PT] {
    c := &table[T, PT]{
        rows:      make([]T, len(t.rows)),
        byVersion: make(map[uuid.UUID]int, len(t.byVersion)),
        current:   make(map[uuid.UUID]int, len(t.current)),
        org:       t.org,
    }
    copy(c.rows, t.rows)
    for k, v := range t.byVersion { c.byVersion[k] = v }
    for k, v := range t.current { c.current[k] = v }
    return c
}

// insert appends a version row. A second open row for the same logical ID is
// rejected; the old one has to be closed first.
func (t *table[T, PT]) insert(row T) error {
    v := PT(&row).Versioning()
    if _, dup := t.byVersion[v.VersionID]; dup { return errs.ErrConflict }
    if v.IsOpen() {
        if _, ok := t.current[v.ID]; ok { return errs.ErrConcurrentModification }
        for _, idx := range t.lineageIdx(v.ID) {
            if PT(&t.rows[idx]).Versioning().IsOpen() { return errs.ErrConcurrentModification }
        }
    }
    t.rows = append(t.rows, row)
    idx := len(t.rows) - 1
    t.byVersion[v.VersionID] = idx
    if v.IsCurrent() { t.current[v.ID] = idx }
    return nil
}

// close closes the open version with the given version ID in org.
// Zero matching rows is a lost race.
func (t *table[T, PT]) close(orgID, versionID uuid.UUID, at time.Time) error {
    idx, ok := t.byVersion[versionID]
    if !ok || t.org(t.rows[idx]) != orgID { return temporal.CheckClosed(0) }
    v := PT(&t.rows[idx]).Versioning()
    if err := v.Close(at); err != nil { return err }
    if cur, ok := t.current[v.ID]; ok && cur == idx { delete(t.current, v.ID) }
    return nil
}

func (t *table[T, PT]) get(orgID, id uuid.UUID) (T, bool) {
    idx, ok := t.current[id]
    if !ok || t.org(t.rows[idx]) != orgID {
        var zero T
        return zero, false
    }
    return t.rows[idx], true
}

// update rewrites the current row for id in place.
func (t *table[T, PT]) update(orgID, versionID uuid.UUID, fn func(PT)) error {
    idx, ok := t.byVersion[versionID]
    if !ok || t.org(t.rows[idx]) != orgID { return errs.ErrConcurrentModification }
    if !PT(&t.rows[idx]).Versioning().IsCurrent() { return errs.ErrConcurrentModification }
    fn(PT(&t.rows[idx]))
    return nil
}

func (t *table[T, PT]) byIDs(orgID uuid.UUID, ids []uuid.UUID) map[uuid.UUID]T {
    out := make(map[uuid.UUID]T, len(ids))
    for _, id := range ids {
        if row, ok := t.get(orgID, id); ok { out[id] = row }
    }
    return out
}

func (t *table[T, PT]) lineageIdx(id uuid.UUID) []int {
    var out []int
    for i := range t.rows {
        if PT(&t.rows[i]).Versioning().ID == id { out = append(out, i) }
    }
    return out
}

func (t *table[T, PT]) lineage(orgID, id uuid.UUID) []T {
    out := make([]T, 0)
    for _, i := range t.lineageIdx(id) {
        if t.org(t.rows[i]) == orgID { out = append(out, t.rows[i]) }
    }
    return out
}

func (t *table[T, PT]) listCurrent(orgID uuid.UUID) []T {
    out := make([]T, 0, len(t.current))
    for _, idx := range t.current {
        if t.org(t.rows[idx]) == orgID { out = append(out, t.rows[idx]) }
    }
    return out
}
