// Package registry maintains the per-user node registry shared by all of a
// user's graphs.
//
// A Registry is an explicit object built around a Store. Writes for one
// user are serialized by a keyed mutex; stores add an optimistic revision
// check so writers in other processes surface as ErrConflict.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/semcnl/identity"
)

var (
	// ErrConflict is returned when the stored registry changed between
	// load and save.
	ErrConflict = errors.New("registry conflict")

	// ErrNodeNotFound is returned when an operation names an unknown node.
	ErrNodeNotFound = errors.New("node not found")
)

// Store persists one snapshot per user.
type Store interface {
	// Load returns the user's snapshot, or an empty one with revision 0.
	Load(ctx context.Context, userID string) (*Snapshot, error)

	// Save writes snap if the stored revision still equals snap.Revision,
	// and sets snap.Revision to the new revision. Otherwise it returns an
	// error wrapping ErrConflict.
	Save(ctx context.Context, userID string, snap *Snapshot) error
}

// Registry serializes registry updates per user.
type Registry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the time source used for node timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a registry backed by store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

// Update loads the user's registry, runs fn against it and saves the
// result. Updates for the same user never interleave. If fn returns an
// error nothing is saved.
func (r *Registry) Update(ctx context.Context, userID string, fn func(*Txn) error) error {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	snap, err := r.store.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load registry for %s: %w", userID, err)
	}

	txn := &Txn{snap: snap, now: r.now().UTC()}
	if err := fn(txn); err != nil {
		return err
	}
	if !txn.dirty {
		return nil
	}

	if err := r.store.Save(ctx, userID, snap); err != nil {
		if errors.Is(err, ErrConflict) {
			r.logger.Warn("Registry save conflict", "user_id", userID, "revision", snap.Revision)
			return err
		}
		return fmt.Errorf("save registry for %s: %w", userID, err)
	}

	r.logger.Debug("Registry updated",
		"user_id", userID,
		"nodes", len(snap.Nodes),
		"created", len(txn.created),
		"revision", snap.Revision)
	return nil
}

// Snapshot returns a copy of the user's registry.
func (r *Registry) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	snap, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load registry for %s: %w", userID, err)
	}
	return snap, nil
}

// Node returns one node of the user's registry.
func (r *Registry) Node(ctx context.Context, userID, id string) (*Node, error) {
	snap, err := r.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	n, ok := snap.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Orphans returns the nodes no graph mentions any more, sorted by id.
func (r *Registry) Orphans(ctx context.Context, userID string) ([]*Node, error) {
	snap, err := r.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	var orphans []*Node
	for _, id := range snap.IDs() {
		if n := snap.Nodes[id]; n.IsOrphan() {
			orphans = append(orphans, n)
		}
	}
	return orphans, nil
}

// Txn is a registry update in progress. It is only valid inside the
// function passed to Update.
type Txn struct {
	snap    *Snapshot
	now     time.Time
	dirty   bool
	created []string
}

// Node returns the current state of a node.
func (t *Txn) Node(id string) (*Node, bool) {
	return t.snap.Get(id)
}

// Created returns the ids of nodes created in this transaction.
func (t *Txn) Created() []string {
	return append([]string(nil), t.created...)
}

// GetOrCreate returns the node with id, creating it when absent, and adds
// graphID to its membership. A new node has no description.
func (t *Txn) GetOrCreate(id, displayName, graphID string) (*Node, bool) {
	n, ok := t.snap.Nodes[id]
	created := false
	if !ok {
		n = &Node{
			ID:        id,
			Name:      displayName,
			Graphs:    []string{},
			CreatedAt: t.now,
			UpdatedAt: t.now,
		}
		t.snap.Nodes[id] = n
		t.created = append(t.created, id)
		t.dirty = true
		created = true
	}
	if graphID != "" && n.addGraph(graphID) {
		n.UpdatedAt = t.now
		t.dirty = true
	}
	return n, created
}

// DeclareSection records that graphID has a section for the node. The
// section heading is authoritative for the display name and type.
func (t *Txn) DeclareSection(id identity.NodeIdentity, nodeType, graphID string) *Node {
	n, _ := t.GetOrCreate(id.ID, id.DisplayName, graphID)
	if id.DisplayName != "" && n.Name != id.DisplayName {
		n.Name = id.DisplayName
		n.UpdatedAt = t.now
		t.dirty = true
	}
	if nodeType != "" && n.Type != nodeType {
		n.Type = nodeType
		n.UpdatedAt = t.now
		t.dirty = true
	}
	return n
}

// RegisterGraphMembership adds graphID to the node's membership set.
func (t *Txn) RegisterGraphMembership(id, graphID string) error {
	n, ok := t.snap.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.addGraph(graphID) {
		n.UpdatedAt = t.now
		t.dirty = true
	}
	return nil
}

// RemoveGraphMembership drops graphID from the node's membership set and
// the statements that graph declared. The node is kept even when no graph
// mentions it any more.
func (t *Txn) RemoveGraphMembership(id, graphID string) error {
	n, ok := t.snap.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	changed := n.removeGraph(graphID)
	if _, has := n.Statements[graphID]; has {
		delete(n.Statements, graphID)
		changed = true
	}
	if changed {
		n.UpdatedAt = t.now
		t.dirty = true
	}
	return nil
}

// SetStatements replaces the edges graphID declares under the node. The
// node only counts as changed when the edges differ from the stored ones.
func (t *Txn) SetStatements(id, graphID string, st Statements) error {
	n, ok := t.snap.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Statements == nil {
		n.Statements = make(map[string]Statements)
	}
	prev, had := n.Statements[graphID]
	n.Statements[graphID] = st
	if had && prev.Equal(st) {
		return nil
	}
	n.UpdatedAt = t.now
	t.dirty = true
	return nil
}

// ClearStatements drops the edges graphID declares under the node while
// keeping its membership.
func (t *Txn) ClearStatements(id, graphID string) error {
	n, ok := t.snap.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if _, has := n.Statements[graphID]; !has {
		return nil
	}
	delete(n.Statements, graphID)
	n.UpdatedAt = t.now
	t.dirty = true
	return nil
}

// SetDescription sets the node description. An empty description turns
// the node back into a stub.
func (t *Txn) SetDescription(id, description string) error {
	n, ok := t.snap.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Description == description {
		return nil
	}
	n.Description = description
	n.UpdatedAt = t.now
	t.dirty = true
	return nil
}

// GraphNodes returns the ids of the nodes that are members of graphID or
// hold statements from it, sorted.
func (t *Txn) GraphNodes(graphID string) []string {
	var ids []string
	for _, id := range t.snap.IDs() {
		n := t.snap.Nodes[id]
		if _, has := n.Statements[graphID]; has || n.InGraph(graphID) {
			ids = append(ids, id)
		}
	}
	return ids
}

// RemoveGraph drops graphID from every node and returns the ids of the
// nodes that were members, sorted.
func (t *Txn) RemoveGraph(graphID string) []string {
	affected := t.GraphNodes(graphID)
	for _, id := range affected {
		// The node exists, so this cannot fail.
		_ = t.RemoveGraphMembership(id, graphID)
	}
	return affected
}
