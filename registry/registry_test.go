package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestRegistry() (*Registry, *MemoryStore) {
	store := NewMemoryStore()
	return New(store, WithClock(fixedClock)), store
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r, store := newTestRegistry()
	ctx := context.Background()

	err := r.Update(ctx, "ada", func(txn *Txn) error {
		n, created := txn.GetOrCreate("india", "India", "g1")
		assert.True(t, created)
		assert.Equal(t, []string{"g1"}, n.Graphs)

		n, created = txn.GetOrCreate("india", "India", "g1")
		assert.False(t, created)
		assert.Equal(t, []string{"g1"}, n.Graphs)
		assert.Equal(t, []string{"india"}, txn.Created())
		return nil
	})
	require.NoError(t, err)

	n, err := r.Node(ctx, "ada", "india")
	require.NoError(t, err)
	assert.Equal(t, "India", n.Name)
	assert.Equal(t, fixedClock(), n.CreatedAt)
	assert.Equal(t, Stub{}, n.Detail())
	assert.Equal(t, 1, store.Users())
}

func TestRegistry_MembershipIsASortedSet(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g2")
		require.NoError(t, txn.RegisterGraphMembership("india", "g1"))
		require.NoError(t, txn.RegisterGraphMembership("india", "g3"))
		require.NoError(t, txn.RegisterGraphMembership("india", "g1"))
		return nil
	}))

	n, err := r.Node(ctx, "ada", "india")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, n.Graphs)
	assert.True(t, n.InGraph("g2"))
	assert.False(t, n.InGraph("g4"))
}

func TestRegistry_OrphanRetention(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g1")
		txn.GetOrCreate("delhi", "Delhi", "g1")
		txn.GetOrCreate("delhi", "Delhi", "g2")
		return txn.SetStatements("india", "g1", Statements{
			Section:   true,
			Relations: []source.RelationEdge{{SourceID: "india", TargetID: "delhi", RelationName: "has capital"}},
		})
	}))

	var affected []string
	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		affected = txn.RemoveGraph("g1")
		return nil
	}))
	assert.Equal(t, []string{"delhi", "india"}, affected)

	snap, err := r.Snapshot(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 2)

	india := snap.Nodes["india"]
	assert.Empty(t, india.Graphs)
	assert.True(t, india.IsOrphan())
	assert.Empty(t, india.StatementsFor("g1").Relations)
	assert.Equal(t, []string{"g2"}, snap.Nodes["delhi"].Graphs)

	orphans, err := r.Orphans(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "india", orphans[0].ID)
}

func TestRegistry_DeclareSection(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "india", "g1")
		n := txn.DeclareSection(identity.Compose("India [Country]"), "Country", "g2")
		assert.Equal(t, "India [Country]", n.Name)
		assert.Equal(t, "Country", n.Type)
		return nil
	}))

	n, err := r.Node(ctx, "ada", "india")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, n.Graphs)
}

func TestRegistry_SetDescription(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("delhi", "Delhi", "g1")
		return txn.SetDescription("delhi", "Capital territory.")
	}))

	n, err := r.Node(ctx, "ada", "delhi")
	require.NoError(t, err)
	assert.Equal(t, Complete{Description: "Capital territory."}, n.Detail())

	err = r.Update(ctx, "ada", func(txn *Txn) error {
		return txn.SetDescription("missing", "x")
	})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRegistry_UnchangedStatementsAreNotSaved(t *testing.T) {
	now := fixedClock()
	store := NewMemoryStore()
	r := New(store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	st := Statements{
		Section:    true,
		Relations:  []source.RelationEdge{{SourceID: "india", TargetID: "delhi", RelationName: "has capital", Line: 3}},
		Attributes: []source.AttributeEdge{{SourceID: "india", AttributeName: "area", Value: "3287263", Unit: "km2", Line: 4}},
	}
	write := func(st Statements) error {
		return r.Update(ctx, "ada", func(txn *Txn) error {
			txn.GetOrCreate("india", "India", "g1")
			return txn.SetStatements("india", "g1", st)
		})
	}
	require.NoError(t, write(st))

	now = now.Add(time.Hour)
	moved := st
	moved.Relations = []source.RelationEdge{{SourceID: "india", TargetID: "delhi", RelationName: "has capital", Line: 9}}
	require.NoError(t, write(moved))

	snap, err := r.Snapshot(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, fixedClock(), snap.Nodes["india"].UpdatedAt)

	changed := st
	changed.Attributes = []source.AttributeEdge{{SourceID: "india", AttributeName: "area", Value: "3287264", Unit: "km2"}}
	require.NoError(t, write(changed))

	snap, err = r.Snapshot(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Revision)
	assert.Equal(t, now, snap.Nodes["india"].UpdatedAt)
}

func TestRegistry_ClearStatements(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g1")
		require.NoError(t, txn.SetStatements("india", "g1", Statements{Section: true}))
		require.NoError(t, txn.ClearStatements("india", "g1"))
		assert.Equal(t, []string{"india"}, txn.GraphNodes("g1"))
		assert.ErrorIs(t, txn.ClearStatements("missing", "g1"), ErrNodeNotFound)
		return nil
	}))

	n, err := r.Node(ctx, "ada", "india")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, n.Graphs)
	assert.Empty(t, n.Statements)
}

func TestStatements_Equal(t *testing.T) {
	rel := source.RelationEdge{SourceID: "india", TargetID: "nepal", RelationName: "borders"}
	attr := source.AttributeEdge{SourceID: "india", AttributeName: "area", Value: "3287263"}

	tests := []struct {
		name string
		a, b Statements
		want bool
	}{
		{"empty", Statements{}, Statements{Relations: []source.RelationEdge{}}, true},
		{"section flag", Statements{Section: true}, Statements{}, false},
		{"line ignored", Statements{Relations: []source.RelationEdge{rel}}, Statements{Relations: []source.RelationEdge{{SourceID: "india", TargetID: "nepal", RelationName: "borders", Line: 5}}}, true},
		{"different target", Statements{Relations: []source.RelationEdge{rel}}, Statements{Relations: []source.RelationEdge{{SourceID: "india", TargetID: "china", RelationName: "borders"}}}, false},
		{"order matters", Statements{Relations: []source.RelationEdge{rel, {RelationName: "x"}}}, Statements{Relations: []source.RelationEdge{{RelationName: "x"}, rel}}, false},
		{"attribute unit", Statements{Attributes: []source.AttributeEdge{attr}}, Statements{Attributes: []source.AttributeEdge{{SourceID: "india", AttributeName: "area", Value: "3287263", Unit: "km2"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestRegistry_FailedUpdateIsNotSaved(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g1")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := r.Snapshot(ctx, "ada")
	require.NoError(t, err)
	assert.Empty(t, snap.Nodes)
}

func TestRegistry_UsersAreIndependent(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g1")
		return nil
	}))

	_, err := r.Node(ctx, "bob", "india")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRegistry_ConcurrentUpdatesSameUser(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	const graphs = 20
	var wg sync.WaitGroup
	errs := make(chan error, graphs)
	for i := 0; i < graphs; i++ {
		wg.Add(1)
		go func(graphID string) {
			defer wg.Done()
			errs <- r.Update(ctx, "ada", func(txn *Txn) error {
				txn.GetOrCreate("india", "India", graphID)
				return nil
			})
		}(fmt.Sprintf("g%02d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := r.Node(ctx, "ada", "india")
	require.NoError(t, err)
	assert.Len(t, n.Graphs, graphs)
}

// staleStore always reports a conflict on save.
type staleStore struct {
	*MemoryStore
}

func (s staleStore) Save(_ context.Context, userID string, _ *Snapshot) error {
	return fmt.Errorf("%w: user %s", ErrConflict, userID)
}

func TestRegistry_ConflictIsReturnedUnwrapped(t *testing.T) {
	r := New(staleStore{NewMemoryStore()})

	err := r.Update(context.Background(), "ada", func(txn *Txn) error {
		txn.GetOrCreate("india", "India", "g1")
		return nil
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_RevisionCheck(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.Load(ctx, "ada")
	require.NoError(t, err)
	b, err := store.Load(ctx, "ada")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "ada", a))
	assert.Equal(t, uint64(1), a.Revision)

	err = store.Save(ctx, "ada", b)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSnapshot_MarshalRoundTrip(t *testing.T) {
	snap := NewSnapshot()
	snap.Nodes["india"] = &Node{
		ID:     "india",
		Name:   "India",
		Graphs: []string{"g1"},
		Statements: map[string]Statements{
			"g1": {Section: true, Attributes: []source.AttributeEdge{{SourceID: "india", AttributeName: "area", Value: "3287263", Unit: "km2"}}},
		},
		CreatedAt: fixedClock(),
		UpdatedAt: fixedClock(),
	}
	snap.Revision = 7

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)

	got, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Revision)
	got.Revision = 7
	assert.Equal(t, snap, got)

	_, err = UnmarshalSnapshot([]byte("{"))
	assert.Error(t, err)
}
