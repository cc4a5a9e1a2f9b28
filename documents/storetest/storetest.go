// Package storetest holds the behaviour every documents.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/jrsteele09/vocaprep/documents"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the documents.Store contract. Collections are prefixed so the
// suite can run against a shared database.
func Run(t *testing.T, store documents.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	users := prefix + "users"
	interviews := prefix + "interviews"

	t.Run("get missing document", func(t *testing.T) {
		_, err := store.Get(ctx, users, "missing")
		require.True(t, documents.IsNotFound(err), "expected not found, got %v", err)
	})

	t.Run("empty collection does not exist", func(t *testing.T) {
		exists, err := store.CollectionExists(ctx, prefix+"empty")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("set then get", func(t *testing.T) {
		err := store.Set(ctx, users, "u1", documents.Fields{"username": "alice", "email": "a@x.com"})
		require.NoError(t, err)

		fields, err := store.Get(ctx, users, "u1")
		require.NoError(t, err)
		require.Equal(t, documents.Fields{"username": "alice", "email": "a@x.com"}, fields)

		exists, err := store.CollectionExists(ctx, users)
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("set replaces whole document", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, users, "u2", documents.Fields{"username": "bob", "email": "b@x.com"}))
		require.NoError(t, store.Set(ctx, users, "u2", documents.Fields{"username": "bobby"}))

		fields, err := store.Get(ctx, users, "u2")
		require.NoError(t, err)
		require.Equal(t, documents.Fields{"username": "bobby"}, fields)
	})

	t.Run("nested values come back normalised", func(t *testing.T) {
		id := documents.NewID()
		err := store.Set(ctx, interviews, id, documents.Fields{
			"rating":    8,
			"techstack": []string{"go"},
			"feedback":  map[string]any{"strengths": []string{"clear"}},
		})
		require.NoError(t, err)

		fields, err := store.Get(ctx, interviews, id)
		require.NoError(t, err)
		require.Equal(t, float64(8), fields["rating"])
		require.Equal(t, []any{"go"}, fields["techstack"])
		require.Equal(t, map[string]any{"strengths": []any{"clear"}}, fields["feedback"])
	})

	t.Run("returned fields are a copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, users, "u3", documents.Fields{"username": "carol"}))
		fields, err := store.Get(ctx, users, "u3")
		require.NoError(t, err)
		fields["username"] = "mallory"

		again, err := store.Get(ctx, users, "u3")
		require.NoError(t, err)
		require.Equal(t, "carol", again.String("username"))
	})
}
