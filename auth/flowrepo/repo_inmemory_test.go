package flowrepo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/auth/flowrepo"
)

func TestInMemoryRepo(t *testing.T) {
	repo := flowrepo.NewInMemoryRepo()
	now := time.Now()

	t.Run("upsert and get", func(t *testing.T) {
		require.NoError(t, repo.Upsert("s1", &flowrepo.FlowState{CodeVerifier: "v1", Nonce: "n1", CreatedAt: now}))
		got, err := repo.Get("s1")
		require.NoError(t, err)
		require.Equal(t, "v1", got.CodeVerifier)
		require.Equal(t, "n1", got.Nonce)
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		got, err := repo.Get("s1")
		require.NoError(t, err)
		got.Nonce = "changed"

		again, err := repo.Get("s1")
		require.NoError(t, err)
		require.Equal(t, "n1", again.Nonce)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := repo.Get("nope")
		require.ErrorIs(t, err, flowrepo.ErrStateNotFound)
		_, err = repo.Get("")
		require.ErrorIs(t, err, flowrepo.ErrStateNotFound)
	})

	t.Run("invalid upsert", func(t *testing.T) {
		require.Error(t, repo.Upsert("", &flowrepo.FlowState{}))
		require.Error(t, repo.Upsert("s2", nil))
	})

	t.Run("prune", func(t *testing.T) {
		require.NoError(t, repo.Upsert("old", &flowrepo.FlowState{CreatedAt: now.Add(-time.Hour)}))
		require.Equal(t, 1, repo.Prune(now.Add(-10*time.Minute)))
		_, err := repo.Get("old")
		require.ErrorIs(t, err, flowrepo.ErrStateNotFound)
		require.Equal(t, 1, repo.Len())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete("s1"))
		require.Equal(t, 0, repo.Len())
	})
}
