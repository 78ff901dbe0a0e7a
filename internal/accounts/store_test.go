package accounts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xArmad/reposter/internal/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	s, err := New(path)
	require.NoError(t, err)
	return s, path
}

func TestFirstAccountBecomesMain(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alpha", "Alpha"))
	require.NoError(t, s.Add("beta", "Beta"))

	main, ok := s.Main()
	require.True(t, ok)
	assert.Equal(t, "alpha", main.Username)

	beta, ok := s.Get("beta")
	require.True(t, ok)
	assert.Equal(t, types.RoleSecondary, beta.Role)
}

func TestAddDuplicateRejected(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alpha", "Alpha"))
	assert.Error(t, s.Add("alpha", "Alpha again"))
	assert.Len(t, s.List(), 1)
}

func TestRemoveMainPromotesOldest(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alpha", ""))
	require.NoError(t, s.Add("beta", ""))
	require.NoError(t, s.Add("gamma", ""))

	require.NoError(t, s.Remove("alpha"))

	main, ok := s.Main()
	require.True(t, ok)
	assert.Equal(t, "beta", main.Username)
}

func TestRemoveUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Remove("nobody"))
}

func TestSetMainDemotesPrevious(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alpha", ""))
	require.NoError(t, s.Add("beta", ""))
	require.NoError(t, s.SetMain("beta"))

	main, ok := s.Main()
	require.True(t, ok)
	assert.Equal(t, "beta", main.Username)

	alpha, _ := s.Get("alpha")
	assert.Equal(t, types.RoleSecondary, alpha.Role)

	assert.Error(t, s.SetMain("nobody"))
}

func TestOthersExcludesSource(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alpha", ""))
	require.NoError(t, s.Add("beta", ""))
	require.NoError(t, s.Add("gamma", ""))

	assert.Equal(t, []string{"beta", "gamma"}, s.Others("alpha"))
	assert.Equal(t, []string{"alpha", "gamma"}, s.Others("beta"))
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Add("alpha", "Alpha"))
	require.NoError(t, s.Add("beta", "Beta"))
	require.NoError(t, s.SetMain("beta"))

	reopened, err := New(path)
	require.NoError(t, err)

	assert.Len(t, reopened.List(), 2)
	main, ok := reopened.Main()
	require.True(t, ok)
	assert.Equal(t, "beta", main.Username)
}
