package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccountNamed(name, token string) *Account {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	return NewAccount(name, token, "", d("100000"), decimal.Zero, start, end, false)
}

func TestRegistry_CreateRejectsDuplicateTokenOrName(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Create(newTestAccountNamed("alpha", "tok-1")))

	err := r.Create(newTestAccountNamed("alpha", "tok-2"))
	assert.ErrorIs(t, err, ErrAccountExists)

	err = r.Create(newTestAccountNamed("beta", "tok-1"))
	assert.ErrorIs(t, err, ErrAccountExists)

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LookupUnknownTokenIsUnauthorized(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	_, err := r.Lookup("does-not-exist")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegistry_LookupReturnsTheSameAccount(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	acc := newTestAccountNamed("alpha", "tok-1")
	require.NoError(t, r.Create(acc))

	got, err := r.Lookup("tok-1")
	require.NoError(t, err)
	assert.Same(t, acc, got)
}

func TestRegistry_DeleteUnknownTokenIsNotFound(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	err := r.Delete("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_DeleteRemovesBothTokenAndNameIndex(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Create(newTestAccountNamed("alpha", "tok-1")))
	require.NoError(t, r.Delete("tok-1"))
	assert.Equal(t, 0, r.Len())

	// name and token are both free again after delete.
	require.NoError(t, r.Create(newTestAccountNamed("alpha", "tok-1")))
}

func TestRegistry_DeleteAllRemovesEveryAccountAndFreesNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Create(newTestAccountNamed("alpha", "tok-1")))
	require.NoError(t, r.Create(newTestAccountNamed("beta", "tok-2")))

	assert.ElementsMatch(t, []string{"tok-1", "tok-2"}, r.Tokens())

	n := r.DeleteAll()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, r.Len())

	_, err := r.Lookup("tok-1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// names and tokens are both free again after DeleteAll.
	require.NoError(t, r.Create(newTestAccountNamed("alpha", "tok-1")))
}

func TestRegistry_RestoreBehavesLikeCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	acc := newTestAccountNamed("alpha", "tok-1")
	require.NoError(t, r.Restore(acc))

	err := r.Restore(newTestAccountNamed("alpha", "tok-2"))
	assert.ErrorIs(t, err, ErrAccountExists)
}
