package interner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternIdempotent(t *testing.T) {
	in := New()
	a := in.Intern("alice")
	b := in.Intern("alice")
	require.Equal(t, a, b)
	require.Equal(t, 1, in.Len())
}

func TestInternStrictlyIncreasing(t *testing.T) {
	in := New()
	a := in.Intern("a")
	b := in.Intern("b")
	c := in.Intern("a")
	require.Equal(t, a, c)
	require.Greater(t, uint32(b), uint32(a))
}

func TestLookupAndIDOf(t *testing.T) {
	in := New()
	id := in.Intern("hello")

	s, ok := in.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "hello", s)

	got, ok := in.IDOf("hello")
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = in.IDOf("missing")
	require.False(t, ok)

	_, ok = in.Lookup(ID(999))
	require.False(t, ok)
}

func TestRestorePreservesIDs(t *testing.T) {
	in := New()
	a := in.Intern("a")
	b := in.Intern("b")

	restored := Restore(in.Snapshot())
	ra, ok := restored.IDOf("a")
	require.True(t, ok)
	require.Equal(t, a, ra)

	rb, ok := restored.IDOf("b")
	require.True(t, ok)
	require.Equal(t, b, rb)
}

func TestEachInsertionOrder(t *testing.T) {
	in := New()
	in.Intern("z")
	in.Intern("a")
	in.Intern("m")

	var seen []string
	in.Each(func(id ID, s string) {
		seen = append(seen, s)
	})
	require.Equal(t, []string{"z", "a", "m"}, seen)
}
