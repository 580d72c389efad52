package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
)

func bigLiteralFlake(n int, t int64) flake.Flake {
	s := sid.SID{NS: 10, Name: "subj"}
	p := sid.SID{NS: 10, Name: "prop"}
	// A long string literal pushes size_flake well past a tiny overflow
	// threshold, letting tests force a split without huge fixtures.
	lit := make([]byte, 200)
	for i := range lit {
		lit[i] = byte('a' + (n+i)%26)
	}
	o := flake.LitObject(string(lit))
	dt := sid.SID{NS: sid.NSXSD, Name: "string"}
	f := flake.Create(s, p, o, dt, t, true, nil)
	f.P.Name = f.P.Name + string(rune('a'+n%26))
	return f
}

func TestRebalanceLeafWithinBoundsIsUnchanged(t *testing.T) {
	set := newFlakeSet(flake.SPOT).ConjAll([]flake.Flake{bigLiteralFlake(0, 1)})
	l := &Leaf{Cmp: flake.SPOT, First: bigLiteralFlake(0, 1), IsLeftmost: true, Flakes: set}
	out := RebalanceLeaf(l, DefaultTuning())
	require.Len(t, out, 1)
}

func TestRebalanceLeafSplitsOnOverflow(t *testing.T) {
	var items []flake.Flake
	for i := 0; i < 20; i++ {
		items = append(items, bigLiteralFlake(i, 1))
	}
	set := newFlakeSet(flake.SPOT).ConjAll(items)
	l := &Leaf{Cmp: flake.SPOT, First: items[0], IsLeftmost: true, Flakes: set}

	tuning := Tuning{OverflowBytes: 1000, UnderflowBytes: 100, OverflowChildren: 500}
	out := RebalanceLeaf(l, tuning)
	require.Greater(t, len(out), 1)

	leftmostCount := 0
	total := 0
	for i, piece := range out {
		if piece.IsLeftmost {
			leftmostCount++
			require.Equal(t, 0, i)
		}
		total += piece.Flakes.Len()
	}
	require.Equal(t, 1, leftmostCount)
	require.Equal(t, len(items), total)
	require.Nil(t, out[len(out)-1].RHS)
}

func TestRebalanceChildrenGroupsIntoChunks(t *testing.T) {
	var children []ChildRef
	for i := 0; i < 10; i++ {
		children = append(children, ChildRef{ID: "c", FirstFlake: bigLiteralFlake(i, 1), Leftmost: i == 0, SizeBytes: 1})
	}
	b := &Branch{Cmp: flake.SPOT, IsLeftmost: true, Children: children}

	out := RebalanceChildren(b, Tuning{OverflowBytes: 500_000, UnderflowBytes: 50_000, OverflowChildren: 4})
	require.Greater(t, len(out), 1)

	leftmostCount := 0
	for i, branch := range out {
		if branch.IsLeftmost {
			leftmostCount++
			require.Equal(t, 0, i)
		}
		require.True(t, branch.ValidateLeftmost())
	}
	require.Equal(t, 1, leftmostCount)
}

func TestRebalanceChildrenWithinBoundsIsUnchanged(t *testing.T) {
	b := &Branch{Cmp: flake.SPOT, IsLeftmost: true, Children: []ChildRef{{ID: "c", FirstFlake: bigLiteralFlake(0, 1), Leftmost: true}}}
	out := RebalanceChildren(b, DefaultTuning())
	require.Len(t, out, 1)
}
