// Package diff computes the shortest edit script that turns one chunk
// sequence into another.
//
// The script is computed with the linear space variant of Myers' O(ND)
// algorithm: after trimming the common prefix and suffix, the middle snake of
// the remaining range is found by running the search forward from the start
// and backward from the end at the same time, and the two halves on either
// side of it are solved recursively.
package diff

import (
	"fmt"

	"github.com/sidkik/foldersync/pkg/chunk"
)

// Edit is a contiguous change between two chunk sequences. Deleted chunks of
// the old sequence starting at OldPos are replaced by Inserted chunks of the
// new sequence starting at NewPos.
type Edit struct {
	OldPos, NewPos    int
	Deleted, Inserted int
}

func (e Edit) String() string {
	return fmt.Sprintf("@%d,%d -%d +%d", e.OldPos, e.NewPos, e.Deleted, e.Inserted)
}

// Script is an ordered list of edits. Both OldPos and NewPos are strictly
// increasing, and the edits never overlap, so a script can be applied in a
// single forward pass over both sequences.
type Script []Edit

// Deleted returns the total number of deleted chunks.
func (s Script) Deleted() (n int) {
	for _, e := range s {
		n += e.Deleted
	}
	return n
}

// Inserted returns the total number of inserted chunks.
func (s Script) Inserted() (n int) {
	for _, e := range s {
		n += e.Inserted
	}
	return n
}

type token struct {
	hash [32]byte
	size int
}

// Token 0 terminates both sequences.
const terminal = 0

// Diff returns the shortest edit script that turns `from` into `to`. Chunks
// are compared by content only.
func Diff(from, to chunk.Snapshot) Script {
	a, b := intern(from, to)
	d := &differ{
		a:         a,
		b:         b,
		modifiedA: make([]bool, len(a)+2),
		modifiedB: make([]bool, len(b)+2),
	}

	vlen := 2*(len(a)+len(b)+1) + 2
	d.down = make([]int, vlen)
	d.up = make([]int, vlen)

	d.lcs(0, len(a), 0, len(b))
	return d.script()
}

func intern(from, to chunk.Snapshot) ([]int, []int) {
	ids := map[token]int{}
	toIDs := func(snap chunk.Snapshot) []int {
		seq := make([]int, 0, len(snap)+1)
		for _, c := range snap {
			key := token{c.Hash, c.Size}
			id, ok := ids[key]
			if !ok {
				id = len(ids) + 1
				ids[key] = id
			}
			seq = append(seq, id)
		}
		return append(seq, terminal)
	}
	return toIDs(from), toIDs(to)
}

type differ struct {
	a, b                 []int
	modifiedA, modifiedB []bool

	// Furthest reaching x per diagonal for the forward and reverse searches.
	down, up []int
}

// lcs marks the elements of a[lowerA:upperA] and b[lowerB:upperB] that aren't
// part of their longest common subsequence.
func (d *differ) lcs(lowerA, upperA, lowerB, upperB int) {
	for lowerA < upperA && lowerB < upperB && d.a[lowerA] == d.b[lowerB] {
		lowerA++
		lowerB++
	}

	for lowerA < upperA && lowerB < upperB && d.a[upperA-1] == d.b[upperB-1] {
		upperA--
		upperB--
	}

	switch {
	case lowerA == upperA:
		for ; lowerB < upperB; lowerB++ {
			d.modifiedB[lowerB] = true
		}
	case lowerB == upperB:
		for ; lowerA < upperA; lowerA++ {
			d.modifiedA[lowerA] = true
		}
	default:
		x, y := d.middleSnake(lowerA, upperA, lowerB, upperB)
		d.lcs(lowerA, x, lowerB, y)
		d.lcs(x, upperA, y, upperB)
	}
}

// middleSnake returns a point on a shortest edit path through the given
// range that splits it into two smaller subproblems.
func (d *differ) middleSnake(lowerA, upperA, lowerB, upperB int) (int, int) {
	a, b := d.a, d.b
	down, up := d.down, d.up
	offset := len(a) + len(b) + 1

	downK := lowerA - lowerB
	upK := upperA - upperB
	delta := (upperA - lowerA) - (upperB - lowerB)
	oddDelta := delta&1 != 0

	downOffset := offset - downK
	upOffset := offset - upK
	maxD := ((upperA-lowerA)+(upperB-lowerB))/2 + 1

	down[downOffset+downK+1] = lowerA
	up[upOffset+upK-1] = upperA

	for D := 0; D <= maxD; D++ {
		for k := downK - D; k <= downK+D; k += 2 {
			var x int
			if k == downK-D {
				x = down[downOffset+k+1]
			} else {
				x = down[downOffset+k-1] + 1
				if k < downK+D && down[downOffset+k+1] >= x {
					x = down[downOffset+k+1]
				}
			}

			y := x - k
			for x < upperA && y < upperB && a[x] == b[y] {
				x++
				y++
			}
			down[downOffset+k] = x

			if oddDelta && upK-D < k && k < upK+D && up[upOffset+k] <= down[downOffset+k] {
				return down[downOffset+k], down[downOffset+k] - k
			}
		}

		for k := upK - D; k <= upK+D; k += 2 {
			var x int
			if k == upK+D {
				x = up[upOffset+k-1]
			} else {
				x = up[upOffset+k+1] - 1
				if k > upK-D && up[upOffset+k-1] < x {
					x = up[upOffset+k-1]
				}
			}

			y := x - k
			for x > lowerA && y > lowerB && a[x-1] == b[y-1] {
				x--
				y--
			}
			up[upOffset+k] = x

			if !oddDelta && downK-D <= k && k <= downK+D && up[upOffset+k] <= down[downOffset+k] {
				return down[downOffset+k], down[downOffset+k] - k
			}
		}
	}

	// A shortest path always exists within maxD steps.
	panic("diff: no middle snake found")
}

func (d *differ) script() Script {
	var script Script
	n, m := len(d.a), len(d.b)
	lineA, lineB := 0, 0
	for lineA < n || lineB < m {
		if lineA < n && !d.modifiedA[lineA] && lineB < m && !d.modifiedB[lineB] {
			lineA++
			lineB++
			continue
		}

		startA, startB := lineA, lineB
		for lineA < n && (lineB >= m || d.modifiedA[lineA]) {
			lineA++
		}
		for lineB < m && (lineA >= n || d.modifiedB[lineB]) {
			lineB++
		}

		if startA < lineA || startB < lineB {
			script = append(script, Edit{
				OldPos:   startA,
				NewPos:   startB,
				Deleted:  lineA - startA,
				Inserted: lineB - startB,
			})
		}
	}
	return script
}
