package loopgen

import "sort"

// contourSide tags which of a monotone polygon's two chains a vertex
// belongs to, matching loop_triangulation.hpp's ContourSide enum
// (CONTOUR_SIDE_LEFT/CONTOUR_SIDE_RIGHT).
type contourSide uint8

const (
	contourSideLeft contourSide = iota
	contourSideRight
)

// interval is the sweep status's active edge: the "down" boundary edge
// currently crossing the sweep line, keyed by its fixed x on the 2x corner
// grid (every loop edge is axis-aligned, so a persisting edge is always
// vertical and never needs y-interpolation), with the helper vertex the
// reflex-chain construction attaches diagonals to. Named for
// loop_triangulation.hpp's Interval, which plays the same role against the
// original's loop/segment buffers instead of an in-memory point slice.
type interval struct {
	edgeIdx int // index i into the loop's Points, s.t. this edge is (Points[i], Points[i+1])
	x       int
	helper  int
}

// triangulateLoop triangulates one Loop's boundary (already a single simple
// polygon, any holes having been bridged in by bridgeHoles) via the
// sweep-line monotone decomposition from loop_triangulation.hpp: classify
// vertices, decompose into y-monotone contours with reflex-chain diagonals,
// then triangulate each contour with the standard stack-based monotone
// triangulation. If the decomposition produces a result that fails the
// Euler-formula sanity check (e.g. an unhandled degenerate configuration
// among horizontal boundary runs — see sweepDiagonals), this falls back to
// ear clipping so a single bad loop can't drop a layer's geometry.
func triangulateLoop(loop Loop) [][3]int {
	pts := loop.Points
	n := len(pts)
	if n < 3 {
		return nil
	}

	tris := func() (result [][3]int) {
		defer func() {
			if recover() != nil {
				result = nil
			}
		}()
		diagonals := sweepDiagonals(pts)
		identity := make([]int, n)
		for i := range identity {
			identity[i] = i
		}
		pieces := splitByDiagonals(identity, diagonals)
		var out [][3]int
		for _, piece := range pieces {
			out = append(out, triangulateMonotone(piece, pts)...)
		}
		return out
	}()

	if validTriangulation(tris, n) {
		return filterDegenerate(tris, pts)
	}
	return triangulateLoopEarClip(pts)
}

func validTriangulation(tris [][3]int, n int) bool {
	if tris == nil {
		return false
	}
	// A simple polygon of n vertices (bridge seams included) always
	// triangulates into exactly n-2 triangles.
	return len(tris) == n-2
}

func filterDegenerate(tris [][3]int, pts []point) [][3]int {
	out := tris[:0]
	for _, tri := range tris {
		if crossPoints(pts[tri[0]], pts[tri[1]], pts[tri[2]]) != 0 {
			out = append(out, tri)
		}
	}
	return out
}

// higher orders two points the way the sweep processes vertices: top to
// bottom (larger y first), breaking ties on equal y by ascending x. Using
// this total order consistently — rather than raw y comparisons — is what
// keeps the algorithm well-defined on the many shared-y vertices a
// rectilinear boundary produces.
func higher(a, b point) bool {
	if a.y != b.y {
		return a.y > b.y
	}
	return a.x < b.x
}

func crossPoints(a, b, c point) int {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

type vtxType uint8

const (
	vStart vtxType = iota
	vEnd
	vSplit
	vMerge
	vRegular
)

func classify(pts []point) []vtxType {
	n := len(pts)
	types := make([]vtxType, n)
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		cur := pts[i]
		next := pts[(i+1)%n]
		prevHigher := higher(prev, cur)
		nextHigher := higher(next, cur)
		convex := crossPoints(prev, cur, next) >= 0

		switch {
		case prevHigher && nextHigher:
			if convex {
				types[i] = vStart
			} else {
				types[i] = vSplit
			}
		case !prevHigher && !nextHigher:
			if convex {
				types[i] = vEnd
			} else {
				types[i] = vMerge
			}
		default:
			types[i] = vRegular
		}
	}
	return types
}

// sweepDiagonals runs loop_triangulation.hpp's reflex-chain sweep
// (MakeMonotone): a single top-to-bottom pass over the loop's vertices,
// maintaining the set of active "down" edges (Interval) sorted by x, that
// emits the non-crossing diagonal set splitting the polygon into
// y-monotone pieces. Horizontal boundary runs — unavoidable on a
// rectilinear loop, but degenerate in the classic algorithm's assumption of
// general-position input — are keyed into the status by their start
// vertex's x; see the package doc for why the caller falls back to ear
// clipping if this produces an invalid result.
func sweepDiagonals(pts []point) [][2]int {
	n := len(pts)
	types := classify(pts)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return higher(pts[order[a]], pts[order[b]]) })

	prevIdx := func(i int) int { return (i - 1 + n) % n }

	var status []interval
	var diagonals [][2]int

	findLeft := func(x int) int {
		best := -1
		for si, s := range status {
			if s.x <= x && (best == -1 || status[best].x < s.x) {
				best = si
			}
		}
		return best
	}
	removeEdge := func(edgeIdx int) *interval {
		for si := range status {
			if status[si].edgeIdx == edgeIdx {
				h := status[si].helper
				status = append(status[:si], status[si+1:]...)
				return &interval{helper: h}
			}
		}
		return nil
	}
	insertEdge := func(edgeIdx, helper int) {
		status = append(status, interval{edgeIdx: edgeIdx, x: pts[edgeIdx].x, helper: helper})
	}
	addDiagonal := func(a, b int) {
		if a != b {
			diagonals = append(diagonals, [2]int{a, b})
		}
	}

	for _, i := range order {
		switch types[i] {
		case vStart:
			insertEdge(i, i)
		case vSplit:
			li := findLeft(pts[i].x)
			if li >= 0 {
				addDiagonal(i, status[li].helper)
				status[li].helper = i
			}
			insertEdge(i, i)
		case vEnd:
			if removed := removeEdge(prevIdx(i)); removed != nil && types[removed.helper] == vMerge {
				addDiagonal(i, removed.helper)
			}
		case vMerge:
			if removed := removeEdge(prevIdx(i)); removed != nil && types[removed.helper] == vMerge {
				addDiagonal(i, removed.helper)
			}
			li := findLeft(pts[i].x)
			if li >= 0 {
				if types[status[li].helper] == vMerge {
					addDiagonal(i, status[li].helper)
				}
				status[li].helper = i
			}
		default: // vRegular
			if higher(pts[prevIdx(i)], pts[i]) {
				if removed := removeEdge(prevIdx(i)); removed != nil && types[removed.helper] == vMerge {
					addDiagonal(i, removed.helper)
				}
				insertEdge(i, i)
			} else {
				li := findLeft(pts[i].x)
				if li >= 0 {
					if types[status[li].helper] == vMerge {
						addDiagonal(i, status[li].helper)
					}
					status[li].helper = i
				}
			}
		}
	}
	return diagonals
}

// splitByDiagonals recursively partitions a polygon (given as a slice of
// original Points indices, in boundary order) along a non-crossing diagonal
// set into its monotone pieces, exploiting that each diagonal's endpoints
// always either both lie within, or both lie outside, any other diagonal's
// span (guaranteed by the sweep never producing crossing diagonals).
func splitByDiagonals(poly []int, diagonals [][2]int) [][]int {
	if len(diagonals) == 0 {
		return [][]int{poly}
	}
	d := diagonals[0]
	rest := diagonals[1:]

	ia, ib := indexOf(poly, d[0]), indexOf(poly, d[1])
	if ia < 0 || ib < 0 || ia == ib {
		return splitByDiagonals(poly, rest)
	}
	if ia > ib {
		ia, ib = ib, ia
	}

	sub1 := append([]int(nil), poly[ia:ib+1]...)
	sub2 := append(append([]int(nil), poly[ib:]...), poly[:ia+1]...)

	return append(splitByDiagonals(sub1, applicable(rest, sub1)), splitByDiagonals(sub2, applicable(rest, sub2))...)
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func applicable(diagonals [][2]int, poly []int) [][2]int {
	set := make(map[int]bool, len(poly))
	for _, v := range poly {
		set[v] = true
	}
	var out [][2]int
	for _, d := range diagonals {
		if set[d[0]] && set[d[1]] {
			out = append(out, d)
		}
	}
	return out
}

// triangulateMonotone triangulates a single y-monotone polygon (given as
// original-Points indices in boundary order) with the standard O(n)
// reflex-chain stack algorithm: merge both chains into one top-to-bottom
// event order, and fan or peel ears off the stack depending on whether the
// next vertex continues the current chain.
func triangulateMonotone(poly []int, pts []point) [][3]int {
	n := len(poly)
	if n < 3 {
		return nil
	}
	if n == 3 {
		return [][3]int{{poly[0], poly[1], poly[2]}}
	}

	topPos, botPos := 0, 0
	for i := 1; i < n; i++ {
		if higher(pts[poly[i]], pts[poly[topPos]]) {
			topPos = i
		}
		if higher(pts[poly[botPos]], pts[poly[i]]) {
			botPos = i
		}
	}

	side := make([]contourSide, n)
	for i := topPos; i != botPos; i = (i + 1) % n {
		side[i] = contourSideRight
	}
	side[botPos] = contourSideRight
	side[topPos] = contourSideLeft

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return higher(pts[poly[order[a]]], pts[poly[order[b]]]) })

	var tris [][3]int
	stack := []int{order[0], order[1]}

	for j := 2; j < n; j++ {
		uj := order[j]
		if j == n-1 {
			for k := 0; k < len(stack)-1; k++ {
				tris = append(tris, [3]int{poly[uj], poly[stack[k]], poly[stack[k+1]]})
			}
			break
		}
		top := stack[len(stack)-1]
		if side[uj] != side[top] {
			for k := 0; k < len(stack)-1; k++ {
				tris = append(tris, [3]int{poly[uj], poly[stack[k]], poly[stack[k+1]]})
			}
			stack = []int{top, uj}
		} else {
			popped := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for len(stack) > 0 && diagonalInside(pts, poly[uj], poly[stack[len(stack)-1]], poly[popped], side[uj]) {
				next := stack[len(stack)-1]
				tris = append(tris, [3]int{poly[uj], poly[next], poly[popped]})
				popped = next
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, popped, uj)
		}
	}
	return tris
}

func diagonalInside(pts []point, uj, a, b int, s contourSide) bool {
	cross := crossPoints(pts[a], pts[b], pts[uj])
	if s == contourSideRight {
		return cross > 0
	}
	return cross < 0
}

// triangulateLoopEarClip is the defensive fallback: a generic O(n^2)
// ear-clipper used only when sweepDiagonals/triangulateMonotone produce a
// result that fails validTriangulation's sanity check, so a single
// pathological loop degrades to stair-stepped-but-correct geometry instead
// of dropping that view's mesh entirely.
func triangulateLoopEarClip(loop []point) [][3]int {
	n := len(loop)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	var tris [][3]int
	guard := 0
	for len(idx) > 3 && guard < n*n {
		guard++
		earFound := false
		for i := 0; i < len(idx); i++ {
			a := idx[(i+len(idx)-1)%len(idx)]
			b := idx[i]
			c := idx[(i+1)%len(idx)]
			if isEar(loop, idx, a, b, c) {
				tris = append(tris, [3]int{a, b, c})
				idx = append(idx[:i], idx[i+1:]...)
				earFound = true
				break
			}
		}
		if !earFound {
			break
		}
	}
	if len(idx) == 3 {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	return tris
}

func isEar(loop []point, remaining []int, a, b, c int) bool {
	pa, pb, pc := loop[a], loop[b], loop[c]
	if crossPoints(pa, pb, pc) <= 0 {
		return false
	}
	for _, r := range remaining {
		if r == a || r == b || r == c {
			continue
		}
		if pointInTriangle(loop[r], pa, pb, pc) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c point) bool {
	sign := func(p1, p2, p3 point) int {
		return (p1.x-p3.x)*(p2.y-p3.y) - (p2.x-p3.x)*(p1.y-p3.y)
	}
	d1 := sign(p, a, b)
	d2 := sign(p, b, c)
	d3 := sign(p, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}
