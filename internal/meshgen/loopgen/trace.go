package loopgen

import (
	"math"
	"sort"
)

// traceLoops groups connected "closed" pixels (8-connectivity) into regions
// via flood fill — the CPU stand-in for the vector/split/base/combine/
// distribute passes, which on the GPU label closed-pixel components
// hierarchically through the mip pyramid rather than in one flat pass; the
// labeling they converge on is the same connected-component partition this
// produces directly. For each region this then traces every boundary ring
// it has on the 2x corner grid (one outer ring, plus one ring per enclosed
// hole), bridges each hole into the outer ring so every Loop is a single
// simple polygon with a depth-sentinel seam (mirroring how the original's
// write pass emits bridge points into the shared segment buffer), and
// compresses the result into LoopSegments.
func traceLoops(f *Frame) []Loop {
	w, h := f.gbuffer.Width, f.gbuffer.Height
	visited := make([]bool, w*h)
	var loops []Loop

	var stack []int
	for start, isClosed := range f.closed {
		if !isClosed || visited[start] {
			continue
		}
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true
		var region []int
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			region = append(region, idx)
			cx, cy := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := cx+dx, cy+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					nIdx := ny*w + nx
					if f.closed[nIdx] && !visited[nIdx] {
						visited[nIdx] = true
						stack = append(stack, nIdx)
					}
				}
			}
		}

		rings := regionRings(region, w)
		if len(rings) == 0 {
			continue
		}
		outer, holes := rings[0], rings[1:]
		pts, bridge := bridgeHoles(outer, holes)
		loops = append(loops, Loop{
			Points:   pts,
			Bridge:   bridge,
			Segments: compressToSegments(pts),
		})
	}
	return loops
}

// regionRings computes every boundary ring of a pixel region — the outer
// ring plus one ring per enclosed hole — in 2x corner coordinates, by
// collecting each pixel's un-shared edges and chaining them corner-to-
// corner. A region with no holes traces a single ring; an annular region
// (one with background enclosed inside it) traces its outer ring and one
// additional ring per hole, returned longest-first so index 0 is always the
// outer ring.
func regionRings(region []int, w int) [][]point {
	set := make(map[int]bool, len(region))
	for _, idx := range region {
		set[idx] = true
	}

	edgesFrom := make(map[point]point)
	addEdge := func(a, b point) { edgesFrom[a] = b }

	for _, idx := range region {
		x, y := idx%w, idx/w
		cx, cy := 2*x, 2*y
		if !set[idx-1] || x == 0 {
			addEdge(point{cx, cy + 2}, point{cx, cy})
		}
		if !set[idx+1] || x+1 >= w {
			addEdge(point{cx + 2, cy}, point{cx + 2, cy + 2})
		}
		if y == 0 || !set[idx-w] {
			addEdge(point{cx, cy}, point{cx + 2, cy})
		}
		if !set[idx+w] {
			addEdge(point{cx + 2, cy + 2}, point{cx, cy + 2})
		}
	}

	chains := traceAllChains(edgesFrom)
	sort.Slice(chains, func(i, j int) bool { return len(chains[i]) > len(chains[j]) })
	return chains
}

// traceAllChains walks a corner-to-corner edge map into its disjoint closed
// cycles. A simply-connected region produces one cycle (the outer
// boundary); an annular region produces the outer boundary plus one cycle
// per hole, since each hole's un-shared edges form their own closed chain
// that the single-start walk a simpler tracer would use can't reach.
func traceAllChains(edgesFrom map[point]point) [][]point {
	visited := make(map[point]bool, len(edgesFrom))
	var chains [][]point
	for start := range edgesFrom {
		if visited[start] {
			continue
		}
		var chain []point
		cur := start
		for i := 0; i <= len(edgesFrom); i++ {
			if visited[cur] {
				break
			}
			visited[cur] = true
			chain = append(chain, cur)
			next, ok := edgesFrom[cur]
			if !ok {
				break
			}
			cur = next
			if cur == start {
				break
			}
		}
		if len(chain) >= 3 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// bridgeHoles splices each hole ring into the outer ring at the pair of
// points closest to one another, duplicating both connection points (one
// pair marked as bridge seam) so the result is a single simple polygon —
// the standard keyhole technique, matching how the original's write pass
// threads a hole's LoopPoints into its enclosing loop via a zero-area
// bridge rather than emitting a second, disconnected Loop.
func bridgeHoles(outer []point, holes [][]point) ([]point, []bool) {
	pts := append([]point(nil), outer...)
	bridge := make([]bool, len(pts))

	for _, hole := range holes {
		if len(hole) < 3 {
			continue
		}
		oi, hi := nearestPair(pts, hole)

		spliced := make([]point, 0, len(pts)+len(hole)+2)
		splicedBridge := make([]bool, 0, cap(spliced))

		spliced = append(spliced, pts[:oi+1]...)
		splicedBridge = append(splicedBridge, bridge[:oi+1]...)

		spliced = append(spliced, pts[oi])
		splicedBridge = append(splicedBridge, true)

		for k := 0; k <= len(hole); k++ {
			idx := (hi + k) % len(hole)
			spliced = append(spliced, hole[idx])
			splicedBridge = append(splicedBridge, k == 0 || k == len(hole))
		}

		spliced = append(spliced, pts[oi])
		splicedBridge = append(splicedBridge, true)

		spliced = append(spliced, pts[oi+1:]...)
		splicedBridge = append(splicedBridge, bridge[oi+1:]...)

		pts, bridge = spliced, splicedBridge
	}
	return pts, bridge
}

func nearestPair(outer, hole []point) (oi, hi int) {
	best := math.MaxInt64
	for i, a := range outer {
		for j, b := range hole {
			if d := sqDist(a, b); d < best {
				best, oi, hi = d, i, j
			}
		}
	}
	return oi, hi
}

func sqDist(a, b point) int {
	dx, dy := a.x-b.x, a.y-b.y
	return dx*dx + dy*dy
}
