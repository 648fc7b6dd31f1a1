package geo

import "sort"

// ConvexHull returns the planar convex hull of pts in counter-clockwise order,
// without repeating the first vertex. Collinear points are dropped and the
// elevation of each kept input point is preserved.
func ConvexHull(pts []Coordinate) []Coordinate {
	sorted := make([]Coordinate, len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	uniq := sorted[:0]
	for i, p := range sorted {
		if i > 0 && p.Equals2D(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, p)
	}
	if len(uniq) < 3 {
		return uniq
	}

	hull := make([]Coordinate, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && Cross2D(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && Cross2D(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// RingPerimeter is the planar length of the closed ring through pts.
func RingPerimeter(pts []Coordinate) float64 {
	if len(pts) < 2 {
		return 0
	}
	return PathLength2D(pts) + pts[len(pts)-1].Distance2D(pts[0])
}

// UpperHull returns the upper convex chain of points already sorted by U,
// from the first point to the last.
func UpperHull(pts []Point2) []int {
	idx := make([]int, 0, len(pts))
	for i := range pts {
		for len(idx) >= 2 {
			a, b := pts[idx[len(idx)-2]], pts[idx[len(idx)-1]]
			// b is under the chord a→pts[i]
			if (b.U-a.U)*(pts[i].Z-a.Z)-(b.Z-a.Z)*(pts[i].U-a.U) >= 0 {
				idx = idx[:len(idx)-1]
				continue
			}
			break
		}
		idx = append(idx, i)
	}
	return idx
}
