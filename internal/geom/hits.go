package geom

// FindHits returns the indices, in input order, of the strokes that have at
// least one point within radius of p. Distances are compared squared against
// radius². A stroke is reported once, at its first matching point; strokes
// without points never match. With radius 0 only exact matches count.
//
// There is no spatial index; each stroke's bounding box is used to skip
// strokes that cannot match.
func FindHits(p Point, strokes [][]Point, radius float64) []int {
	if radius < 0 {
		return []int{}
	}
	sqRadius := radius * radius

	hits := []int{}
	for i, stroke := range strokes {
		if len(stroke) == 0 {
			continue
		}
		if BoundsOf(stroke).SqDistTo(p) > sqRadius {
			continue
		}
		for _, q := range stroke {
			if p.SqDist(q) <= sqRadius {
				hits = append(hits, i)
				break
			}
		}
	}
	return hits
}
