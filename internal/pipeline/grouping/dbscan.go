package grouping

// noiseLabel marks points not assigned to any dense region.
const noiseLabel = -1

// dbscan runs density-based clustering over a precomputed distance
// matrix. Returns one label per point; noise points get noiseLabel.
// Points are visited in index order, so labels are reproducible for a
// fixed matrix. Label numbering itself carries no meaning.
func dbscan(dist [][]float64, eps float64, minPts int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, n)

	cluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(dist, i, eps)
		if len(neighbors) < minPts {
			continue
		}

		labels[i] = cluster
		// Expand the cluster breadth-first over density-reachable points.
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			p := queue[qi]
			if !visited[p] {
				visited[p] = true
				pn := regionQuery(dist, p, eps)
				if len(pn) >= minPts {
					queue = append(queue, pn...)
				}
			}
			if labels[p] == noiseLabel {
				labels[p] = cluster
			}
		}
		cluster++
	}

	return labels
}

// regionQuery returns the indices within eps of point i, including i
// itself, in ascending index order.
func regionQuery(dist [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range dist[i] {
		if dist[i][j] <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
