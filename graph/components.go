package graph

import "sort"

// Components partitions the labelled vertices into connected groups that
// share a label. Vertices for which label returns ok=false are ignored.
// Each component lists its members in BFS order starting from its lowest id;
// components are ordered by that lowest id.
//
// Time:   O(V + E).
// Memory: O(V) for visited flags and output.
func (g *Graph) Components(label func(id int) (int, bool)) [][]int {
	seen := make([]bool, len(g.adj))
	var comps [][]int

	for start := range g.adj {
		if seen[start] {
			continue
		}
		want, ok := label(start)
		if !ok {
			continue
		}

		queue := []int{start}
		seen[start] = true
		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			for _, v := range g.adj[u] {
				if seen[v] {
					continue
				}
				if l, ok := label(v); !ok || l != want {
					continue
				}
				seen[v] = true
				queue = append(queue, v)
			}
		}
		comps = append(comps, queue)
	}
	return comps
}

// Border returns the vertices adjacent to comp that are not in comp, in
// ascending order without duplicates.
func (g *Graph) Border(comp []int) []int {
	in := make(map[int]bool, len(comp))
	for _, u := range comp {
		in[u] = true
	}
	seen := make(map[int]bool)
	var out []int
	for _, u := range comp {
		for _, v := range g.Neighbors(u) {
			if in[v] || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
