package evaluation

import (
	"sort"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
)

// NodeDegree pairs a node id with its undirected degree, for the
// top-3-by-degree report.
type NodeDegree struct {
	ID     string
	Degree int
}

// GraphMetrics is the Graph stage report. `AvgDegree` is reported as the
// undirected form `2E/N` rather than the directed `E/N` form seen in some
// graph-metrics references.
type GraphMetrics struct {
	NodeCount                int
	EdgeCount                int
	GraphDensity             float64
	AvgClusteringCoefficient float64
	ConnectedComponents      int
	AvgDegree                float64
	MaxDegree                int
	TopByDegree              []NodeDegree
}

// BuildGraph computes topology metrics over an undirected projection of
// the inferred relation set. Bidirectionally-emitted similarity edges are
// deduplicated to a single undirected edge via relation.Normalize before
// any metric is computed, per the design note
func BuildGraph(relations []relation.Relation) GraphMetrics {
	nodes := make(map[string]struct{})
	edgeSet := make(map[relation.Normalized]struct{})
	for _, r := range relations {
		nodes[r.FromID] = struct{}{}
		nodes[r.ToID] = struct{}{}
		if r.FromID == r.ToID {
			continue
		}
		edgeSet[relation.Normalize(r.FromID, r.ToID)] = struct{}{}
	}

	adj := make(map[string]map[string]struct{}, len(nodes))
	for n := range nodes {
		adj[n] = make(map[string]struct{})
	}
	for pair := range edgeSet {
		adj[pair.Low][pair.High] = struct{}{}
		adj[pair.High][pair.Low] = struct{}{}
	}

	n := len(nodes)
	e := len(edgeSet)

	metrics := GraphMetrics{
		NodeCount: n,
		EdgeCount: e,
	}
	if n > 1 {
		maxEdges := float64(n) * float64(n-1) / 2
		metrics.GraphDensity = float64(e) / maxEdges
		metrics.AvgDegree = 2 * float64(e) / float64(n)
	}

	degrees := make([]NodeDegree, 0, n)
	var sumCoeff float64
	var coeffCount int
	for id, neighbors := range adj {
		deg := len(neighbors)
		degrees = append(degrees, NodeDegree{ID: id, Degree: deg})
		if deg > metrics.MaxDegree {
			metrics.MaxDegree = deg
		}
		if deg >= 2 {
			links := 0
			neighborList := make([]string, 0, deg)
			for nb := range neighbors {
				neighborList = append(neighborList, nb)
			}
			for i := 0; i < len(neighborList); i++ {
				for j := i + 1; j < len(neighborList); j++ {
					if _, ok := adj[neighborList[i]][neighborList[j]]; ok {
						links++
					}
				}
			}
			possible := float64(deg) * float64(deg-1) / 2
			sumCoeff += float64(links) / possible
			coeffCount++
		}
	}
	if coeffCount > 0 {
		metrics.AvgClusteringCoefficient = sumCoeff / float64(coeffCount)
	}

	sort.Slice(degrees, func(i, j int) bool {
		if degrees[i].Degree != degrees[j].Degree {
			return degrees[i].Degree > degrees[j].Degree
		}
		return degrees[i].ID < degrees[j].ID
	})
	top := 3
	if top > len(degrees) {
		top = len(degrees)
	}
	metrics.TopByDegree = degrees[:top]

	metrics.ConnectedComponents = countComponents(adj)
	return metrics
}

// countComponents runs iterative DFS over the adjacency map, counting
// connected components.
func countComponents(adj map[string]map[string]struct{}) int {
	visited := make(map[string]bool, len(adj))
	components := 0
	for start := range adj {
		if visited[start] {
			continue
		}
		components++
		stack := []string{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[node] {
				continue
			}
			visited[node] = true
			for neighbor := range adj[node] {
				if !visited[neighbor] {
					stack = append(stack, neighbor)
				}
			}
		}
	}
	return components
}
