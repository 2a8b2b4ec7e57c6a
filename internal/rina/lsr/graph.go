// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import "sort"

// Metric weighs an edge between two addresses. The default metric is a
// constant 1 (hop count); callers may supply a policy-specific metric.
type Metric func(a, b Address) int

// UnitMetric is the default policy: every edge costs 1.
func UnitMetric(_, _ Address) int { return 1 }

type edge struct {
	to     Address
	weight int
}

// buildGraph derives an undirected adjacency list from the FSO snapshots:
// vertices are the union of every source/neighbor address seen, and an
// edge (A,B) exists only when both the (A,B) and (B,A) FSOs are up=true.
func buildGraph(fsos []Snapshot, metric Metric) map[Address][]edge {
	up := make(map[Key]bool, len(fsos))
	vertices := make(map[Address]struct{})
	for _, f := range fsos {
		up[f.Key] = f.Up
		vertices[f.Source] = struct{}{}
		vertices[f.Neighbor] = struct{}{}
	}

	graph := make(map[Address][]edge, len(vertices))
	for v := range vertices {
		graph[v] = nil
	}
	for k, ok := range up {
		if !ok {
			continue
		}
		if up[Key{Source: k.Neighbor, Neighbor: k.Source}] {
			graph[k.Source] = append(graph[k.Source], edge{to: k.Neighbor, weight: metric(k.Source, k.Neighbor)})
		}
	}
	return graph
}

// Dijkstra runs shortest-path from self over graph, returning, for every
// reachable vertex other than self, the address of the first hop out of
// self on a shortest path. Ties are broken deterministically: among equal-
// distance predecessors for a vertex, the numerically (lexicographically)
// smaller address wins.
func dijkstra(graph map[Address][]edge, self Address) map[Address]Address {
	const inf = int(^uint(0) >> 1)

	dist := make(map[Address]int, len(graph))
	pred := make(map[Address]Address, len(graph))
	visited := make(map[Address]bool, len(graph))
	for v := range graph {
		dist[v] = inf
	}
	dist[self] = 0

	for {
		// Pick the unvisited vertex with the smallest known distance.
		var u Address
		found := false
		best := inf
		for v, d := range dist {
			if visited[v] {
				continue
			}
			if !found || d < best || (d == best && v < u) {
				best, u, found = d, v, true
			}
		}
		if !found || dist[u] == inf {
			break
		}
		visited[u] = true

		neighbors := make([]edge, len(graph[u]))
		copy(neighbors, graph[u])
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].to < neighbors[j].to })

		for _, e := range neighbors {
			if visited[e.to] {
				continue
			}
			nd := dist[u] + e.weight
			if nd < dist[e.to] {
				dist[e.to] = nd
				pred[e.to] = u
			} else if nd == dist[e.to] {
				if cur, ok := pred[e.to]; !ok || u < cur {
					pred[e.to] = u
				}
			}
		}
	}

	firstHop := make(map[Address]Address, len(pred))
	for v := range dist {
		if v == self || dist[v] == inf {
			continue
		}
		hop := v
		for pred[hop] != self {
			next, ok := pred[hop]
			if !ok {
				hop = ""
				break
			}
			hop = next
		}
		if hop != "" {
			firstHop[v] = hop
		}
	}
	return firstHop
}

// route resolves the local egress port for the first hop out of self on the
// shortest path toward every other reachable address, breaking port ties by
// choosing the numerically smaller port among the FSOs tying for that hop.
func route(fsos []Snapshot, self Address, metric Metric) []ForwardingEntry {
	graph := buildGraph(fsos, metric)
	hops := dijkstra(graph, self)

	entries := make([]ForwardingEntry, 0, len(hops))
	for dest, hop := range hops {
		port, ok := firstHopPort(fsos, self, hop)
		if !ok {
			continue
		}
		entries = append(entries, ForwardingEntry{Destination: dest, Port: port})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Destination < entries[j].Destination })
	return entries
}

// firstHopPort returns the smallest SourcePort among up FSOs from self to
// hop, implementing the second tie-break rule ("equal predecessors offer
// multiple ports, choose the numerically smaller port").
func firstHopPort(fsos []Snapshot, self, hop Address) (int, bool) {
	best := -1
	for _, f := range fsos {
		if f.Source != self || f.Neighbor != hop || !f.Up {
			continue
		}
		if best == -1 || f.SourcePort < best {
			best = f.SourcePort
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
