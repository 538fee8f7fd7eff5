package graph

import "sort"

// Digraph is a directed graph whose edges carry a set of tags (relation IDs).
// Neighbour iteration is sorted so traversals are deterministic.
type Digraph struct {
	out map[string]map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

// NewDigraph returns an empty graph.
func NewDigraph() *Digraph {
	return &Digraph{
		out: make(map[string]map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddNode registers n. Adding a known node is a no-op.
func (g *Digraph) AddNode(n string) {
	if _, ok := g.out[n]; !ok {
		g.out[n] = make(map[string]map[string]struct{})
	}
	if _, ok := g.in[n]; !ok {
		g.in[n] = make(map[string]struct{})
	}
}

// HasNode reports whether n is registered.
func (g *Digraph) HasNode(n string) bool {
	_, ok := g.out[n]
	return ok
}

// AddEdge adds from->to carrying tag and reports whether the edge is new.
// Repeated calls only extend the tag set.
func (g *Digraph) AddEdge(from, to, tag string) bool {
	g.AddNode(from)
	g.AddNode(to)
	tags, ok := g.out[from][to]
	if !ok {
		tags = make(map[string]struct{})
		g.out[from][to] = tags
		g.in[to][from] = struct{}{}
	}
	if tag != "" {
		tags[tag] = struct{}{}
	}
	return !ok
}

// RemoveTag drops tag from from->to and deletes the edge once its tag set is
// empty. It reports whether the edge was deleted.
func (g *Digraph) RemoveTag(from, to, tag string) bool {
	tags, ok := g.out[from][to]
	if !ok {
		return false
	}
	delete(tags, tag)
	if len(tags) > 0 {
		return false
	}
	g.RemoveEdge(from, to)
	return true
}

// RemoveEdge deletes from->to regardless of its tags.
func (g *Digraph) RemoveEdge(from, to string) {
	if _, ok := g.out[from][to]; !ok {
		return
	}
	delete(g.out[from], to)
	delete(g.in[to], from)
}

// RemoveNode deletes n and every incident edge.
func (g *Digraph) RemoveNode(n string) {
	for to := range g.out[n] {
		delete(g.in[to], n)
	}
	for from := range g.in[n] {
		delete(g.out[from], n)
	}
	delete(g.out, n)
	delete(g.in, n)
}

// HasEdge reports whether from->to exists.
func (g *Digraph) HasEdge(from, to string) bool {
	_, ok := g.out[from][to]
	return ok
}

// Tags returns the sorted tag set of from->to.
func (g *Digraph) Tags(from, to string) []string {
	return sortedKeys(g.out[from][to])
}

// Nodes returns every node, sorted.
func (g *Digraph) Nodes() []string {
	out := make([]string, 0, len(g.out))
	for n := range g.out {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Successors returns the sorted targets of n's outgoing edges.
func (g *Digraph) Successors(n string) []string {
	return sortedKeys(g.out[n])
}

// Predecessors returns the sorted sources of n's incoming edges.
func (g *Digraph) Predecessors(n string) []string {
	return sortedKeys(g.in[n])
}

// TaggedEdge is an edge with its tags, as returned by Edges.
type TaggedEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Tags []string `json:"tags"`
}

// Edges lists every edge sorted by source then target.
func (g *Digraph) Edges() []TaggedEdge {
	var out []TaggedEdge
	for _, from := range g.Nodes() {
		for _, to := range g.Successors(from) {
			out = append(out, TaggedEdge{From: from, To: to, Tags: g.Tags(from, to)})
		}
	}
	return out
}

// EdgesTagged returns every edge carrying tag.
func (g *Digraph) EdgesTagged(tag string) []TaggedEdge {
	var out []TaggedEdge
	for _, e := range g.Edges() {
		for _, t := range e.Tags {
			if t == tag {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Path is a walk through the graph together with the tags of the edges it
// uses, in order of first appearance.
type Path struct {
	Nodes []string `json:"nodes"`
	Tags  []string `json:"tags"`
}

// ShortestPath runs a BFS from -> to restricted to nodes accepted by allow
// (nil allows all). A path from a node to itself needs at least one edge.
func (g *Digraph) ShortestPath(from, to string, allow func(string) bool) (Path, bool) {
	if !g.HasNode(from) || !g.HasNode(to) {
		return Path{}, false
	}
	parent := map[string]string{}
	visited := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.Successors(cur) {
			if allow != nil && !allow(nb) {
				continue
			}
			if nb == to {
				return g.tracePath(parent, from, cur, to), true
			}
			if visited[nb] || nb == from {
				continue
			}
			visited[nb] = true
			parent[nb] = cur
			queue = append(queue, nb)
		}
	}
	return Path{}, false
}

// tracePath rebuilds from ... last -> to using BFS parent pointers.
func (g *Digraph) tracePath(parent map[string]string, from, last, to string) Path {
	rev := []string{to, last}
	for cur := last; cur != from; {
		cur = parent[cur]
		rev = append(rev, cur)
	}
	nodes := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		nodes = append(nodes, rev[i])
	}
	if from == to {
		// Closed walk: drop the repeated endpoint.
		nodes = nodes[:len(nodes)-1]
	}
	return Path{Nodes: nodes, Tags: g.pathTags(nodes, from == to)}
}

func (g *Digraph) pathTags(nodes []string, closed bool) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(a, b string) {
		for _, t := range g.Tags(a, b) {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	for i := 0; i+1 < len(nodes); i++ {
		add(nodes[i], nodes[i+1])
	}
	if closed && len(nodes) > 0 {
		add(nodes[len(nodes)-1], nodes[0])
	}
	return tags
}

// Reachable returns every node reachable from n by one or more edges.
func (g *Digraph) Reachable(n string) map[string]struct{} {
	return g.closure(n, g.Successors)
}

// Reaching returns every node from which n is reachable by one or more edges.
func (g *Digraph) Reaching(n string) map[string]struct{} {
	return g.closure(n, g.Predecessors)
}

func (g *Digraph) closure(n string, next func(string) []string) map[string]struct{} {
	seen := map[string]struct{}{}
	stack := next(n)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, next(cur)...)
	}
	return seen
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
