package graph

import "sort"

// Components computes the strongly connected components of g with an
// iterative Tarjan traversal. Only cyclic components are returned: those with
// two or more nodes, or a single node carrying a self-loop. Each component is
// sorted and the list is ordered by first member.
func (g *Digraph) Components() [][]string {
	type frame struct {
		node string
		next int
		succ []string
	}

	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var comps [][]string

	for _, root := range g.Nodes() {
		if _, seen := indices[root]; seen {
			continue
		}
		work := []*frame{{node: root, succ: g.Successors(root)}}
		indices[root], lowlink[root] = index, index
		index++
		stack = append(stack, root)
		onStack[root] = true

		for len(work) > 0 {
			f := work[len(work)-1]
			if f.next < len(f.succ) {
				w := f.succ[f.next]
				f.next++
				if _, seen := indices[w]; !seen {
					indices[w], lowlink[w] = index, index
					index++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, &frame{node: w, succ: g.Successors(w)})
				} else if onStack[w] && indices[w] < lowlink[f.node] {
					lowlink[f.node] = indices[w]
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].node
				if lowlink[f.node] < lowlink[parent] {
					lowlink[parent] = lowlink[f.node]
				}
			}
			if lowlink[f.node] != indices[f.node] {
				continue
			}
			var comp []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp = append(comp, top)
				if top == f.node {
					break
				}
			}
			if len(comp) > 1 || g.HasEdge(comp[0], comp[0]) {
				sort.Strings(comp)
				comps = append(comps, comp)
			}
		}
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// ComponentIndex maps every node of a cyclic component to that component's
// position in comps.
func ComponentIndex(comps [][]string) map[string]int {
	idx := make(map[string]int)
	for i, c := range comps {
		for _, n := range c {
			idx[n] = i
		}
	}
	return idx
}

// Cycles returns one concrete cycle per cyclic component, starting at the
// component's smallest node.
func (g *Digraph) Cycles() []Path {
	var out []Path
	for _, comp := range g.Components() {
		members := make(map[string]bool, len(comp))
		for _, n := range comp {
			members[n] = true
		}
		if p, ok := g.ShortestPath(comp[0], comp[0], func(n string) bool { return members[n] }); ok {
			out = append(out, p)
		}
	}
	return out
}
