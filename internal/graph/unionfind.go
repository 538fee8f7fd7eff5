package graph

import "sort"

// UnionFind maintains contemporaneity groups as disjoint sets with path
// compression and union by rank. It is not safe for concurrent use; the
// orchestrator serializes access.
type UnionFind struct {
	parent map[string]string
	rank   map[string]int

	// members maps each root to its sorted member list. Nil means stale; it is
	// rebuilt on the next read after a union.
	members map[string][]string
}

// NewUnionFind returns an empty structure.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// MakeSet registers id as a singleton group. It reports false when id was
// already known.
func (u *UnionFind) MakeSet(id string) bool {
	if _, ok := u.parent[id]; ok {
		return false
	}
	u.parent[id] = id
	u.rank[id] = 0
	u.members = nil
	return true
}

// Has reports whether id was registered.
func (u *UnionFind) Has(id string) bool {
	_, ok := u.parent[id]
	return ok
}

// Len returns the number of registered elements.
func (u *UnionFind) Len() int {
	return len(u.parent)
}

// Find returns the representative of id's group. Unknown ids are their own
// representative and are not registered.
func (u *UnionFind) Find(id string) string {
	if _, ok := u.parent[id]; !ok {
		return id
	}
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Second pass: point every node on the path straight at the root.
	for cur := id; cur != root; {
		next := u.parent[cur]
		u.parent[cur] = root
		cur = next
	}
	return root
}

// Union merges the groups of a and b, registering either if needed. It
// returns the surviving representative and whether a merge happened. On equal
// rank the representative of a wins.
func (u *UnionFind) Union(a, b string) (string, bool) {
	u.MakeSet(a)
	u.MakeSet(b)
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return ra, false
	}
	winner, loser := u.order(ra, rb)
	u.parent[loser] = winner
	if u.rank[winner] == u.rank[loser] {
		u.rank[winner]++
	}
	u.members = nil
	return winner, true
}

func (u *UnionFind) order(ra, rb string) (winner, loser string) {
	if u.rank[ra] < u.rank[rb] {
		return rb, ra
	}
	return ra, rb
}

// Connected reports whether a and b share a group.
func (u *UnionFind) Connected(a, b string) bool {
	return a == b || u.Find(a) == u.Find(b)
}

// GroupMembers returns the sorted members of id's group. An unknown id yields
// a singleton.
func (u *UnionFind) GroupMembers(id string) []string {
	if !u.Has(id) {
		return []string{id}
	}
	u.ensureMembers()
	src := u.members[u.Find(id)]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Groups returns every group keyed by representative.
func (u *UnionFind) Groups() map[string][]string {
	u.ensureMembers()
	out := make(map[string][]string, len(u.members))
	for root, m := range u.members {
		cp := make([]string, len(m))
		copy(cp, m)
		out[root] = cp
	}
	return out
}

func (u *UnionFind) ensureMembers() {
	if u.members != nil {
		return
	}
	u.members = make(map[string][]string)
	for id := range u.parent {
		root := u.Find(id)
		u.members[root] = append(u.members[root], id)
	}
	for _, m := range u.members {
		sort.Strings(m)
	}
}

// UnionPreview describes what Union would do without doing it.
type UnionPreview struct {
	Merged         bool
	Representative string
	Absorbed       string
	Members        []string
}

// SimulateUnion previews Union(a, b). It does not register unknown ids or
// alter ranks; only path compression may touch internal state.
func (u *UnionFind) SimulateUnion(a, b string) UnionPreview {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return UnionPreview{Representative: ra, Members: u.GroupMembers(a)}
	}
	winner, loser := u.order(ra, rb)
	members := append(u.GroupMembers(a), u.GroupMembers(b)...)
	sort.Strings(members)
	return UnionPreview{
		Merged:         true,
		Representative: winner,
		Absorbed:       loser,
		Members:        members,
	}
}
