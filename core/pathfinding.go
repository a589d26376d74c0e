package core

import "container/list"

const (
	// Unreachable is the distance reported for targets beyond the search cap
	// or not connected to the start at all.
	Unreachable = 999
	// DefaultDistanceCap bounds how far distance queries search.
	DefaultDistanceCap = 10
)

// Adjacency is the read-only view of the world graph used by graph search.
type Adjacency interface {
	Neighbors(hostname string) []string
}

// ShortestNextHop returns the neighbour of start that lies on a shortest
// path to target. It reports false when start == target or target cannot
// be reached. Ties go to whichever neighbour was enqueued first.
func ShortestNextHop(g Adjacency, start, target string) (string, bool) {
	if start == target {
		return "", false
	}

	queue := list.New()
	parent := map[string]string{start: start}
	queue.PushBack(start)

	for queue.Len() > 0 {
		current := queue.Remove(queue.Front()).(string)
		if current == target {
			break
		}
		for _, next := range g.Neighbors(current) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			queue.PushBack(next)
		}
	}

	if _, found := parent[target]; !found {
		return "", false
	}
	hop := target
	for parent[hop] != start {
		hop = parent[hop]
	}
	return hop, true
}

// Distances runs one bounded BFS from start and returns the hop count of
// every node within maxDepth hops, start included at 0.
func Distances(g Adjacency, start string, maxDepth int) map[string]int {
	dist := map[string]int{start: 0}
	queue := list.New()
	queue.PushBack(start)

	for queue.Len() > 0 {
		current := queue.Remove(queue.Front()).(string)
		d := dist[current]
		if d >= maxDepth {
			continue
		}
		for _, next := range g.Neighbors(current) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = d + 1
			queue.PushBack(next)
		}
	}
	return dist
}

// Distance is the BFS hop count from start to target, or Unreachable when
// target lies more than maxDepth hops away or is disconnected.
func Distance(g Adjacency, start, target string, maxDepth int) int {
	if start == target {
		return 0
	}
	if d, ok := Distances(g, start, maxDepth)[target]; ok {
		return d
	}
	return Unreachable
}

// distanceTable caches one BFS per tick per agent position.
type distanceTable map[string]int

func (t distanceTable) to(host string) int {
	if d, ok := t[host]; ok {
		return d
	}
	return Unreachable
}
