package core

// DefaultLinkThreshold is the maximum hub-to-module distance for a docking
// port connection.
const DefaultLinkThreshold = 3.0

// GraphNode is the view of a module the topology needs.
type GraphNode struct {
	ID         string
	Position   Vec3
	Docked     bool
	InitialHub bool
}

// TopologyGraph is the hub-and-spoke adjacency of the station. Edges only
// ever join the initial hub to a docked module near it; modules are not
// connected to each other.
type TopologyGraph struct {
	// Threshold is the maximum hub distance for an edge.
	Threshold float64

	hubID string
	nodes map[string]struct{}
	// adj keeps neighbours in insertion order so BFS is deterministic.
	adj map[string][]string
}

// NewTopologyGraph returns an empty graph with the given link threshold.
func NewTopologyGraph(threshold float64) *TopologyGraph {
	return &TopologyGraph{
		Threshold: threshold,
		nodes:     make(map[string]struct{}),
		adj:       make(map[string][]string),
	}
}

// Rebuild discards all adjacency and recomputes it from modules. The hub is
// the module flagged InitialHub, or the first module if none is flagged.
func (g *TopologyGraph) Rebuild(modules []GraphNode) {
	g.hubID = ""
	g.nodes = make(map[string]struct{}, len(modules))
	g.adj = make(map[string][]string, len(modules))
	if len(modules) == 0 {
		return
	}

	hub := modules[0]
	for _, m := range modules {
		if m.InitialHub {
			hub = m
			break
		}
	}
	g.hubID = hub.ID

	for _, m := range modules {
		g.nodes[m.ID] = struct{}{}
	}
	g.adj[hub.ID] = []string{}

	for _, m := range modules {
		if m.ID == hub.ID || !m.Docked {
			continue
		}
		if hub.Position.DistanceTo(m.Position) >= g.Threshold {
			continue
		}
		g.link(hub.ID, m.ID)
	}
}

func (g *TopologyGraph) link(a, b string) {
	if !contains(g.adj[a], b) {
		g.adj[a] = append(g.adj[a], b)
	}
	if !contains(g.adj[b], a) {
		g.adj[b] = append(g.adj[b], a)
	}
}

// HubID returns the hub node, or "" for an empty graph.
func (g *TopologyGraph) HubID() string { return g.hubID }

// HasNode reports whether id is part of the station.
func (g *TopologyGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Neighbors returns a copy of id's neighbours in insertion order.
func (g *TopologyGraph) Neighbors(id string) []string {
	return append([]string(nil), g.adj[id]...)
}

// Edge is an undirected hub-module connection.
type Edge struct {
	A, B string
}

// Edges lists every edge once, hub first, in insertion order.
func (g *TopologyGraph) Edges() []Edge {
	var out []Edge
	for _, id := range g.adj[g.hubID] {
		out = append(out, Edge{A: g.hubID, B: id})
	}
	return out
}

// ShortestPath returns module ids from the hub to targetID inclusive, or nil
// when the target is unknown or unreachable. The graph is unweighted so the
// first BFS hit is a minimum-hop path.
func (g *TopologyGraph) ShortestPath(targetID string) []string {
	if g.hubID == "" || !g.HasNode(targetID) {
		return nil
	}
	if targetID == g.hubID {
		return []string{g.hubID}
	}

	prev := map[string]string{g.hubID: ""}
	queue := []string{g.hubID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == targetID {
			return g.walkBack(prev, targetID)
		}
		for _, next := range g.adj[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *TopologyGraph) walkBack(prev map[string]string, target string) []string {
	var path []string
	for id := target; id != ""; id = prev[id] {
		path = append(path, id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
