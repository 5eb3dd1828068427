package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CascadeWarning reports entity types whose instances can delete each
// other.
//
// Cascade cycles are warnings, not errors, because they are often
// intentional:
//   - Trees whose children cascade from their parent (a self-loop)
//   - Aggregates whose parts require each other
type CascadeWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Project", "Task", "Project"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCascades performs static cycle analysis on the cascade graph.
//
// Only reference attributes with a target type take part. An edge T -> U
// means deleting a T may delete a U:
//   - T holds a cascade_delete reference to U
//   - U holds a required or cascade_delete_by reference to T
//
// Strongly connected components are found with Tarjan's algorithm. A
// self-loop is reported at info level; larger cycles are warnings.
func AnalyzeCascades(spec SchemaSpec) []CascadeWarning {
	graph := buildCascadeGraph(spec)
	if len(graph) == 0 {
		return []CascadeWarning{}
	}

	warnings := []CascadeWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	return warnings
}

// cascadeGraph maps a type to the types its deletion may delete.
type cascadeGraph map[string][]string

func buildCascadeGraph(spec SchemaSpec) cascadeGraph {
	graph := make(cascadeGraph)
	addEdge := func(from, to string) {
		for _, existing := range graph[from] {
			if existing == to {
				return
			}
		}
		graph[from] = append(graph[from], to)
	}

	for _, owner := range spec.typeNames() {
		if graph[owner] == nil {
			graph[owner] = []string{}
		}
		for _, ident := range spec.Types[owner].Attributes {
			a, ok := spec.Attributes[ident]
			if !ok || !a.Ref || a.Target == "" {
				continue
			}
			if a.CascadeDelete {
				addEdge(owner, a.Target)
			}
			if a.deletesReferrer() {
				addEdge(a.Target, owner)
			}
		}
	}
	for _, next := range graph {
		sort.Strings(next)
	}
	return graph
}

func hasSelfLoop(node string, graph cascadeGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are stable.
func tarjanSCC(graph cascadeGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleToWarning(scc []string, graph cascadeGraph) CascadeWarning {
	if len(scc) == 1 {
		return CascadeWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("recursive cascade: deleting a %s may delete other %s entities", scc[0], scc[0]),
			Level:   "info",
		}
	}

	path := cyclePath(scc, graph)
	return CascadeWarning{
		Path:    path,
		Message: fmt.Sprintf("cascade cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath walks from the first member along edges inside the component
// until it returns to the start.
func cyclePath(scc []string, graph cascadeGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
