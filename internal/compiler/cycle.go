package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/splice/internal/ir"
)

// CycleError reports template components that instantiate themselves.
//
// A template has no conditionals, so any path from a component back to
// itself mounts forever. Unlike a hand-written component, nothing can stop
// the recursion at render time.
type CycleError struct {
	Path    []string `json:"path"`    // ["Tree", "Branch", "Tree"]
	Message string   `json:"message"` // Human-readable description
}

func (e CycleError) Error() string { return e.Message }

// AnalyzeCycles finds template recursion among components.
//
// The algorithm:
//  1. Build component → referenced component graph from each template
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// References to components missing from specs are ignored here; Validate
// reports them. Results are sorted by their first path element.
func AnalyzeCycles(specs []ir.ComponentSpec) []CycleError {
	if len(specs) == 0 {
		return []CycleError{}
	}

	graph := buildTemplateGraph(specs)
	sccs := tarjanSCC(graph)

	cycles := []CycleError{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b CycleError) int { return strings.Compare(a.Path[0], b.Path[0]) })
	return cycles
}

// templateGraph maps component name → names it instantiates, sorted.
type templateGraph map[string][]string

func buildTemplateGraph(specs []ir.ComponentSpec) templateGraph {
	known := make(map[string]bool, len(specs))
	for _, s := range specs {
		known[s.Name] = true
	}

	graph := make(templateGraph, len(specs))
	for i := range specs {
		spec := &specs[i]
		refs := map[string]bool{}
		_ = spec.Template.Walk(func(n *ir.NodeSpec) error {
			if n.Component != "" && known[n.Component] {
				refs[n.Component] = true
			}
			return nil
		})
		edges := make([]string, 0, len(refs))
		for name := range refs {
			edges = append(edges, name)
		}
		slices.Sort(edges)
		graph[spec.Name] = edges
	}
	return graph
}

func hasSelfLoop(node string, graph templateGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so results are stable.
func tarjanSCC(graph templateGraph) [][]string {
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
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph templateGraph) CycleError {
	if len(scc) == 1 {
		name := scc[0]
		return CycleError{
			Path:    []string{name, name},
			Message: fmt.Sprintf("component %s instantiates itself", name),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return CycleError{
		Path:    path,
		Message: fmt.Sprintf("template cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath walks from the smallest member of the SCC along
// edges inside it until it returns to the start.
func reconstructCyclePath(scc []string, graph templateGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		if len(path) > 1 && slices.Contains(graph[current], start) {
			next = start
		}
		for _, neighbor := range graph[current] {
			if next != "" {
				break
			}
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
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
