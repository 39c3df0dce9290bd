// Package depsort implements C1, the dependency sorter: a deterministic
// topological sort over a node->prerequisites mapping, used to order every
// schema-object class Backy backs up (tables, views, functions, ...).
package depsort

import (
	"sort"

	"backy/internal/backyerrors"
)

// Graph maps a node identifier to the list of identifiers it depends on
// (must appear before it in the output). Nodes that appear only as a
// dependency of something else, and never as a key, are treated as roots
// with an implicit empty dependency list.
type Graph map[string][]string

// Sort runs Kahn's algorithm over deps and returns a total order in which
// every prerequisite precedes its dependent. deps' keys are visited in
// alphabetical order, so the output is deterministic; callers that need the
// tie-break to follow their own input order should use SortOrdered.
//
// Sort fails with a backyerrors.Error of KindCycleDetected if the graph is
// not a DAG: the returned order will be shorter than the node set.
func Sort(deps Graph) ([]string, error) {
	return SortOrdered(deps, nil)
}

// SortOrdered is Sort but takes an explicit node iteration order for the
// initial zero-in-degree scan, giving callers FIFO determinism independent of
// Go map iteration. nodeOrder may be a superset or subset of deps' keys; any
// node missing from it is appended afterward in deps' alphabetical key order.
func SortOrdered(deps Graph, nodeOrder []string) ([]string, error) {
	inDegree := make(map[string]int)
	successors := make(map[string][]string)

	addNode := func(n string) {
		if _, ok := inDegree[n]; !ok {
			inDegree[n] = 0
		}
	}

	order := make([]string, 0, len(deps))
	seen := make(map[string]bool)
	for _, n := range nodeOrder {
		if !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	// deps is a Go map, which has no stable iteration order; callers that care
	// about reproducing the exact tie-break order of their original input
	// (e.g. the extractor's information-schema row order) must use
	// SortOrdered with an explicit nodeOrder. Absent that, keys are visited
	// alphabetically so Sort is at least deterministic run-to-run.
	keys := make([]string, 0, len(deps))
	for n := range deps {
		keys = append(keys, n)
	}
	sort.Strings(keys)
	for _, n := range keys {
		if !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}

	for _, n := range order {
		addNode(n)
	}
	// Walk nodes in the deterministic `order` established above (not Go's
	// randomized map iteration) so successor lists, and therefore the FIFO
	// queue, are reproducible across runs for the same logical input.
	for _, node := range order {
		for _, p := range deps[node] {
			addNode(p)
			successors[p] = append(successors[p], node)
			inDegree[node]++
		}
	}
	// Any node reachable only as a dependency value and absent from the
	// initial order (not in nodeOrder, not a key of deps) still needs to be
	// appended to `order` so it participates in the zero-in-degree scan.
	for _, node := range order {
		for _, p := range deps[node] {
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
			}
		}
	}

	queue := make([]string, 0, len(inDegree))
	for _, n := range order {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	result := make([]string, 0, len(inDegree))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)
		for _, succ := range successors[n] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(result) < len(inDegree) {
		return result, backyerrors.NewCycleDetected(len(inDegree) - len(result))
	}
	return result, nil
}
