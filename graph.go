package reactiveschema

import (
	"fmt"
	"sort"
	"strings"
)

// buildDependencyGraph computes the node set, resolves the dependency edge
// set to DAG-node targets, partitions nodes into the three dependency
// phases, and assigns level batches (spec.md §4.D). Grounded on
// original_source/src/topo_sort.rs (node-set exclusion list, DFS topological
// sort with cycle detection) and topo_sort/legacy.rs (three-phase
// partitioning); the level-batching rule itself ("batch index = 1 + max(dep
// batch indices)") is reconstructed directly from spec.md §4.D since
// topo_sort/common.rs was not present in the retrieval pack.
func buildDependencyGraph(s *Schema) (batches [][]string, nonBatched []string, err error) {
	nodes := map[string]bool{}
	tableNodes := map[string]bool{}

	for k := range s.Evaluations {
		if isDAGNode(k) {
			nodes[k] = true
		} else {
			nonBatched = append(nonBatched, k)
		}
	}
	for k := range s.Tables {
		nodes[k] = true
		tableNodes[k] = true
	}

	dataPathToKey := map[string]string{}
	for k := range nodes {
		dataPathToKey[ToCanonical(dataPath(k))] = k
	}

	edges := map[string][]string{}
	for n := range nodes {
		seen := map[string]bool{}
		var resolved []string
		for _, dep := range s.Dependencies[n] {
			target, ok := dataPathToKey[dep]
			if !ok || target == n || seen[target] {
				continue
			}
			seen[target] = true
			resolved = append(resolved, target)
		}
		sort.Strings(resolved)
		edges[n] = resolved
	}

	phase1, phase2, phase3 := partitionPhases(nodes, tableNodes, edges)

	var order []string
	for _, phase := range [][]string{phase1, phase2, phase3} {
		phaseSet := map[string]bool{}
		for _, n := range phase {
			phaseSet[n] = true
		}
		sorted, perr := topoSortPhase(phase, edges, phaseSet)
		if perr != nil {
			return nil, nil, perr
		}
		order = append(order, sorted...)
	}

	batches = computeBatches(order, edges)
	return batches, nonBatched, nil
}

// isDAGNode excludes evaluation keys that live under one of the
// non-computation structural subtrees from the dependency graph (spec.md
// §4.D "Node set"). Evaluate does not run the excluded keys.
func isDAGNode(key string) bool {
	excluded := []string{"/dependents/", "/rules/", "/options/", "/condition/", "/$layout/", "/config/", "/items/"}
	for _, e := range excluded {
		if strings.Contains(key, e) {
			return false
		}
	}
	if strings.HasSuffix(key, "/options") || strings.HasSuffix(key, "/value") {
		return false
	}
	return true
}

// partitionPhases splits the node set into phase 1 (non-table nodes
// transitively reachable from some table's dependency edges — table
// prerequisites), phase 2 (the table nodes themselves), and phase 3
// (everything else), per spec.md §4.D.
func partitionPhases(nodes map[string]bool, tableNodes map[string]bool, edges map[string][]string) (phase1, phase2, phase3 []string) {
	reach := map[string]bool{}
	visited := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, d := range edges[n] {
			if !tableNodes[d] {
				reach[d] = true
			}
			visit(d)
		}
	}
	for t := range tableNodes {
		visit(t)
	}

	for n := range nodes {
		if tableNodes[n] {
			continue
		}
		if reach[n] {
			phase1 = append(phase1, n)
		} else {
			phase3 = append(phase3, n)
		}
	}
	for n := range tableNodes {
		phase2 = append(phase2, n)
	}
	sort.Strings(phase1)
	sort.Strings(phase2)
	sort.Strings(phase3)
	return phase1, phase2, phase3
}

// topoSortPhase performs a DFS-based topological sort restricted to edges
// landing inside phaseSet, returning nodes in dependency-before-dependent
// order. Cross-phase edges (to an already-resolved earlier phase) are
// ignored here since that ordering is already settled by phase precedence.
func topoSortPhase(phaseNodes []string, edges map[string][]string, phaseSet map[string]bool) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var order []string
	var visit func(string) error
	visit = func(n string) error {
		switch color[n] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("%w: %s", ErrCyclicDependency, n)
		}
		color[n] = gray
		for _, d := range edges[n] {
			if !phaseSet[d] {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		color[n] = black
		order = append(order, n)
		return nil
	}
	for _, n := range phaseNodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// computeBatches assigns each node in order (already dependency-before-
// dependent) a level index, one more than the highest level among its
// resolved dependency edges, then groups nodes by level (spec.md §4.D
// "Level batching").
func computeBatches(order []string, edges map[string][]string) [][]string {
	index := map[string]int{}
	for _, n := range order {
		maxDep := -1
		for _, d := range edges[n] {
			if bi, ok := index[d]; ok && bi > maxDep {
				maxDep = bi
			}
		}
		index[n] = maxDep + 1
	}
	var batches [][]string
	for _, n := range order {
		bi := index[n]
		for len(batches) <= bi {
			batches = append(batches, nil)
		}
		batches[bi] = append(batches[bi], n)
	}
	return batches
}
