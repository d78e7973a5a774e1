package reactiveschema

import "testing"

func newTestSchemaForGraph() *Schema {
	return &Schema{
		Evaluations:  map[string]*Node{},
		Dependencies: map[string][]string{},
		Tables:       map[string]*TableMetadata{},
	}
}

func TestBuildDependencyGraphLinearChain(t *testing.T) {
	s := newTestSchemaForGraph()
	s.Evaluations["#/a"] = mustCompile(t, true)
	s.Evaluations["#/b"] = mustCompile(t, true)
	s.Evaluations["#/c"] = mustCompile(t, true)
	s.Dependencies["#/b"] = []string{"/a"}
	s.Dependencies["#/c"] = []string{"/b"}

	batches, nonBatched, err := buildDependencyGraph(s)
	if err != nil {
		t.Fatalf("buildDependencyGraph error: %v", err)
	}
	if len(nonBatched) != 0 {
		t.Fatalf("expected no non-batched nodes, got %v", nonBatched)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d: %v", len(batches), batches)
	}
	if batches[0][0] != "#/a" || batches[1][0] != "#/b" || batches[2][0] != "#/c" {
		t.Fatalf("unexpected batch order: %v", batches)
	}
}

func TestBuildDependencyGraphCycleDetected(t *testing.T) {
	s := newTestSchemaForGraph()
	s.Evaluations["#/a"] = mustCompile(t, true)
	s.Evaluations["#/b"] = mustCompile(t, true)
	s.Dependencies["#/a"] = []string{"/b"}
	s.Dependencies["#/b"] = []string{"/a"}

	if _, _, err := buildDependencyGraph(s); err == nil {
		t.Fatal("expected cyclic dependency error, got nil")
	}
}

func TestBuildDependencyGraphExcludesNonDAGKeys(t *testing.T) {
	s := newTestSchemaForGraph()
	s.Evaluations["#/a"] = mustCompile(t, true)
	s.Evaluations["#/a/dependents/0/clear"] = mustCompile(t, true)

	_, nonBatched, err := buildDependencyGraph(s)
	if err != nil {
		t.Fatalf("buildDependencyGraph error: %v", err)
	}
	if len(nonBatched) != 1 || nonBatched[0] != "#/a/dependents/0/clear" {
		t.Fatalf("expected the dependents key to be non-batched, got %v", nonBatched)
	}
}

func TestBuildDependencyGraphTablePrerequisitesRunFirst(t *testing.T) {
	s := newTestSchemaForGraph()
	s.Tables["#/rows"] = &TableMetadata{Path: "#/rows"}
	s.Evaluations["#/total"] = mustCompile(t, true)
	s.Evaluations["#/seed"] = mustCompile(t, true)

	s.Dependencies["#/rows"] = []string{"/seed"}
	s.Dependencies["#/total"] = []string{"/rows"}

	batches, _, err := buildDependencyGraph(s)
	if err != nil {
		t.Fatalf("buildDependencyGraph error: %v", err)
	}
	index := map[string]int{}
	for i, batch := range batches {
		for _, n := range batch {
			index[n] = i
		}
	}
	if !(index["#/seed"] < index["#/rows"] && index["#/rows"] < index["#/total"]) {
		t.Fatalf("expected seed < rows < total, got %v", index)
	}
}
