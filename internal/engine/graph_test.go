package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Runbook/internal/domain"
)

func TestBuildGraph_SimpleChain(t *testing.T) {
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
			{ID: "C", Command: "echo c", DependsOn: []string{"B"}},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Проверяем количество узлов
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	// Проверяем корневые узлы
	if len(g.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(g.RootNodes))
	}
	if g.RootNodes[0].ID != "A" {
		t.Errorf("expected root node A, got %s", g.RootNodes[0].ID)
	}

	// Проверяем зависимости
	nodeB := g.GetNode("B")
	if len(nodeB.DependsOn) != 1 || nodeB.DependsOn[0].ID != "A" {
		t.Error("node B should depend on A")
	}

	nodeC := g.GetNode("C")
	if len(nodeC.DependsOn) != 1 || nodeC.DependsOn[0].ID != "B" {
		t.Error("node C should depend on B")
	}
}

func TestBuildGraph_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
			{ID: "C", Command: "echo c", DependsOn: []string{"A"}},
			{ID: "D", Command: "echo d", DependsOn: []string{"B", "C"}},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.Size())
	}

	nodeD := g.GetNode("D")
	if len(nodeD.DependsOn) != 2 {
		t.Errorf("node D should have 2 dependencies, got %d", len(nodeD.DependsOn))
	}

	// Проверяем inDegree
	if g.GetNode("A").InDegree != 0 {
		t.Error("A should have inDegree 0")
	}
	if g.GetNode("B").InDegree != 1 {
		t.Error("B should have inDegree 1")
	}
	if g.GetNode("D").InDegree != 2 {
		t.Error("D should have inDegree 2")
	}
}

func TestBuildGraph_Cycle(t *testing.T) {
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a", DependsOn: []string{"C"}},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
			{ID: "C", Command: "echo c", DependsOn: []string{"B"}},
		},
	}

	_, err := BuildGraph(wf)
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.StepIDs) != 3 {
		t.Errorf("expected 3 steps in cycle, got %v", cycleErr.StepIDs)
	}
}

func TestBuildGraph_DuplicateEdge(t *testing.T) {
	// Дублированная зависимость не должна раздувать inDegree
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A", "A"}},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.GetNode("B").InDegree != 1 {
		t.Errorf("B should have inDegree 1, got %d", g.GetNode("B").InDegree)
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "D", Command: "echo d", DependsOn: []string{"B", "C"}},
			{ID: "C", Command: "echo c", DependsOn: []string{"A"}},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
			{ID: "A", Command: "echo a"},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(g.Order))
	for i, node := range g.Order {
		pos[node.ID] = i
	}

	// Каждый шаг должен стоять после всех своих зависимостей
	for _, node := range g.Order {
		for _, dep := range node.DependsOn {
			if pos[dep.ID] >= pos[node.ID] {
				t.Errorf("step %s at %d before its dependency %s at %d",
					node.ID, pos[node.ID], dep.ID, pos[dep.ID])
			}
		}
	}
}

func TestGraph_ReadyNodes(t *testing.T) {
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
			{ID: "C", Command: "echo c", DependsOn: []string{"A"}},
			{ID: "D", Command: "echo d", DependsOn: []string{"B", "C"}},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// В начале готов только корень
	ready := g.ReadyNodes(map[string]bool{}, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "A" {
		t.Fatalf("expected [A], got %v", nodeIDs(ready))
	}

	// A выполняется — фронтир пуст
	ready = g.ReadyNodes(map[string]bool{}, map[string]bool{"A": true})
	if len(ready) != 0 {
		t.Fatalf("expected empty frontier, got %v", nodeIDs(ready))
	}

	// A завершён — готовы B и C
	ready = g.ReadyNodes(map[string]bool{"A": true}, map[string]bool{})
	if len(ready) != 2 {
		t.Fatalf("expected [B C], got %v", nodeIDs(ready))
	}

	// B завершён, C ещё нет — D не готов
	ready = g.ReadyNodes(map[string]bool{"A": true, "B": true}, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "C" {
		t.Fatalf("expected [C], got %v", nodeIDs(ready))
	}

	// Все зависимости завершены — готов D
	ready = g.ReadyNodes(map[string]bool{"A": true, "B": true, "C": true}, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "D" {
		t.Fatalf("expected [D], got %v", nodeIDs(ready))
	}
}

func TestGraph_IsComplete(t *testing.T) {
	wf := &domain.Workflow{
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
		},
	}

	g, err := BuildGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.IsComplete(map[string]bool{"A": true}) {
		t.Error("graph should not be complete with one of two steps done")
	}
	if !g.IsComplete(map[string]bool{"A": true, "B": true}) {
		t.Error("graph should be complete with all steps done")
	}
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
