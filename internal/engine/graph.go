package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Runbook/internal/domain"
)

// Node — узел в графе зависимостей.
type Node struct {
	// Step — определение шага из workflow.
	Step *domain.Step

	// ID — идентификатор узла (совпадает со Step.ID).
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// Graph — направленный ациклический граф шагов workflow.
type Graph struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildGraph строит граф зависимостей из workflow и проверяет его:
// ссылки на несуществующие шаги и циклы — ошибка.
//
// Успешно построенный Graph — сертификат валидности: планировщик
// строит его ровно один раз перед выполнением и отказывается
// запускать что-либо при ошибке.
func BuildGraph(wf *domain.Workflow) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*Node, len(wf.Steps)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range wf.Steps {
		step := &wf.Steps[i]
		g.Nodes[step.ID] = &Node{
			Step:       step,
			ID:         step.ID,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range wf.Steps {
		step := &wf.Steps[i]
		node := g.Nodes[step.ID]

		for _, depID := range step.DependsOn {
			depNode, exists := g.Nodes[depID]
			if !exists {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrUnknownDependency)
			}
			g.addEdge(depNode, node)
		}
	}

	g.findRootNodes()

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты в depends_on учитываются один раз, чтобы не завышать InDegree.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (g *Graph) findRootNodes() {
	g.RootNodes = make([]*Node, 0)
	for _, node := range g.Nodes {
		if node.InDegree == 0 {
			g.RootNodes = append(g.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// При обнаружении цикла возвращает CycleError с шагами, оставшимися в цикле.
func (g *Graph) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(g.RootNodes))
	copy(queue, g.RootNodes)

	order := make([]*Node, 0, len(g.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Не все узлы обработаны — оставшиеся участвуют в цикле
	if len(order) != len(g.Nodes) {
		ordered := make(map[string]bool, len(order))
		for _, node := range order {
			ordered[node.ID] = true
		}

		var cycle []string
		for id := range g.Nodes {
			if !ordered[id] {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)

		return nil, &CycleError{StepIDs: cycle}
	}

	return order, nil
}

// ReadyNodes возвращает узлы, готовые к рассмотрению планировщиком.
//
// Узел готов, если:
//   - Все его зависимости терминальны (есть в terminal)
//   - Сам узел ещё не терминален и не выполняется
//
// terminal — map stepID → true для шагов с терминальным статусом.
// inflight — map stepID → true для шагов в процессе выполнения.
func (g *Graph) ReadyNodes(terminal, inflight map[string]bool) []*Node {
	ready := make([]*Node, 0)

	// Обходим в топологическом порядке, чтобы результат был детерминирован
	for _, node := range g.Order {
		if terminal[node.ID] || inflight[node.ID] {
			continue
		}

		allDepsTerminal := true
		for _, dep := range node.DependsOn {
			if !terminal[dep.ID] {
				allDepsTerminal = false
				break
			}
		}

		if allDepsTerminal {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetNode возвращает узел по ID.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// IsComplete проверяет, все ли узлы терминальны.
func (g *Graph) IsComplete(terminal map[string]bool) bool {
	for _, node := range g.Nodes {
		if !terminal[node.ID] {
			return false
		}
	}
	return true
}
