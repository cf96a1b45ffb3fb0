// Package engine содержит статическую часть движка выполнения workflow.
//
// Включает:
//   - parser.go    — парсинг определения workflow из JSON и его валидация
//   - graph.go     — построение и обход графа зависимостей (DAG)
//   - resolver.go  — подстановка переменных и результатов шагов (${...})
//   - condition.go — типизированные условные выражения шагов
//
// Engine отвечает за понимание структуры workflow: корректность графа,
// готовность шагов к запуску, материализацию команд и вычисление условий.
// Собственно запуск команд и планирование выполняют пакеты runner
// и orchestrator.
package engine
