// Package orchestrator — планировщик выполнения workflow в рамках
// одного процесса.
//
// Scheduler принимает валидированный Workflow, строит граф
// зависимостей и гоняет фронтир готовых шагов через runner с
// ограничением параллелизма. Результат — детерминированный
// domain.Run со статусами всех шагов.
//
// Жизненный цикл шага внутри планировщика:
//
//	PENDING → (условие false) → SKIPPED
//	PENDING → (условие отложено) → PENDING (повторное рассмотрение)
//	PENDING → RUNNING → SUCCEEDED | FAILED | TIMED_OUT | CANCELLED
//
// Подписчики событий (EventSink) получают уведомления о старте,
// завершении и пропуске шагов и об итоге run.
package orchestrator
