// Package worker выполняет целые runs, полученные из очереди.
//
// Executor потребляет заявки run.requested из RabbitMQ, выполняет
// workflow через orchestrator.Scheduler и фиксирует результат:
//
//   - Статус run и результаты шагов сохраняются в БД по ходу выполнения
//   - По завершении публикуется событие run.finished
//   - Выполняющийся run можно отменить через Cancel(runID)
//
// Заявка несёт определение workflow целиком, поэтому Executor не
// обращается к библиотеке определений. Несколько экземпляров могут
// потреблять из одной очереди: один run выполняется ровно одним
// процессом.
package worker
