// Package telemetry — логирование и метрики.
//
// Логирование построено на log/slog: формат и уровень задаются
// переменными окружения LOG_FORMAT и LOG_LEVEL.
//
// Метрики — Prometheus-счётчики выполнения runs и шагов.
// MetricsSink подключается к планировщику как подписчик событий.
package telemetry
