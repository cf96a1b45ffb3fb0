// Package cli реализует инструмент командной строки Runbook.
//
// # Обзор
//
// CLI делится на две части:
//
//   - Локальное выполнение: `runbook exec` и `runbook validate` работают
//     с файлом workflow напрямую, без сервера — exec запускает workflow
//     в текущем процессе через orchestrator.
//   - Клиент API: `runbook run ...`, `runbook schedule ...` и
//     `runbook recommend` ходят в Runbook API по HTTP.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Runbook API. Инкапсулирует запросы, парсинг
// ответов (DataResponse, ListResponse, ErrorResponse) и обработку
// ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (с флагом --json)
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: runbook run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - exec: локальный запуск workflow-файла
//   - validate: локальная проверка workflow-файла
//   - run: submit, list, show, cancel
//   - schedule: list, create, show, update, delete, enable, disable
//   - recommend: подсказки по истории запусков
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
