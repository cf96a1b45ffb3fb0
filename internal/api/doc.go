// Package api реализует HTTP API сервера Runbook.
//
// API построен на стандартном net/http с паттернами маршрутов Go 1.22
// ("GET /api/v1/runs/{id}"). Обработчики принимают и отдают JSON,
// ошибки возвращаются в едином формате {"error": {"code", "message"}}.
//
// Основные группы маршрутов:
//   - /api/v1/runs       — постановка, просмотр и отмена запусков
//   - /api/v1/schedules  — CRUD расписаний
//   - /api/v1/workflows  — валидация определений workflow
package api
