// Package repo — доступ к PostgreSQL через pgx.
//
// Репозитории хранят историю runs с результатами шагов и расписания
// автоматических запусков. Определения workflow отдельно не хранятся:
// schedule несёт своё определение целиком (JSONB).
//
// Строка подключения берётся из переменной окружения DB_URL.
package repo
