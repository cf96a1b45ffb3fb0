// Package runner выполняет команды шагов в подпроцессах.
//
// Runner — абстракция над запуском одной команды. Две реализации:
//   - ShellRunner — реальный запуск через /bin/sh -c
//   - DryRunner — сухой прогон: команда не запускается, возвращается
//     синтетический успешный результат
//
// StepExec поверх Runner реализует политику повторных попыток и
// маппинг исходов в статусы шага.
package runner
