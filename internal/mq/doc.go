// Package mq — обмен сообщениями через RabbitMQ.
//
// Топология:
//   - runbook.runs — заявки на выполнение и итоги runs
//   - runbook.steps — события жизненного цикла шагов
//   - runbook.dlq — необработанные заявки
//
// Заявка на run (runs.requested) несёт определение workflow целиком:
// потребителю не нужна библиотека определений, он выполняет то,
// что пришло в сообщении.
//
// EventBridge подключается к планировщику как подписчик событий и
// транслирует их в обменники.
package mq
