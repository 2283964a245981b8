// Package mq доставляет события справочника работников через RabbitMQ.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — конверт события и публикация
//   - consumer.go   — потребление с ack/nack и DLQ
//
// Публикуемые события:
//   - worker.status_changed — смена статуса, подтверждённая бэкендом
//
// Publisher реализует directory.EventSink и подключается к Directory
// как обычный получатель событий.
package mq
