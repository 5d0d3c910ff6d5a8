// Package mq публикует события сессий в RabbitMQ и читает их обратно.
//
// Publisher реализует engine.EventSink: движок отдаёт ему события
// runner'ов и сессий, ошибки публикации только логируются и на
// результат выполнения не влияют.
//
// Consumer читает события из очереди; команда "conveyor events watch"
// использует временную очередь (DeclareWatchQueue), чтобы не забирать
// сообщения у архивной очереди events.archive.
//
// Connection сам переподключается при разрыве; Consumer после
// переподключения заново объявляет очередь и продолжает чтение.
package mq
