// Package api содержит HTTP API сервера conveyor-server.
//
// Структура:
//   - handler.go         — Handler с DI (журнал сессий, запуск, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - session_handler.go — обработчики для /sessions и /schedule
//
// Журнал только читается: сессии создаёт scheduler, API лишь
// просит его запустить сессию вне расписания.
package api
