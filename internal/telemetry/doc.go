// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog, FanoutHandler для файлов сессии
//   - metrics.go — Prometheus метрики runner'ов и сессий (engine.Recorder)
//   - timer.go   — секундомер и формат длительностей для отчётов
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
