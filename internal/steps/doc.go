// Package steps содержит фабрики leaf runner'ов — конкретных исполнителей,
// из которых собираются workflow.
//
// # Обзор
//
// Каждая фабрика:
//   - Загружает JSON конфигурацию runner'а через engine.LoadConfig
//     (шаблоны уже отрендерены)
//   - Проверяет свои поля и строит тело runner'а (engine.Body)
//   - Оборачивает тело в engine.Task с provides/requires из конфигурации
//
// Ошибка в полях фабрики — ошибка конфигурации: она всплывает при
// построении workflow, до запуска любого runner'а.
//
// # Фабрики
//
//	noop          — пишет в журнал, опционально задаёт сообщение результата
//	error         — падает, если "error": true (проверка error workflow)
//	delay         — пауза (duration_sec / duration_ms), отменяется через context
//	http          — HTTP запрос, падает на неожиданном статусе
//	command       — внешняя команда, вывод пишется в папку логов сессии
//	reportDigest  — собирает отчёты и логи сессии в один файл
//
// Фабрику составного workflow ("workflowEngine") регистрирует пакет
// orchestrator, так что полный реестр собирается так:
//
//	registry := steps.DefaultRegistry()
//	orchestrator.Register(registry, orchestrator.Config{})
//
// # Файлы пакета
//
//   - step.go     — общая фабрика, ошибки, GetConfig* helpers
//   - registry.go — имена фабрик и DefaultRegistry
//   - noop.go     — noop и error
//   - delay.go    — delay
//   - http.go     — http
//   - command.go  — command
//   - digest.go   — reportDigest
package steps
