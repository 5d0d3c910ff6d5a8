// Package orchestrator выполняет составные workflow.
//
// Workflow — это runner, который:
//   - Создаёт runner'ы своих операций через реестр фабрик
//   - Строит таблицу провайдеров в порядке sequence и связывает зависимости
//   - Запускает все runner'ы конкурентно
//   - Отслеживает их завершение и останавливается на первой ошибке
//
// Поскольку Workflow сам реализует engine.Runner, его можно использовать
// как операцию другого workflow с теми же правилами на любом уровне вложенности.
//
// После первой ошибки оставшиеся runner'ы не прерываются: workflow
// перестаёт их ждать и сразу завершается с ошибкой, а сами runner'ы
// доработают в фоне. Дождаться их можно через Drain.
package orchestrator
