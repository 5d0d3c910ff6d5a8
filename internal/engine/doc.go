// Package engine содержит модель выполнения runner'ов.
//
// Включает:
//   - runner.go   — контракт Runner и тело Body
//   - task.go     — Task: ожидание зависимостей, выполнение тела, публикация
//   - broker.go   — Broker: синхронная рассылка уведомлений подписчикам
//   - registry.go — реестр фабрик runner'ов
//   - env.go      — окружение runner'а (логгеры, конфиги, метрики, события)
//   - template.go — рендеринг Go templates в config-файлах ({{ .Vars.x }})
//
// Runner ждёт ключи, которые ему нужны (Requires), от провайдеров,
// на которых он подписан через Observe. Провайдер по завершении
// публикует уведомление всем подписчикам, даже если завершился с ошибкой.
package engine
