// Package cli реализует инструмент командной строки conveyor.
//
// # Обзор
//
// Часть команд работает локально: читает конфигурацию приложения
// из папки конфигурации и выполняет или проверяет workflow в текущем
// процессе. Остальные обращаются к conveyor-server по HTTP
// или слушают события в RabbitMQ.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API conveyor-server. Инкапсулирует HTTP-запросы,
// разбор конверта ответа {data, total} и ошибок {error: {code, message}}
// и обработку ошибок (APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	sessions, err := client.ListSessions(cli.ListSessionsOpts{Limit: 10})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor sessions list --json | jq .
//
// ## Commands
//
//   - run CONFIG, validate CONFIG, factories — локальные
//   - events watch — события из RabbitMQ
//   - sessions: list, show, trigger, next — через API
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей замыкания для ленивого создания Client и Output
// после парсинга PersistentFlags.
//
// Код выхода `run` совпадает с driver.Outcome.ExitCode: ошибка команды
// несёт его в ExitError.
package cli
