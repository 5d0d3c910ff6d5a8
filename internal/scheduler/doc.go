// Package scheduler запускает сессии по cron-расписанию.
//
// Структура:
//   - scheduler.go — Scheduler: цикл ожидания следующего срабатывания,
//     ручной запуск (Trigger), пропуск пересекающихся запусков
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Cron:     "0 3 * * *",
//	    Location: loc,
//	    Run:      func(ctx context.Context, trigger string) { runSession(ctx, trigger) },
//	    Logger:   logger,
//	})
//
//	go sched.Run(ctx)           // по расписанию
//	sched.Trigger("api")        // вручную, false — сессия уже идёт
//
// Расписание не хранится: после рестарта отсчёт начинается заново.
package scheduler
