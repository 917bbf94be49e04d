// Package scheduler запускает процессы по расписанию.
//
// Каждый триггер задаёт cron-выражение и тип данных. При срабатывании
// планировщик отправляет узлу событие data-collected этого типа, и
// процессор узла запускает процесс по определению для имени события.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Node:       "billing",
//	    Dispatcher: eng,
//	    Triggers:   []scheduler.Trigger{{Name: "nightly", Cron: "0 3 * * *", PayloadType: "Invoice"}},
//	    Logger:     logger,
//	})
//
//	go sched.Start(ctx)
package scheduler
