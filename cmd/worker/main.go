package main

import (
	"context"
	"log"
	"os"
	"time"

	"artstudioapi/dbhelper"
	"artstudioapi/services"
	"artstudioapi/tasks"
	"artstudioapi/telegram"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func runScheduler() {

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "0 7 * * *", // 7:00 AM daily
			task: tasks.NewDailySummaryTask(),
			desc: "Daily generation summary",
		},
	}

	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	godotenv.Load()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      services.GetEnv("ENV", "local"),
		Release:          "artstudioapi@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"default": 7,
		}},
	)

	remoteConfig := services.NewRemoteConfigFromEnv()
	usageLog := services.NewSheetLogService(remoteConfig, nil)

	notifier, err := telegram.NewNotifierFromEnv()
	if err != nil {
		log.Printf("Telegram notifier disabled: %v", err)
		notifier = nil
	}

	db := dbhelper.SetupDB()

	mux := asynq.NewServeMux()
	mux.HandleFunc(services.UsageRecordTaskType, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleUsageRecordTask(ctx, t, usageLog)
	})
	mux.HandleFunc(tasks.SafetyAlertTaskType, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleSafetyAlertTask(ctx, t, notifier)
	})
	mux.HandleFunc(tasks.DailySummaryTaskType, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleDailySummaryTask(ctx, t, db, notifier)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
