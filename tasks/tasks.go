package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"artstudioapi/models"
	"artstudioapi/services"
	"artstudioapi/telegram"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const (
	SafetyAlertTaskType  = "alert:safety"
	DailySummaryTaskType = "report:daily_summary"
)

type SafetyAlertPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: services.GetEnv("ASYNC_BROKER_ADDRESS", "127.0.0.1:6379")}), nil
}

func NewSafetyAlertTask(sessionID, message string) (*asynq.Task, error) {
	payload, err := json.Marshal(SafetyAlertPayload{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(SafetyAlertTaskType, payload), nil
}

func NewDailySummaryTask() *asynq.Task {
	return asynq.NewTask(DailySummaryTaskType, nil)
}

// HandleUsageRecordTask delivers one usage event to the sheet. Delivery
// failures go to sentry only, a missed count is never worth a retry storm
// against the Apps Script quota.
func HandleUsageRecordTask(ctx context.Context, t *asynq.Task, usageLog *services.SheetLogService) error {
	var payload services.UsageRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Usage] Recording %s event\n", payload.Kind)
	if err := usageLog.PostEvent(ctx, payload.Kind); err != nil {
		fmt.Printf("[Usage] Failed to record %s event: %v\n", payload.Kind, err)
		sentry.CaptureException(fmt.Errorf("failed to record usage event %s: %v", payload.Kind, err))
	}
	return nil
}

// HandleSafetyAlertTask notifies the admins about a content policy rejection.
func HandleSafetyAlertTask(ctx context.Context, t *asynq.Task, notifier *telegram.Notifier) error {
	var payload SafetyAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Safety Alert] Session %s: %s\n", payload.SessionID, payload.Message)
	if notifier == nil {
		return nil
	}
	text := fmt.Sprintf("Safety violation in session %s:\n%s", payload.SessionID, telegram.EscapeMessage(payload.Message))
	if err := notifier.Send(text); err != nil {
		sentry.CaptureException(fmt.Errorf("failed to send safety alert: %v", err))
	}
	return nil
}

// HandleDailySummaryTask sends the admins yesterday's generation counts.
func HandleDailySummaryTask(ctx context.Context, t *asynq.Task, db *gorm.DB, notifier *telegram.Notifier) error {
	fmt.Println("[Daily Summary] Building report")

	since := time.Now().Add(-24 * time.Hour)
	type kindCount struct {
		Kind   string
		Status string
		Count  int64
	}
	var counts []kindCount
	res := db.Model(&models.GenerationRecord{}).
		Select("kind, status, count(*) as count").
		Where("created_at > ?", since).
		Group("kind, status").
		Find(&counts)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Daily Summary] Error fetching generation counts: %v", res.Error))
		return res.Error
	}

	if notifier == nil {
		return nil
	}

	summary := fmt.Sprintf("Studio report for %s\n", time.Now().Format("2006-01-02"))
	if len(counts) == 0 {
		summary += "No generations in the last 24h"
	}
	for _, row := range counts {
		summary += fmt.Sprintf("%s %s: %d\n", row.Kind, row.Status, row.Count)
	}
	if err := notifier.Send(summary); err != nil {
		sentry.CaptureException(fmt.Errorf("[Daily Summary] Failed to send report: %v", err))
		return err
	}
	return nil
}

// SaveGenerationFail marks a record failed with the user-visible message.
func SaveGenerationFail(db *gorm.DB, record *models.GenerationRecord, message string) error {
	record.Status = "failed"
	record.ErrorMessage = services.StrPointer(message)
	tx := db.Save(record)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Generation %v] Error on saving failed status", record.ID))
		return tx.Error
	}
	return nil
}
