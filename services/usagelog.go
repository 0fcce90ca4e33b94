package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"artstudioapi/models"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

const UsageRecordTaskType = "usage:record"

type UsageRecordPayload struct {
	Kind models.UsageEventKind `json:"kind"`
}

func NewUsageRecordTask(kind models.UsageEventKind) (*asynq.Task, error) {
	payload, err := json.Marshal(UsageRecordPayload{Kind: kind})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(UsageRecordTaskType, payload), nil
}

// UsageLogProvider counts paid generations on the remote sheet. RecordEvent is
// side effect only: nothing is awaited and nothing propagates to the caller.
type UsageLogProvider interface {
	RecordEvent(kind models.UsageEventKind)
	FetchStats(ctx context.Context) *models.UsageStats
}

type SheetLogService struct {
	URL        string
	HTTPClient *http.Client
	// Optional. With a broker configured events are delivered by the worker,
	// otherwise a detached goroutine posts them directly.
	AsynqClient *asynq.Client
}

func NewSheetLogService(cfg RemoteConfig, asynqClient *asynq.Client) *SheetLogService {
	return &SheetLogService{
		URL:         cfg.SheetLogURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		AsynqClient: asynqClient,
	}
}

func (s *SheetLogService) RecordEvent(kind models.UsageEventKind) {
	if IsPlaceholderURL(s.URL) {
		fmt.Println("Usage logging is disabled, sheet URL is not configured")
		return
	}

	if s.AsynqClient != nil {
		task, err := NewUsageRecordTask(kind)
		if err == nil {
			_, err = s.AsynqClient.Enqueue(task)
		}
		if err != nil {
			sentry.CaptureException(fmt.Errorf("failed to enqueue usage event %s: %v", kind, err))
		}
		return
	}

	go func() {
		if err := s.PostEvent(context.Background(), kind); err != nil {
			sentry.CaptureException(fmt.Errorf("failed to record usage event %s: %v", kind, err))
		}
	}()
}

// PostEvent performs the actual sheet POST. The worker calls this from the
// usage:record task handler.
func (s *SheetLogService) PostEvent(ctx context.Context, kind models.UsageEventKind) error {
	if IsPlaceholderURL(s.URL) {
		return nil
	}
	payload, err := json.Marshal(map[string]models.UsageEventKind{"type": kind})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("usage log POST returned status %d", resp.StatusCode)
	}
	return nil
}

type sheetStatsResponse struct {
	Status  string             `json:"status"`
	Data    *models.UsageStats `json:"data"`
	Message string             `json:"message"`
}

// FetchStats returns nil on any failure. Callers treat nil as "stats
// temporarily unavailable", never as zero counts.
func (s *SheetLogService) FetchStats(ctx context.Context) *models.UsageStats {
	if IsPlaceholderURL(s.URL) {
		fmt.Println("Usage stats are disabled, sheet URL is not configured")
		return nil
	}

	payload, _ := json.Marshal(map[string]string{"action": "getStats"})
	req, err := http.NewRequestWithContext(ctx, "POST", s.URL, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		fmt.Println("Failed to fetch usage stats:", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Println("Usage stats request returned status:", resp.StatusCode)
		return nil
	}

	var result sheetStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Println("Failed to decode usage stats response:", err)
		return nil
	}
	if result.Status != "success" || result.Data == nil {
		fmt.Println("Usage stats error from sheet:", result.Message)
		return nil
	}
	return result.Data
}
