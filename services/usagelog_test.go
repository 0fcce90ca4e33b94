package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"artstudioapi/models"

	"github.com/stretchr/testify/assert"
)

func newTestSheetLog(url string) *SheetLogService {
	return &SheetLogService{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestFetchStatsSuccess(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"today":{"images":4,"videos":1},"month":{"images":120,"videos":17}}}`))
	}))
	defer mockServer.Close()

	stats := newTestSheetLog(mockServer.URL).FetchStats(context.Background())
	assert.NotNil(t, stats)
	assert.Equal(t, 4, stats.Today.Images)
	assert.Equal(t, 1, stats.Today.Videos)
	assert.Equal(t, 120, stats.Month.Images)
	assert.Equal(t, 17, stats.Month.Videos)
}

func TestFetchStatsMalformedResponseReturnsNil(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>error page</html>`))
	}))
	defer mockServer.Close()

	assert.Nil(t, newTestSheetLog(mockServer.URL).FetchStats(context.Background()))
}

func TestFetchStatsServerErrorReturnsNil(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	assert.Nil(t, newTestSheetLog(mockServer.URL).FetchStats(context.Background()))
}

func TestFetchStatsErrorStatusReturnsNil(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"sheet unavailable"}`))
	}))
	defer mockServer.Close()

	assert.Nil(t, newTestSheetLog(mockServer.URL).FetchStats(context.Background()))
}

func TestFetchStatsTransportFailureReturnsNil(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	mockServer.Close()

	assert.Nil(t, newTestSheetLog(mockServer.URL).FetchStats(context.Background()))
}

func TestRecordEventPlaceholderURLSkipsDelivery(t *testing.T) {
	var requests int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer mockServer.Close()

	service := newTestSheetLog("https://script.google.com/YOUR_GOOGLE_SHEET/exec")
	service.RecordEvent(models.UsageEventImage)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestRecordEventDetachedDelivery(t *testing.T) {
	done := make(chan []byte, 1)
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		done <- body
	}))
	defer mockServer.Close()

	service := newTestSheetLog(mockServer.URL)
	service.RecordEvent(models.UsageEventImage)

	select {
	case body := <-done:
		assert.JSONEq(t, `{"type":"Image"}`, string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("usage event was never delivered")
	}
}
