package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"artstudioapi/languageutil"
	"artstudioapi/models"
	"artstudioapi/services"
	"artstudioapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type StudioController struct {
	Gatekeeper services.GatekeeperProvider
	LLM        services.LLMProvider
	UsageLog   services.UsageLogProvider
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Sessions   *SessionStore
	BucketName string

	statsMu    sync.Mutex
	statsCache *models.UsageStats
}

type SessionIn struct {
	Language models.Language `json:"language" validate:"omitempty,language"`
}

type TabIn struct {
	Tab Tab `json:"tab" validate:"required,oneof=image video"`
}

type GenerateImageIn struct {
	Form           models.FormData `json:"form"`
	OverridePrompt string          `json:"override_prompt" validate:"omitempty,max=5000"`
}

type GeneratePromptIn struct {
	Form models.FormData `json:"form"`
}

type RewriteIn struct {
	TargetGender models.Gender `json:"target_gender" validate:"required,gender"`
}

type VideoRequestIn struct {
	Mode        models.VideoMode `json:"mode" validate:"required,videomode"`
	RequestText string           `json:"request_text" validate:"omitempty,max=5000"`
	TechDetails string           `json:"tech_details" validate:"omitempty,max=1000"`
}

type HistoryItemResponse struct {
	ID           uint    `json:"id"`
	Kind         string  `json:"kind"`
	Status       string  `json:"status"`
	TechDetails  *string `json:"tech_details"`
	ErrorMessage *string `json:"error_message"`
	MediaURL     string  `json:"media_url,omitempty"`
	CreatedAt    int64   `json:"created_at"`
}

func (controller *StudioController) Routes(e *echo.Echo, sessionGroup *echo.Group) {
	e.POST("/studio/session", controller.CreateSession)

	sessionGroup.GET("/state", controller.GetState)
	sessionGroup.POST("/tab", controller.SwitchTab)
	sessionGroup.POST("/images/:slot", controller.UploadImage)
	sessionGroup.DELETE("/images/:slot", controller.RemoveImage)
	sessionGroup.POST("/generate/image", controller.GenerateImage)
	sessionGroup.POST("/generate/prompt", controller.GeneratePrompt)
	sessionGroup.POST("/analyze", controller.AnalyzeReference)
	sessionGroup.POST("/analyze/rewrite", controller.RewriteAnalyzed)
	sessionGroup.POST("/analyze/apply", controller.ApplyAnalyzed)
	sessionGroup.POST("/video", controller.RequestVideo)
	sessionGroup.GET("/history", controller.GetHistory)
	sessionGroup.GET("/stats", controller.GetStats)
}

func (controller *StudioController) CreateSession(c echo.Context) error {
	req := SessionIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	language := req.Language
	if language == "" {
		language = languageutil.Match(c.Request().Header.Get("Accept-Language"))
	}

	session := controller.Sessions.Create(language)
	token := GenerateSessionToken(session.ID)
	fmt.Printf("Created studio session %s language %s\n", session.ID, language)
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"token": token,
		"state": session.Snapshot(),
	})
}

func (controller *StudioController) GetState(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) SwitchTab(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	req := TabIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	session.SwitchTab(req.Tab)
	return c.JSON(http.StatusOK, session.Snapshot())
}

var imageSlots = map[string]bool{"face": true, "reference": true, "video_face": true}

func (controller *StudioController) UploadImage(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	slot := c.Param("slot")
	if !imageSlots[slot] {
		return echo.ErrNotFound
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if !services.IsAllowedImageFile(fileHeader.Filename, mimeType) {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported image file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.ErrInternalServerError
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return echo.ErrInternalServerError
	}

	session.SetImage(slot, &models.ImageAsset{
		ID:       uuid.NewString(),
		Name:     fileHeader.Filename,
		MIMEType: mimeType,
		Data:     data,
	})
	fmt.Printf("[Session %s] Uploaded %s image %s (%d bytes)\n", session.ID, slot, fileHeader.Filename, len(data))
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) RemoveImage(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	slot := c.Param("slot")
	if !imageSlots[slot] {
		return echo.ErrNotFound
	}
	session.SetImage(slot, nil)
	return c.JSON(http.StatusOK, session.Snapshot())
}

// localizeError maps the error taxonomy to the user-facing message in the
// session language. Unknown errors surface their message in a template, a
// silent failure is worse than a blunt one.
func localizeError(language models.Language, err error) string {
	var safety *services.SafetyViolationError
	var download *services.DownloadError
	var generation *services.GenerationError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return languageutil.T(language, "gatekeeperUnauthorized", nil)
	case errors.Is(err, services.ErrNoImageReturned), errors.Is(err, services.ErrEmptyResponse):
		return languageutil.T(language, "errorNoImageReturned", nil)
	case errors.As(err, &safety):
		return languageutil.T(language, "videoSafetyError", nil)
	case errors.As(err, &download), errors.As(err, &generation):
		return languageutil.T(language, "videoError", nil)
	case strings.Contains(err.Error(), "model does not support"):
		return languageutil.T(language, "errorNoImageReturned", nil)
	default:
		return languageutil.T(language, "errorWithMessage", map[string]string{"message": err.Error()})
	}
}

func (controller *StudioController) newGenerationRecord(db *gorm.DB, session *StudioSession, kind string) *models.GenerationRecord {
	record := &models.GenerationRecord{SessionID: session.ID, Kind: kind, Status: "pending"}
	if db != nil {
		if err := db.Create(record).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("failed to create generation record: %v", err))
		}
	}
	return record
}

func (controller *StudioController) saveGenerationSuccess(db *gorm.DB, record *models.GenerationRecord, mediaKey, techDetails string, started time.Time) {
	if db == nil {
		return
	}
	duration := time.Since(started).Seconds()
	record.Status = "completed"
	record.MediaKey = services.StrPointer(mediaKey)
	record.TechDetails = services.StrPointer(techDetails)
	record.Duration = &duration
	if err := db.Save(record).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("failed to save generation record %v: %v", record.ID, err))
	}
}

func (controller *StudioController) storeMedia(session *StudioSession, kind string, data []byte, mimeType string) string {
	ext := "png"
	if mimeType == "video/mp4" {
		ext = "mp4"
	} else if mimeType == "image/jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("media/%s/%s-%s.%s", session.ID, kind, uuid.NewString(), ext)
	stored, err := services.StoreGeneratedMedia(context.Background(), controller.AWSService, controller.BucketName, key, data, mimeType)
	if err != nil {
		// Storage is best effort, the session still holds the result inline.
		fmt.Printf("[Session %s] Failed to store %s media: %v\n", session.ID, kind, err)
		sentry.CaptureException(fmt.Errorf("failed to store %s media for session %s: %v", kind, session.ID, err))
		return ""
	}
	return stored
}

// refreshStats re-fetches usage counters after a successful generation. Fire
// and forget, the next stats read picks up whatever landed.
func (controller *StudioController) refreshStats() {
	go func() {
		stats := controller.UsageLog.FetchStats(context.Background())
		if stats == nil {
			return
		}
		controller.statsMu.Lock()
		controller.statsCache = stats
		controller.statsMu.Unlock()
	}()
}

func (controller *StudioController) GenerateImage(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	db, _ := c.Get("__db").(*gorm.DB)
	req := GenerateImageIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if req.OverridePrompt == "" {
		if err := c.Validate(&req.Form); err != nil {
			return err
		}
	}

	session.mu.Lock()
	face := session.FaceImage
	reference := session.ReferenceImage
	session.Form = req.Form
	language := session.Language
	session.mu.Unlock()

	if face == nil {
		return echo.NewHTTPError(http.StatusBadRequest, languageutil.T(language, "errorNoFaceImage", nil))
	}

	seq, err := session.BeginSubmission(WorkflowImage)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "image generation already running")
	}

	started := time.Now()
	record := controller.newGenerationRecord(db, session, "image")

	generated, err := controller.LLM.ComposeImage(c.Request().Context(), req.Form, *face, reference, language, req.OverridePrompt)
	if err != nil {
		fmt.Printf("[Session %s] Image generation failed: %v\n", session.ID, err)
		message := localizeError(language, err)
		session.Fail(WorkflowImage, seq, message)
		if db != nil {
			tasks.SaveGenerationFail(db, record, message)
		}
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	mediaKey := controller.storeMedia(session, "image", generated.Data, generated.MIMEType)
	controller.saveGenerationSuccess(db, record, mediaKey, generated.TechDetails, started)
	session.Complete(WorkflowImage, seq, ResultSlot{Kind: ResultImage, Image: generated})
	controller.refreshStats()
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) GeneratePrompt(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	req := GeneratePromptIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(&req.Form); err != nil {
		return err
	}

	session.mu.Lock()
	hasReference := session.ReferenceImage != nil
	session.Form = req.Form
	language := session.Language
	session.mu.Unlock()

	seq, err := session.BeginSubmission(WorkflowImage)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "image generation already running")
	}

	result, err := controller.Gatekeeper.GeneratePrompt(c.Request().Context(), req.Form, hasReference, language)
	if err != nil {
		fmt.Printf("[Session %s] Prompt generation failed: %v\n", session.ID, err)
		session.Fail(WorkflowImage, seq, localizeError(language, err))
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	if session.Complete(WorkflowImage, seq, ResultSlot{Kind: ResultPrompt, Prompt: result}) {
		session.mu.Lock()
		session.EditablePrompt = result.Prompt
		session.mu.Unlock()
	}
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) AnalyzeReference(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)

	session.mu.Lock()
	reference := session.ReferenceImage
	language := session.Language
	session.mu.Unlock()

	if reference == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reference image is required")
	}

	seq, err := session.BeginSubmission(WorkflowAnalyze)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "analysis already running")
	}

	scene, err := controller.LLM.AnalyzeImage(c.Request().Context(), *reference, language)
	if err != nil {
		fmt.Printf("[Session %s] Reference analysis failed: %v\n", session.ID, err)
		session.Fail(WorkflowAnalyze, seq, localizeError(language, err))
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	if session.Complete(WorkflowAnalyze, seq, ResultSlot{Kind: ResultNone}) {
		session.mu.Lock()
		session.AnalyzedContext = scene
		session.Notice = languageutil.T(language, "contextLoadedSuccess", nil)
		session.mu.Unlock()
	}
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) RewriteAnalyzed(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	req := RewriteIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	session.mu.Lock()
	scene := session.AnalyzedContext
	language := session.Language
	session.mu.Unlock()

	if scene == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no analyzed context to rewrite")
	}
	if scene.Gender == req.TargetGender {
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	seq, err := session.BeginSubmission(WorkflowAnalyze)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "analysis already running")
	}

	rewritten, err := controller.LLM.RewriteForGender(c.Request().Context(), *scene, req.TargetGender, language)
	if err != nil {
		fmt.Printf("[Session %s] Gender rewrite failed: %v\n", session.ID, err)
		session.Fail(WorkflowAnalyze, seq, localizeError(language, err))
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	if session.Complete(WorkflowAnalyze, seq, ResultSlot{Kind: ResultNone}) {
		session.mu.Lock()
		session.AnalyzedContext = rewritten
		session.mu.Unlock()
	}
	return c.JSON(http.StatusOK, session.Snapshot())
}

// ApplyAnalyzed copies the analyzed scene attributes into the creation form.
func (controller *StudioController) ApplyAnalyzed(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.AnalyzedContext == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no analyzed context to apply")
	}
	scene := session.AnalyzedContext
	session.Form.Gender = scene.Gender
	session.Form.Theme = scene.Theme
	session.Form.Context = scene.Context
	session.Form.Location = scene.Location
	session.Form.Action = scene.Action
	session.Form.Emotion = scene.Emotion
	session.Form.Style = scene.Style
	return c.JSON(http.StatusOK, session.snapshotLocked())
}

func (controller *StudioController) RequestVideo(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	db, _ := c.Get("__db").(*gorm.DB)
	asynqClient, _ := c.Get("__asynqclient").(*asynq.Client)
	req := VideoRequestIn{}
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	session.mu.Lock()
	face := session.VideoFaceImage
	gender := session.Form.Gender
	language := session.Language
	session.mu.Unlock()

	if face == nil {
		return echo.NewHTTPError(http.StatusBadRequest, languageutil.T(language, "errorNoFaceImage", nil))
	}
	if gender == "" {
		gender = models.GenderFemale
	}

	seq, err := session.BeginSubmission(WorkflowVideo)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "video workflow already running")
	}

	if req.Mode == models.VideoModeVideo {
		// Long running: the handler returns immediately and the session state
		// carries the outcome once the operation completes.
		go controller.runVideoGeneration(session, db, asynqClient, seq, req, *face, language)
		return c.JSON(http.StatusAccepted, session.Snapshot())
	}

	plan, err := controller.LLM.PlanVideo(c.Request().Context(), req.Mode, req.RequestText, gender, *face, language)
	if err != nil {
		fmt.Printf("[Session %s] Video planning failed: %v\n", session.ID, err)
		session.Fail(WorkflowVideo, seq, localizeError(language, err))
		return c.JSON(http.StatusOK, session.Snapshot())
	}

	if len(plan.Suggestions) > 0 {
		session.Complete(WorkflowVideo, seq, ResultSlot{Kind: ResultSuggestions, Suggestions: plan.Suggestions})
	} else {
		session.Complete(WorkflowVideo, seq, ResultSlot{Kind: ResultPrompt, Prompt: &models.PromptResult{
			Prompt:      plan.Prompt,
			TechDetails: plan.TechDetails,
		}})
	}
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (controller *StudioController) runVideoGeneration(session *StudioSession, db *gorm.DB, asynqClient *asynq.Client, seq uint64, req VideoRequestIn, face models.ImageAsset, language models.Language) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			session.Fail(WorkflowVideo, seq, languageutil.T(language, "videoError", nil))
		}
	}()

	started := time.Now()
	record := controller.newGenerationRecord(db, session, "video")
	fmt.Printf("[Session %s] Starting video generation\n", session.ID)

	generated, err := controller.LLM.GenerateVideo(context.Background(), req.RequestText, face)
	if err != nil {
		fmt.Printf("[Session %s] Video generation failed: %v\n", session.ID, err)
		message := localizeError(language, err)
		session.Fail(WorkflowVideo, seq, message)
		if db != nil {
			tasks.SaveGenerationFail(db, record, message)
		}

		var safety *services.SafetyViolationError
		if errors.As(err, &safety) && asynqClient != nil {
			task, taskErr := tasks.NewSafetyAlertTask(session.ID, safety.Message)
			if taskErr == nil {
				_, taskErr = asynqClient.Enqueue(task)
			}
			if taskErr != nil {
				sentry.CaptureException(fmt.Errorf("failed to enqueue safety alert: %v", taskErr))
			}
		}
		return
	}

	if req.TechDetails != "" {
		generated.TechDetails = req.TechDetails
	}

	mediaKey := controller.storeMedia(session, "video", generated.Data, generated.MIMEType)
	if mediaKey != "" && controller.URLCache != nil {
		url, urlErr := controller.URLCache.GetReadURL(context.Background(), mediaKey)
		if urlErr != nil {
			fmt.Printf("[Session %s] Failed to presign video URL: %v\n", session.ID, urlErr)
		} else {
			generated.VideoURL = url
		}
	}
	controller.saveGenerationSuccess(db, record, mediaKey, generated.TechDetails, started)
	if session.Complete(WorkflowVideo, seq, ResultSlot{Kind: ResultVideo, Video: generated}) {
		fmt.Printf("[Session %s] Video generation finished in %.1fs\n", session.ID, time.Since(started).Seconds())
	}
	controller.refreshStats()
}

func (controller *StudioController) GetHistory(c echo.Context) error {
	session := c.Get("currentSession").(*StudioSession)
	db, _ := c.Get("__db").(*gorm.DB)
	if db == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"history": []HistoryItemResponse{}})
	}

	var records []models.GenerationRecord
	res := db.Where("session_id = ?", session.ID).Order("created_at desc").Limit(50).Find(&records)
	if res.Error != nil {
		fmt.Println("Failed to fetch generation history:", res.Error)
		return echo.ErrInternalServerError
	}

	items := make([]HistoryItemResponse, 0, len(records))
	for _, record := range records {
		item := HistoryItemResponse{
			ID:           record.ID,
			Kind:         record.Kind,
			Status:       record.Status,
			TechDetails:  record.TechDetails,
			ErrorMessage: record.ErrorMessage,
			CreatedAt:    record.CreatedAt.UnixMilli(),
		}
		if record.MediaKey != nil && controller.URLCache != nil {
			url, err := controller.URLCache.GetReadURL(c.Request().Context(), *record.MediaKey)
			if err != nil {
				fmt.Println("Failed to presign media URL:", err)
			} else {
				item.MediaURL = url
			}
		}
		items = append(items, item)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": items})
}

// GetStats serves usage counters. A nil result means the counters are
// temporarily unavailable and the client hides the panel.
func (controller *StudioController) GetStats(c echo.Context) error {
	stats := controller.UsageLog.FetchStats(c.Request().Context())
	if stats == nil {
		controller.statsMu.Lock()
		stats = controller.statsCache
		controller.statsMu.Unlock()
	} else {
		controller.statsMu.Lock()
		controller.statsCache = stats
		controller.statsMu.Unlock()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"stats": stats})
}
