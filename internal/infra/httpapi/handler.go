package httpapi

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SessionHeader carries the browser session the dashboard belongs to.
	SessionHeader = "X-Session-ID"
	sessionKey    = "session_id"
	formField     = "video"

	// multipart framing on top of the file itself
	multipartSlack = 1 << 20
)

var allowedExtensions = map[string]bool{".mp4": true, ".mov": true, ".avi": true}

// Canceler stops the analysis running under a key.
type Canceler interface {
	Cancel(key string) bool
}

type Handler struct {
	analyzer  usecase.Analyzer
	canceler  Canceler
	sessions  *SessionStore
	jobs      *JobsBackend
	maxUpload int64
	tempDir   string
	logger    *zap.Logger
}

type HandlerConfig struct {
	MaxUploadBytes int64
	TempDir        string
	// Jobs enables the queue-backed endpoints; nil leaves them unregistered.
	Jobs *JobsBackend
}

func NewHandler(analyzer usecase.Analyzer, canceler Canceler, sessions *SessionStore, logger *zap.Logger, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Handler{
		analyzer:  analyzer,
		canceler:  canceler,
		sessions:  sessions,
		jobs:      cfg.Jobs,
		maxUpload: cfg.MaxUploadBytes,
		tempDir:   cfg.TempDir,
		logger:    logger,
	}
}

type analysisView struct {
	SessionID     string                `json:"sessionId"`
	FromScenario  bool                  `json:"fromScenario"`
	FramesSampled int                   `json:"framesSampled"`
	Result        entity.AnalysisResult `json:"result"`
}

type dashboardView struct {
	SessionID string                `json:"sessionId"`
	Source    string                `json:"source"`
	Result    entity.AnalysisResult `json:"result"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "footfall analysis service is running",
	})
}

// CreateAnalysis accepts an upload, analyzes it synchronously and stores the
// result as the session's dashboard.
func (h *Handler) CreateAnalysis(c *gin.Context) {
	sessionID := h.session(c)

	path, identifier, cleanup, ok := h.receiveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	out, err := h.analyzer.Analyze(c.Request.Context(), usecase.AnalyzeInput{
		Key:        sessionID,
		VideoPath:  path,
		Identifier: identifier,
	})
	if err != nil {
		_ = c.Error(err)
		status, msg := statusFor(err)
		Error(c, status, msg)
		return
	}

	h.sessions.Put(sessionID, out.Result)
	Success(c, analysisView{
		SessionID:     sessionID,
		FromScenario:  out.FromScenario,
		FramesSampled: out.FramesSampled,
		Result:        out.Result,
	})
}

// Dashboard returns the session's latest result, or the demo dashboard when
// nothing was analyzed yet.
func (h *Handler) Dashboard(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set(sessionKey, sessionID)

	if result, ok := h.sessions.Get(sessionID); ok {
		Success(c, dashboardView{SessionID: sessionID, Source: "analysis", Result: result})
		return
	}
	Success(c, dashboardView{SessionID: sessionID, Source: "demo", Result: analysis.Demo()})
}

// DeleteSession cancels any running analysis for the session and forgets its result.
func (h *Handler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set(sessionKey, sessionID)

	cancelled := false
	if h.canceler != nil {
		cancelled = h.canceler.Cancel(sessionID)
	}
	removed := h.sessions.Delete(sessionID)

	Success(c, gin.H{"sessionId": sessionID, "cancelled": cancelled, "removed": removed})
}

func (h *Handler) session(c *gin.Context) string {
	sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.Set(sessionKey, sessionID)
	c.Header(SessionHeader, sessionID)
	return sessionID
}

// receiveUpload stores the multipart video in a private temp dir. On failure it
// has already written the response.
func (h *Handler) receiveUpload(c *gin.Context) (path, identifier string, cleanup func(), ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)

	fh, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, entity.UserMessage(entity.ErrUnsupportedInput))
			return "", "", nil, false
		}
		BadRequest(c, fmt.Sprintf("missing %q file field", formField))
		return "", "", nil, false
	}
	if fh.Size > h.maxUpload {
		Error(c, http.StatusRequestEntityTooLarge, entity.UserMessage(entity.ErrUnsupportedInput))
		return "", "", nil, false
	}

	identifier = filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(identifier))
	if !allowedExtensions[ext] {
		Error(c, http.StatusUnsupportedMediaType, entity.UserMessage(entity.ErrUnsupportedInput))
		return "", "", nil, false
	}

	path, cleanup, err = h.saveUpload(c, fh, ext)
	if err != nil {
		h.logger.Error("failed to store upload", zap.Error(err))
		InternalError(c, "could not store the upload")
		return "", "", nil, false
	}
	return path, identifier, cleanup, true
}

func (h *Handler) saveUpload(c *gin.Context, fh *multipart.FileHeader, ext string) (string, func(), error) {
	if err := os.MkdirAll(h.tempDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	dir, err := os.MkdirTemp(h.tempDir, "upload-")
	if err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "input"+ext)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("save upload: %w", err)
	}
	return path, cleanup, nil
}

func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
