package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizvigil/proctor-agent/internal/audio"
	"github.com/quizvigil/proctor-agent/internal/backend"
	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/quizvigil/proctor-agent/internal/middleware"
	"github.com/quizvigil/proctor-agent/internal/model"
	"github.com/quizvigil/proctor-agent/internal/proctor"
	"github.com/quizvigil/proctor-agent/internal/response"
	"github.com/quizvigil/proctor-agent/internal/store"
	"github.com/quizvigil/proctor-agent/internal/validator"
	"github.com/rs/zerolog"
)

// SessionHandler starts and inspects proctored sessions.
type SessionHandler struct {
	registry *proctor.Registry
	client   *backend.Client
	store    *store.SessionStore
	journal  proctor.Journal
	audioCtx audio.Context
	cfg      *config.Config
	log      zerolog.Logger
}

// NewSessionHandler creates a SessionHandler. audioCtx may be nil when the
// host has no audio backend; session starts then fail with MEDIA_UNAVAILABLE.
func NewSessionHandler(
	registry *proctor.Registry,
	client *backend.Client,
	store *store.SessionStore,
	journal proctor.Journal,
	audioCtx audio.Context,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		client:   client,
		store:    store,
		journal:  journal,
		audioCtx: audioCtx,
		cfg:      cfg,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/sessions
// Fetches the quiz from the backend, starts the media monitor, and activates
// a proctored session. Media failure is a blocking condition, not retried.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	token := middleware.GetToken(c)

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if existing := h.registry.ActiveFor(claims.Subject, req.QuizID); existing != nil {
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
		return
	}

	quiz, err := h.client.GetQuestions(c.Request.Context(), token, req.QuizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", req.QuizID).Msg("Quiz fetch failed")
		response.Fail(c, http.StatusBadGateway, response.ErrQuizUnavailable)
		return
	}

	duration := quiz.DurationMinutes * 60
	var resume *proctor.ResumeState
	if h.store != nil {
		// A persisted start time means an interrupted attempt (agent restart
		// mid-quiz): rehydrate it instead of starting over.
		if startedAt, err := h.store.StartedAt(c.Request.Context(), claims.Subject, req.QuizID); err == nil {
			answers, _ := h.store.Answers(c.Request.Context(), claims.Subject, req.QuizID)
			count, _ := h.store.ViolationCount(c.Request.Context(), claims.Subject, req.QuizID)
			resume = &proctor.ResumeState{
				StartedAt:      startedAt,
				Answers:        answers,
				ViolationCount: count,
			}
			duration -= int(time.Since(startedAt).Seconds())
			if duration < 1 {
				// Time ran out while the agent was down: the first tick
				// submits whatever was autosaved.
				duration = 1
			}
			h.log.Info().
				Str("student", claims.Subject).
				Str("quiz_id", req.QuizID).
				Int("remaining_seconds", duration).
				Int("violations", count).
				Msg("Resuming interrupted attempt")
		}
	}

	sess := proctor.NewSession(proctor.SessionParams{
		QuizID:          req.QuizID,
		Student:         claims.Subject,
		Token:           token,
		Title:           quiz.Title,
		DurationSeconds: duration,
		Resume:          resume,
		Policy: proctor.Policy{
			MaxWarnings:     h.cfg.MaxWarnings,
			GraceDelay:      h.cfg.GraceDelay,
			TickInterval:    h.cfg.TickInterval,
			UrgentThreshold: h.cfg.UrgentThreshold,
		},
		Backend: h.client,
		Store:   h.store,
		Journal: h.journal,
		Log:     h.log,
	})

	if h.audioCtx == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrMediaUnavailable)
		return
	}
	monitor := proctor.NewMediaMonitor(h.audioCtx, h.cfg.NoiseThreshold, h.cfg.NoiseWindow, sess.AddViolation, h.log)
	sess.SetMonitor(monitor)

	if err := sess.Begin(c.Request.Context()); err != nil {
		if errors.Is(err, proctor.ErrMediaRequired) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrMediaUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("Session start failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.registry.Add(sess)

	// Evict after termination, keeping the snapshot around briefly so a
	// reloading page can still fetch the result.
	go func() {
		<-sess.Done()
		time.Sleep(h.cfg.SessionRetention)
		h.registry.Remove(sess.ID)
	}()

	response.Success(c, http.StatusCreated, gin.H{
		"session":   sess.Snapshot(),
		"questions": quiz.Questions,
	})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
// Returns the session snapshot (remaining time, violation count, answers)
// so a reloaded page can resume.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess := h.registry.Get(id)
	if sess == nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}
