package mailer

import (
	"net/http"
	"net/mail"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizvigil/proctor-agent/internal/model"
	"github.com/quizvigil/proctor-agent/internal/validator"
)

// Handler serves the mailer's HTTP surface. Responses are plain JSON
// objects rather than the agent's response envelope: the caller is the
// quiz backend, which only looks at {"success": true} or
// {"error": ..., "details": ...}.
type Handler struct {
	service EmailService
	log     zerolog.Logger
}

func NewHandler(service EmailService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "mailer_handler").Logger(),
	}
}

// SendResult handles POST /send-result.
func (h *Handler) SendResult(c *gin.Context) {
	var req model.SendResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": fields,
		})
		return
	}

	msg := NewResultMessage(
		mail.Address{Name: req.Name, Address: req.To},
		ResultData{
			Name:             req.Name,
			UniversityNumber: req.UniversityNumber,
			Score:            req.Score,
			Status:           req.Status,
			ViolationCount:   req.ViolationCount,
			Rank:             req.Rank,
			QuizTitle:        req.QuizTitle,
		},
	)
	if err := msg.Render(); err != nil {
		h.log.Error().Err(err).Msg("failed to render result email")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to render email",
			"details": err.Error(),
		})
		return
	}

	if err := h.service.Send(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("to", req.To).Msg("failed to send result email")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to send email",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetupRouter builds the mailer's gin engine.
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.POST("/send-result", h.SendResult)

	return r
}
