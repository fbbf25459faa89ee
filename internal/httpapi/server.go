// Package httpapi exposes the question-answering pipeline over a thin HTTP
// surface. No authentication; deployment fronts this with its own gateway.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/internal/cache"
	"github.com/aiyelab/aiye/internal/feedback"
	"github.com/aiyelab/aiye/internal/generator"
	"github.com/aiyelab/aiye/pkg/types"
)

const maxQuestionLen = 1000

// notFoundMarker flags generated answers that concede the collection does
// not cover the topic; sources are stripped for those too.
const notFoundMarker = "Os documentos disponíveis tratam de"

// Answerer is the pipeline surface the API needs. Satisfied by *rag.Engine.
type Answerer interface {
	AnswerWithCache(ctx context.Context, question string, topK int, minSim float64, history []generator.Turn) (string, []types.SearchResult, error)
	Cache() *cache.ResponseCache
}

// AskRequest is the /ask payload.
type AskRequest struct {
	Question string           `json:"question"`
	History  []generator.Turn `json:"history,omitempty"`
}

// Source is one cited document region.
type Source struct {
	Title     string  `json:"title"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	URI       string  `json:"uri"`
	Score     float64 `json:"score"`
}

// AskResponse is the /ask reply.
type AskResponse struct {
	Answer  string         `json:"answer"`
	Sources []Source       `json:"sources"`
	Meta    map[string]any `json:"meta"`
}

// FeedbackRequest is the /feedback payload.
type FeedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

// Server wires the pipeline and the optional feedback store into a router.
type Server struct {
	answerer Answerer
	store    *feedback.Store
	topK     int
	minSim   float64
}

// New creates the API server. store may be nil, which disables the feedback
// endpoints with 503.
func New(answerer Answerer, store *feedback.Store, topK int, minSim float64) *Server {
	return &Server{answerer: answerer, store: store, topK: topK, minSim: minSim}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/healthz", s.handleHealth)
	r.GET("/cache/stats", s.handleCacheStats)
	r.POST("/ask", s.handleAsk)
	r.POST("/feedback", s.handleFeedback)
	r.GET("/feedbacks", s.handleListFeedbacks)
	r.GET("/feedbacks/stats", s.handleFeedbackStats)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.answerer.Cache().Stats())
}

func (s *Server) handleAsk(c *gin.Context) {
	start := time.Now()

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	question := strings.TrimSpace(req.Question)
	if utf8.RuneCountInString(question) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A pergunta deve ter pelo menos 3 caracteres"})
		return
	}
	if utf8.RuneCountInString(question) > maxQuestionLen {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("A pergunta deve ter no máximo %d caracteres", maxQuestionLen)})
		return
	}

	answer, contexts, err := s.answerer.AnswerWithCache(c.Request.Context(), question, s.topK, s.minSim, req.History)
	if err != nil {
		if err == types.ErrQuestionTooShort {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "A pergunta deve ter pelo menos 3 caracteres"})
			return
		}
		log.Error().Err(err).Str("question", question).Msg("ask failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao processar pergunta"})
		return
	}

	c.JSON(http.StatusOK, AskResponse{
		Answer:  answer,
		Sources: buildSources(answer, contexts),
		Meta: map[string]any{
			"latency_ms":   float64(time.Since(start).Microseconds()) / 1000.0,
			"top_k":        s.topK,
			"min_sim":      s.minSim,
			"num_contexts": len(contexts),
		},
	})
}

// buildSources deduplicates contexts by cited region. Answers that concede
// no information was found carry no sources.
func buildSources(answer string, contexts []types.SearchResult) []Source {
	if strings.TrimSpace(answer) == generator.NotFoundAnswer || strings.Contains(answer, notFoundMarker) {
		return []Source{}
	}

	sources := make([]Source, 0, len(contexts))
	seen := make(map[string]bool, len(contexts))
	for _, ctx := range contexts {
		key := fmt.Sprintf("%s|%d|%d|%s", ctx.Title, ctx.PageStart, ctx.PageEnd, ctx.URI)
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, Source{
			Title:     ctx.Title,
			PageStart: ctx.PageStart,
			PageEnd:   ctx.PageEnd,
			URI:       ctx.URI,
			Score:     ctx.Score,
		})
	}
	return sources
}

func (s *Server) handleFeedback(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "feedback persistence disabled"})
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Question == "" || req.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "question and answer are required"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "rating must be between 1 and 5"})
		return
	}

	fb := &feedback.Feedback{
		Question: req.Question,
		Answer:   req.Answer,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := s.store.Save(c.Request.Context(), fb); err != nil {
		log.Error().Err(err).Msg("save feedback failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao salvar feedback"})
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (s *Server) handleListFeedbacks(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "feedback persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("list feedbacks failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao listar feedbacks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedbacks": list, "count": len(list)})
}

func (s *Server) handleFeedbackStats(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "feedback persistence disabled"})
		return
	}

	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("feedback stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao calcular estatísticas"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// corsMiddleware allows browser frontends on any origin, matching the
// deliberately permissive upstream setup.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
