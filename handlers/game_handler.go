package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"teamtrivia/engine"
	"teamtrivia/services"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize            = 320
	keepAliveInterval = 15 * time.Second
)

type GameHandler struct {
	gameService *services.GameService
	hub         *services.Hub
	logger      *slog.Logger
	publicURL   string
}

func NewGameHandler(gameService *services.GameService, hub *services.Hub, logger *slog.Logger, publicURL string) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		hub:         hub,
		logger:      logger,
		publicURL:   strings.TrimSuffix(publicURL, "/"),
	}
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	var req services.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host name is required"})
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"game": game})
}

func (h *GameHandler) JoinGame(c *gin.Context) {
	var req services.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game code is required"})
		return
	}

	game, err := h.gameService.JoinByCode(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	view, err := h.gameService.GetView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *GameHandler) AddTeam(c *gin.Context) {
	var req services.AddTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team name is required"})
		return
	}

	team, err := h.gameService.AddTeam(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"team": team})
}

func (h *GameHandler) StartGame(c *gin.Context) {
	h.respondPhase(c)(h.gameService.StartGame(c.Request.Context(), c.Param("id")))
}

func (h *GameHandler) StartTimer(c *gin.Context) {
	var req services.StartTimerRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.respondPhase(c)(h.gameService.StartTimer(c.Request.Context(), c.Param("id"), &req))
}

func (h *GameHandler) Reveal(c *gin.Context) {
	h.respondPhase(c)(h.gameService.Reveal(c.Request.Context(), c.Param("id")))
}

func (h *GameHandler) Advance(c *gin.Context) {
	h.respondPhase(c)(h.gameService.Advance(c.Request.Context(), c.Param("id")))
}

func (h *GameHandler) StartNextRound(c *gin.Context) {
	h.respondPhase(c)(h.gameService.StartNextRound(c.Request.Context(), c.Param("id")))
}

func (h *GameHandler) respondPhase(c *gin.Context) func(*services.PhaseDescriptor, error) {
	return func(desc *services.PhaseDescriptor, err error) {
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, desc)
	}
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer payload"})
		return
	}

	result, err := h.gameService.SubmitAnswer(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) PreviewFinal(c *gin.Context) {
	round, question, err := h.finalCoordinates(c.Query("round"), c.Query("question"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.gameService.PreviewFinal(c.Request.Context(), c.Param("id"), round, question)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) FinalizeFinal(c *gin.Context) {
	var req services.FinalizeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if (req.Round == nil) != (req.Question == nil) {
		respondError(c, h.logger, engine.Validationf("round and question must be given together"))
		return
	}
	if req.Round == nil {
		round, question, err := h.finalCoordinates("", "")
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		req.Round, req.Question = &round, &question
	}

	result, err := h.gameService.FinalizeFinal(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// finalCoordinates parses explicit round/question values, falling back to the
// catalog's final open-ended question.
func (h *GameHandler) finalCoordinates(roundParam, questionParam string) (int, int, error) {
	if roundParam == "" && questionParam == "" {
		round, question, ok := h.gameService.Catalog().FinalQuestion()
		if !ok {
			return 0, 0, engine.NotFoundf("catalog has no open-ended question")
		}
		return round, question, nil
	}

	round, err := strconv.Atoi(roundParam)
	if err != nil {
		return 0, 0, engine.Validationf("invalid round %q", roundParam)
	}
	question, err := strconv.Atoi(questionParam)
	if err != nil {
		return 0, 0, engine.Validationf("invalid question %q", questionParam)
	}
	return round, question, nil
}

// Events streams game views as server-sent events until the client leaves.
func (h *GameHandler) Events(c *gin.Context) {
	gameID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.gameService.GetGame(ctx, gameID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	client, ok := h.hub.Subscribe(ctx, gameID, c.Query("team_id"))
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	defer h.hub.Unsubscribe(client)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	messages := client.Messages()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(services.MessageGameUpdate, string(msg))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", "keep-alive")
			return true
		}
	})
}

// QRCode renders a PNG that opens the game's join page.
func (h *GameHandler) QRCode(c *gin.Context) {
	game, err := h.gameService.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL(c.Request, game.Code), qrcode.Medium, qrSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *GameHandler) joinURL(r *http.Request, code string) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join/" + code
}

// bindOptionalJSON binds the body when there is one. An empty body leaves
// req at its zero value.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
