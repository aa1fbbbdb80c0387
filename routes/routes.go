package routes

import (
	"log/slog"
	"net/http"

	"teamtrivia/engine"
	"teamtrivia/handlers"
	"teamtrivia/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var errTeamNotInGame = engine.NotFoundf("team not found in this game")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // team devices join from anywhere on the network
	},
}

func SetupRoutes(
	router *gin.Engine,
	catalogHandler *handlers.CatalogHandler,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	gameService *services.GameService,
	logger *slog.Logger,
) {
	api := router.Group("/api")
	{
		rounds := api.Group("/rounds")
		{
			rounds.GET("", catalogHandler.GetRounds)
			rounds.GET("/:index", catalogHandler.GetRound)
		}

		games := api.Group("/games")
		{
			games.POST("", gameHandler.CreateGame)
			games.POST("/join", gameHandler.JoinGame)
			games.GET("/:id", gameHandler.GetGame)
			games.POST("/:id/teams", gameHandler.AddTeam)
			games.POST("/:id/answers", gameHandler.SubmitAnswer)
			games.GET("/:id/events", gameHandler.Events)
			games.GET("/:id/qr", gameHandler.QRCode)

			// Host controls
			games.POST("/:id/start", gameHandler.StartGame)
			games.POST("/:id/timer", gameHandler.StartTimer)
			games.POST("/:id/reveal", gameHandler.Reveal)
			games.POST("/:id/advance", gameHandler.Advance)
			games.POST("/:id/next-round", gameHandler.StartNextRound)
			games.GET("/:id/final", gameHandler.PreviewFinal)
			games.POST("/:id/final", gameHandler.FinalizeFinal)
		}
	}

	// WebSocket endpoint for pushed game updates
	router.GET("/ws/:id", func(c *gin.Context) {
		gameID := c.Param("id")
		teamID := c.Query("team_id")

		if err := validateAccess(c, gameService, gameID, teamID); err != nil {
			logger.Info("websocket access rejected", "game_id", gameID, "team_id", teamID, "error", err)
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "game_id", gameID, "error", err)
			return
		}

		logger.Debug("websocket connected", "game_id", gameID, "team_id", teamID)
		hub.RegisterClient(c.Request.Context(), conn, gameID, teamID)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// validateAccess checks the game exists and, when a team is named, that the
// team belongs to it. Hosts connect without a team id.
func validateAccess(c *gin.Context, gameService *services.GameService, gameID, teamID string) error {
	view, err := gameService.GetView(c.Request.Context(), gameID)
	if err != nil {
		return err
	}
	if teamID == "" {
		return nil
	}
	for _, team := range view.Teams {
		if team.ID == teamID {
			return nil
		}
	}
	return errTeamNotInGame
}
