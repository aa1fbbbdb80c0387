package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teamtrivia/catalog"
	"teamtrivia/engine"
	"teamtrivia/models"

	"gorm.io/gorm"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 5
)

type GameService struct {
	db       *gorm.DB
	catalog  *catalog.Catalog
	notifier Notifier
	presence Presence
	logger   *slog.Logger
	now      func() time.Time
}

// Presence reports which teams hold a live connection to a game on this
// instance. Hub satisfies it.
type Presence interface {
	ConnectedTeams(gameID string) []string
}

func NewGameService(db *gorm.DB, cat *catalog.Catalog, logger *slog.Logger) *GameService {
	return &GameService{
		db:       db,
		catalog:  cat,
		notifier: nopNotifier{},
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotifier installs the port told about committed changes.
func (s *GameService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

func (s *GameService) SetPresence(p Presence) {
	s.presence = p
}

func (s *GameService) Catalog() *catalog.Catalog {
	return s.catalog
}

type CreateGameRequest struct {
	HostName string `json:"host_name" binding:"required"`
}

type JoinGameRequest struct {
	Code string `json:"code" binding:"required"`
}

type AddTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

type StartTimerRequest struct {
	Seconds int `json:"seconds"`
}

// PhaseDescriptor is what a host action returns: the state after the action
// and whether it changed anything.
type PhaseDescriptor struct {
	engine.State
	Changed bool `json:"changed"`
}

func (s *GameService) CreateGame(ctx context.Context, req *CreateGameRequest) (*models.Game, error) {
	hostName := strings.TrimSpace(req.HostName)
	if hostName == "" {
		return nil, engine.Validationf("host name is required")
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate game code: %w", err)
		}

		game := models.Game{
			Code:     code,
			HostName: hostName,
			Phase:    engine.PhaseLobby,
		}
		err = s.db.WithContext(ctx).Create(&game).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Debug("game code collision, retrying", "code", code)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create game: %w", err)
		}

		s.logger.Info("game created", "game_id", game.ID, "code", game.Code, "host", hostName)
		game.Teams = []models.Team{}
		return &game, nil
	}

	return nil, fmt.Errorf("failed to find a free game code after %d attempts", codeAttempts)
}

func (s *GameService) JoinByCode(ctx context.Context, req *JoinGameRequest) (*models.Game, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, engine.Validationf("game code is required")
	}

	var game models.Game
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Preload("Teams", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at, created_at")
		}).
		First(&game).Error
	if err != nil {
		return nil, notFound(err, "game %s not found", code)
	}
	return &game, nil
}

func (s *GameService) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	return s.loadGame(s.db.WithContext(ctx), gameID)
}

func (s *GameService) loadGame(tx *gorm.DB, gameID string) (*models.Game, error) {
	var game models.Game
	if err := tx.Where("id = ?", gameID).First(&game).Error; err != nil {
		return nil, notFound(err, "game %s not found", gameID)
	}
	return &game, nil
}

func (s *GameService) AddTeam(ctx context.Context, gameID string, req *AddTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, engine.Validationf("team name is required")
	}

	var team models.Team
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := s.loadGame(tx, gameID)
		if err != nil {
			return err
		}
		if game.Phase != engine.PhaseLobby {
			return engine.Preconditionf("cannot join game - game has already started")
		}

		var existing int64
		if err := tx.Model(&models.Team{}).
			Where("game_id = ? AND name_key = ?", gameID, models.TeamNameKey(name)).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return engine.Conflictf("a team named %q already exists in this game", name)
		}

		var count int64
		if err := tx.Model(&models.Team{}).Where("game_id = ?", gameID).Count(&count).Error; err != nil {
			return err
		}

		team = models.Team{
			GameID:   gameID,
			Name:     name,
			Color:    models.TeamColor(int(count)),
			JoinedAt: s.now(),
		}
		if err := tx.Create(&team).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return engine.Conflictf("a team named %q already exists in this game", name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team joined", "game_id", gameID, "team_id", team.ID, "team", team.Name)
	s.notifier.GameChanged(ctx, gameID)
	return &team, nil
}

func (s *GameService) StartGame(ctx context.Context, gameID string) (*PhaseDescriptor, error) {
	return s.transition(ctx, gameID, "start", func(tx *gorm.DB, game *models.Game) (engine.State, bool, error) {
		var count int64
		if err := tx.Model(&models.Team{}).Where("game_id = ?", game.ID).Count(&count).Error; err != nil {
			return engine.State{}, false, err
		}
		next, err := game.State().Start(int(count))
		return next, err == nil, err
	})
}

// StartTimer opens the answer window for the current question. Zero seconds
// means the round's configured duration.
func (s *GameService) StartTimer(ctx context.Context, gameID string, req *StartTimerRequest) (*PhaseDescriptor, error) {
	if req.Seconds < 0 {
		return nil, engine.Validationf("timer seconds must not be negative")
	}
	return s.transition(ctx, gameID, "timer", func(_ *gorm.DB, game *models.Game) (engine.State, bool, error) {
		seconds := req.Seconds
		if seconds == 0 {
			round, err := s.catalog.Round(game.CurrentRound)
			if err != nil {
				return engine.State{}, false, err
			}
			seconds = round.TimerSeconds
		}
		next, err := game.State().StartTimer(s.now(), time.Duration(seconds)*time.Second)
		return next, err == nil, err
	})
}

func (s *GameService) Reveal(ctx context.Context, gameID string) (*PhaseDescriptor, error) {
	return s.transition(ctx, gameID, "reveal", func(_ *gorm.DB, game *models.Game) (engine.State, bool, error) {
		next, err := game.State().Reveal()
		return next, err == nil && !game.ShowResults, err
	})
}

func (s *GameService) Advance(ctx context.Context, gameID string) (*PhaseDescriptor, error) {
	return s.transition(ctx, gameID, "advance", func(_ *gorm.DB, game *models.Game) (engine.State, bool, error) {
		return game.State().Advance(s.catalog.Shape())
	})
}

func (s *GameService) StartNextRound(ctx context.Context, gameID string) (*PhaseDescriptor, error) {
	return s.transition(ctx, gameID, "next round", func(_ *gorm.DB, game *models.Game) (engine.State, bool, error) {
		next, err := game.State().StartNextRound()
		return next, err == nil, err
	})
}

type transitionFunc func(tx *gorm.DB, game *models.Game) (next engine.State, changed bool, err error)

// transition loads the game, applies fn and saves the phase columns when
// they changed. Concurrent host actions are last-write-wins.
func (s *GameService) transition(ctx context.Context, gameID, action string, fn transitionFunc) (*PhaseDescriptor, error) {
	var desc PhaseDescriptor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := s.loadGame(tx, gameID)
		if err != nil {
			return err
		}

		next, changed, err := fn(tx, game)
		if err != nil {
			return err
		}
		desc = PhaseDescriptor{State: next, Changed: changed}
		if !changed {
			return nil
		}

		game.ApplyState(next)
		return tx.Model(game).Select(models.StateColumns).Updates(game).Error
	})
	if err != nil {
		return nil, err
	}

	if desc.Changed {
		s.logger.Info("game state changed",
			"game_id", gameID,
			"action", action,
			"phase", desc.Phase,
			"round", desc.CurrentRound,
			"question", desc.CurrentQuestion,
		)
		s.notifier.GameChanged(ctx, gameID)
	}
	return &desc, nil
}

// GetView re-derives the full client view from the stored rows.
func (s *GameService) GetView(ctx context.Context, gameID string) (*GameView, error) {
	db := s.db.WithContext(ctx)

	game, err := s.loadGame(db, gameID)
	if err != nil {
		return nil, err
	}

	var teams []models.Team
	if err := db.Where("game_id = ?", gameID).Order("joined_at, created_at").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}

	var answers []models.Answer
	if err := db.Where("game_id = ? AND round_index = ? AND question_index = ?",
		gameID, game.CurrentRound, game.CurrentQuestion).
		Order("id").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	view := BuildView(game, teams, answers, s.catalog, s.now())
	if s.presence != nil {
		markConnected(view.Teams, s.presence.ConnectedTeams(gameID))
	}
	return &view, nil
}

func markConnected(teams []TeamView, connected []string) {
	live := make(map[string]bool, len(connected))
	for _, id := range connected {
		live[id] = true
	}
	for i := range teams {
		teams[i].Connected = live[teams[i].ID]
	}
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// notFound maps a missing record to a NotFoundError and passes anything else
// through.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.NotFoundf(format, args...)
	}
	return err
}
