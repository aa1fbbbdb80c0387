package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"teamtrivia/catalog"
	"teamtrivia/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCatalogYAML = `
rounds:
  - title: Warmup
    theme: Easy ones
    points_per_question: 10
    questions:
      - id: 1
        text: Two plus two?
        options: ["3", "4", "5"]
        correct_index: 1
      - id: 2
        text: Sky color?
        options: [Blue, Green]
        correct_index: 0
  - title: Final
    theme: Closest without going over
    points_per_question: 20
    questions:
      - id: 3
        text: How many applications?
        type: open-ended
        target: 26196
`

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Game{}, &models.Team{}, &models.Answer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordingNotifier) GameChanged(_ context.Context, gameID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, gameID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *GameService
	db       *gorm.DB
	notifier *recordingNotifier
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	svc := NewGameService(db, testCatalog(t), discardLogger())
	svc.now = clock.Now
	svc.SetNotifier(notifier)

	return &fixture{svc: svc, db: db, notifier: notifier, clock: clock}
}

func (f *fixture) createGame(t *testing.T) *models.Game {
	t.Helper()
	game, err := f.svc.CreateGame(context.Background(), &CreateGameRequest{HostName: "Quizmaster"})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game
}

func (f *fixture) addTeam(t *testing.T, gameID, name string) *models.Team {
	t.Helper()
	f.clock.Advance(time.Second)
	team, err := f.svc.AddTeam(context.Background(), gameID, &AddTeamRequest{Name: name})
	if err != nil {
		t.Fatalf("add team %s: %v", name, err)
	}
	return team
}

// startedGame returns a game in PLAYING with the named teams and the first
// question's timer running.
func (f *fixture) startedGame(t *testing.T, names ...string) (*models.Game, []*models.Team) {
	t.Helper()
	game := f.createGame(t)
	var teams []*models.Team
	for _, n := range names {
		teams = append(teams, f.addTeam(t, game.ID, n))
	}
	if _, err := f.svc.StartGame(context.Background(), game.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}
	f.startTimer(t, game.ID)
	return game, teams
}

func (f *fixture) startTimer(t *testing.T, gameID string) {
	t.Helper()
	if _, err := f.svc.StartTimer(context.Background(), gameID, &StartTimerRequest{}); err != nil {
		t.Fatalf("start timer: %v", err)
	}
}

func (f *fixture) reveal(t *testing.T, gameID string) {
	t.Helper()
	if _, err := f.svc.Reveal(context.Background(), gameID); err != nil {
		t.Fatalf("reveal: %v", err)
	}
}

func (f *fixture) score(t *testing.T, teamID string) int {
	t.Helper()
	var team models.Team
	if err := f.db.First(&team, "id = ?", teamID).Error; err != nil {
		t.Fatalf("load team: %v", err)
	}
	return team.Score
}

func (f *fixture) game(t *testing.T, gameID string) *models.Game {
	t.Helper()
	game, err := f.svc.GetGame(context.Background(), gameID)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	return game
}
