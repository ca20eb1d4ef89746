package confessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%03d", g.prefix, g.next), nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(step)
}

type testServiceOptions struct {
	dedupeVotes bool
}

func newTestService(t *testing.T, options testServiceOptions) (*Service, *gorm.DB, *manualClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:confessions_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&Confession{}, &Comment{}, &VoteRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := newManualClock(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	service, err := NewService(ServiceConfig{
		Database:    db,
		Clock:       clock.Now,
		IDProvider:  &sequentialIDGenerator{prefix: "id"},
		DedupeVotes: options.dedupeVotes,
	})
	if err != nil {
		t.Fatalf("failed to construct confessions service: %v", err)
	}
	return service, db, clock
}

func intPointer(value int) *int {
	return &value
}

func mustConfessionID(t *testing.T, value string) ConfessionID {
	t.Helper()
	id, err := NewConfessionID(value)
	if err != nil {
		t.Fatalf("unexpected confession id error: %v", err)
	}
	return id
}

func mustCommentID(t *testing.T, value string) CommentID {
	t.Helper()
	id, err := NewCommentID(value)
	if err != nil {
		t.Fatalf("unexpected comment id error: %v", err)
	}
	return id
}

func mustCreateConfession(t *testing.T, service *Service, request CreateConfessionRequest) Confession {
	t.Helper()
	confession, err := service.CreateConfession(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to create confession: %v", err)
	}
	return confession
}
