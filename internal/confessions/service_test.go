package confessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCreateConfessionStartsWithZeroCounters(t *testing.T) {
	service, _, _ := newTestService(t, testServiceOptions{})

	confession := mustCreateConfession(t, service, CreateConfessionRequest{Text: "  I never read the syllabus  ", Department: "cs"})

	if confession.ID == "" {
		t.Fatalf("expected generated id")
	}
	if confession.Department != "CS" {
		t.Fatalf("expected department to be normalized, got %q", confession.Department)
	}
	if confession.Text != "I never read the syllabus" {
		t.Fatalf("expected trimmed text, got %q", confession.Text)
	}
	if confession.Gender != nil || confession.Year != nil {
		t.Fatalf("expected optional metadata to stay empty")
	}
	if confession.Upvotes != 0 || confession.Downvotes != 0 || confession.CommentsCount != 0 || confession.Views != 0 {
		t.Fatalf("expected zero counters, got %+v", confession)
	}
}

func TestCreateConfessionRejectsInvalidInputWithoutWriting(t *testing.T) {
	service, db, _ := newTestService(t, testServiceOptions{})

	_, err := service.CreateConfession(context.Background(), CreateConfessionRequest{Text: "hello", Department: "CS", Year: intPointer(5)})
	if !errors.Is(err, ErrYearOutOfRange) {
		t.Fatalf("expected year range error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "confessions.create.invalid_input" {
		t.Fatalf("expected invalid input code, got %v", err)
	}

	var count int64
	if err := db.Model(&Confession{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count confessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
}

func TestListConfessionsOrdersNewestFirstAndFiltersDepartment(t *testing.T) {
	service, _, clock := newTestService(t, testServiceOptions{})

	first := mustCreateConfession(t, service, CreateConfessionRequest{Text: "first", Department: "CS"})
	clock.Advance(time.Minute)
	mustCreateConfession(t, service, CreateConfessionRequest{Text: "second", Department: "LAW"})
	clock.Advance(time.Minute)
	third := mustCreateConfession(t, service, CreateConfessionRequest{Text: "third", Department: "cs"})

	all, err := service.ListConfessions(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].Text != "third" || all[2].Text != "first" {
		t.Fatalf("expected newest-first feed, got %+v", all)
	}

	filtered, err := service.ListConfessions(context.Background(), ListFilter{Department: "cs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != third.ID || filtered[1].ID != first.ID {
		t.Fatalf("expected only CS confessions newest-first, got %+v", filtered)
	}

	ignored, err := service.ListConfessions(context.Background(), ListFilter{Department: "zz"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ignored) != 3 {
		t.Fatalf("expected invalid department to be ignored, got %d results", len(ignored))
	}
}

func TestListConfessionsSearchMatchesTextOrYear(t *testing.T) {
	service, _, clock := newTestService(t, testServiceOptions{})

	mustCreateConfession(t, service, CreateConfessionRequest{Text: "second year blues", Department: "CS", Year: intPointer(2)})
	clock.Advance(time.Minute)
	roomMatch := mustCreateConfession(t, service, CreateConfessionRequest{Text: "Exam in room 3", Department: "ME"})
	clock.Advance(time.Minute)
	yearMatch := mustCreateConfession(t, service, CreateConfessionRequest{Text: "nothing numeric", Department: "CS", Year: intPointer(3)})

	results, err := service.ListConfessions(context.Background(), ListFilter{Search: "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].ID != yearMatch.ID || results[1].ID != roomMatch.ID {
		t.Fatalf("expected year and text matches, got %+v", results)
	}

	insensitive, err := service.ListConfessions(context.Background(), ListFilter{Search: "EXAM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insensitive) != 1 || insensitive[0].ID != roomMatch.ID {
		t.Fatalf("expected case-insensitive text match, got %+v", insensitive)
	}

	combined, err := service.ListConfessions(context.Background(), ListFilter{Department: "CS", Search: "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(combined) != 1 || combined[0].ID != yearMatch.ID {
		t.Fatalf("expected department to AND with search, got %+v", combined)
	}
}

func TestListConfessionsSearchTreatsWildcardsLiterally(t *testing.T) {
	service, _, _ := newTestService(t, testServiceOptions{})

	literal := mustCreateConfession(t, service, CreateConfessionRequest{Text: "100% honest", Department: "CS"})
	mustCreateConfession(t, service, CreateConfessionRequest{Text: "plain", Department: "CS"})

	results, err := service.ListConfessions(context.Background(), ListFilter{Search: "%"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != literal.ID {
		t.Fatalf("expected only the literal percent match, got %+v", results)
	}
}

func TestListConfessionsReturnsEmptySlice(t *testing.T) {
	service, _, _ := newTestService(t, testServiceOptions{})

	results, err := service.ListConfessions(context.Background(), ListFilter{Search: "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", results)
	}
}

func TestVoteConfessionIncrementsCounters(t *testing.T) {
	service, _, _ := newTestService(t, testServiceOptions{})
	confession := mustCreateConfession(t, service, CreateConfessionRequest{Text: "vote me", Department: "CS"})
	id := mustConfessionID(t, confession.ID)

	updated, err := service.VoteConfession(context.Background(), id, VoteUp, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Upvotes != 1 || updated.Downvotes != 0 {
		t.Fatalf("unexpected counters after upvote: %+v", updated)
	}

	updated, err = service.VoteConfession(context.Background(), id, VoteDown, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Upvotes != 1 || updated.Downvotes != 1 {
		t.Fatalf("unexpected counters after downvote: %+v", updated)
	}
}

func TestVoteConfessionConcurrentUpvotesAreNotLost(t *testing.T) {
	service, _, _ := newTestService(t, testServiceOptions{})
	confession := mustCreateConfession(t, service, CreateConfessionRequest{Text: "popular", Department: "CS"})
	id := mustConfessionID(t, confession.ID)

	const voters = 25
	var waitGroup sync.WaitGroup
	errs := make(chan error, voters)
	for index := 0; index < voters; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := service.VoteConfession(context.Background(), id, VoteUp, ""); err != nil {
				errs <- err
			}
		}()
	}
	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent vote failed: %v", err)
	}

	results, err := service.ListConfessions(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Upvotes != voters {
		t.Fatalf("expected %d upvotes, got %d", voters, results[0].Upvotes)
	}
}

func TestVoteConfessionUnknownIDIsNotFound(t *testing.T) {
	service, db, _ := newTestService(t, testServiceOptions{})
	mustCreateConfession(t, service, CreateConfessionRequest{Text: "untouched", Department: "CS"})

	_, err := service.VoteConfession(context.Background(), mustConfessionID(t, "missing"), VoteUp, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var stored Confession
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load confession: %v", err)
	}
	if stored.Upvotes != 0 {
		t.Fatalf("expected no mutation, got %d upvotes", stored.Upvotes)
	}
}

func TestVoteConfessionDedupeRejectsRepeatVote(t *testing.T) {
	service, db, _ := newTestService(t, testServiceOptions{dedupeVotes: true})
	confession := mustCreateConfession(t, service, CreateConfessionRequest{Text: "once only", Department: "CS"})
	id := mustConfessionID(t, confession.ID)

	if _, err := service.VoteConfession(context.Background(), id, VoteUp, ""); !errors.Is(err, ErrInvalidVoterID) {
		t.Fatalf("expected missing voter to be rejected, got %v", err)
	}
	if _, err := service.VoteConfession(context.Background(), id, VoteUp, "voter-1"); err != nil {
		t.Fatalf("unexpected error on first vote: %v", err)
	}
	if _, err := service.VoteConfession(context.Background(), id, VoteUp, "voter-1"); !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}
	updated, err := service.VoteConfession(context.Background(), id, VoteDown, "voter-1")
	if err != nil {
		t.Fatalf("expected opposite direction to be accepted: %v", err)
	}
	if updated.Upvotes != 1 || updated.Downvotes != 1 {
		t.Fatalf("unexpected counters: %+v", updated)
	}

	var ledgerRows int64
	if err := db.Model(&VoteRecord{}).Count(&ledgerRows).Error; err != nil {
		t.Fatalf("failed to count vote records: %v", err)
	}
	if ledgerRows != 2 {
		t.Fatalf("expected 2 vote records, got %d", ledgerRows)
	}
}

func TestTrendingReturnsRecentMostViewed(t *testing.T) {
	service, db, clock := newTestService(t, testServiceOptions{})

	stale := mustCreateConfession(t, service, CreateConfessionRequest{Text: "yesterday's news", Department: "CS"})
	clock.Advance(25 * time.Hour)

	views := []int64{4, 40, 0, 12, 7, 30}
	for index, viewCount := range views {
		recent := mustCreateConfession(t, service, CreateConfessionRequest{Text: "recent", Department: "CS"})
		if err := db.Model(&Confession{}).Where("id = ?", recent.ID).UpdateColumn("views", viewCount).Error; err != nil {
			t.Fatalf("failed to seed views for %d: %v", index, err)
		}
		clock.Advance(time.Minute)
	}
	if err := db.Model(&Confession{}).Where("id = ?", stale.ID).UpdateColumn("views", 1000).Error; err != nil {
		t.Fatalf("failed to seed stale views: %v", err)
	}

	trending, err := service.Trending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trending) != trendingLimit {
		t.Fatalf("expected %d results, got %d", trendingLimit, len(trending))
	}
	want := []int64{40, 30, 12, 7, 4}
	for index, confession := range trending {
		if confession.ID == stale.ID {
			t.Fatalf("stale confession must not trend")
		}
		if confession.Views != want[index] {
			t.Fatalf("position %d: expected %d views, got %d", index, want[index], confession.Views)
		}
	}
}

func TestServiceMethodsRequireDatabase(t *testing.T) {
	service := &Service{}

	_, err := service.ListConfessions(context.Background(), ListFilter{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "confessions.list.missing_database" {
		t.Fatalf("expected missing database code, got %v", err)
	}
	if _, err := service.Trending(context.Background()); err == nil {
		t.Fatalf("expected trending to fail without database")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Fatalf("expected missing database error")
	}
}
