package confessions

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew      = "confessions.service.new"
	opListConfessions = "confessions.list"
	opCreateConfess   = "confessions.create"
	opVoteConfession  = "confessions.vote"
	opTrending        = "confessions.trending"

	fieldConfessionID = "confession_id"
	fieldCommentID    = "comment_id"
	fieldDirection    = "direction"

	columnID            = "id"
	columnUpvotes       = "upvotes"
	columnDownvotes     = "downvotes"
	columnCommentsCount = "comments_count"

	queryID                  = columnID + " = ?"
	queryDepartment          = "department = ?"
	queryTextContains        = `LOWER(text) LIKE ? ESCAPE '\'`
	queryYear                = "year = ?"
	queryCreatedSince        = "created_at >= ?"
	orderNewestFirst         = "created_at DESC, id DESC"
	orderViewsThenNewest     = "views DESC, created_at DESC"
	reasonMissingDatabase    = "missing_database"
	reasonMissingIDProvider  = "missing_id_provider"
	reasonInvalidInput       = "invalid_input"
	reasonQueryFailed        = "query_failed"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonInsertFailed       = "insert_failed"
	reasonIncrementFailed    = "increment_failed"
	reasonNotFound           = "not_found"
	reasonReloadFailed       = "reload_failed"
	reasonDuplicateVote      = "duplicate_vote"
	reasonLedgerFailed       = "vote_ledger_failed"
	reasonMissingVoter       = "missing_voter"

	trendingWindow = 24 * time.Hour
	trendingLimit  = 5
)

var noOpLogger = zap.NewNop()

// IDProvider issues identifiers for new records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the confession and comment service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
	DedupeVotes bool
}

// Service owns confessions, their comments, and the vote counters on both.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	logger      *zap.Logger
	dedupeVotes bool
}

// NewService validates dependencies and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
		dedupeVotes: cfg.DedupeVotes,
	}, nil
}

// DedupeVotes reports whether votes are tied to a caller identity.
func (s *Service) DedupeVotes() bool {
	return s != nil && s.dedupeVotes
}

// ListConfessions returns the feed newest-first. Unknown departments are ignored.
func (s *Service) ListConfessions(ctx context.Context, filter ListFilter) ([]Confession, error) {
	if s.db == nil {
		s.logError(opListConfessions, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListConfessions, reasonMissingDatabase, errMissingDatabase)
	}

	query := s.db.WithContext(ctx).Model(&Confession{})
	if strings.TrimSpace(filter.Department) != "" {
		if department, err := ParseDepartment(filter.Department); err == nil {
			query = query.Where(queryDepartment, department)
		}
	}
	if strings.TrimSpace(filter.Search) != "" {
		matches := s.db.Where(queryTextContains, containsPattern(filter.Search))
		if year, ok := searchYear(filter.Search); ok {
			matches = matches.Or(queryYear, year)
		}
		query = query.Where(matches)
	}

	confessions := make([]Confession, 0)
	if err := query.Order(orderNewestFirst).Find(&confessions).Error; err != nil {
		s.logError(opListConfessions, reasonQueryFailed, err,
			zap.String("department", filter.Department),
			zap.String("search", filter.Search))
		return nil, newServiceError(opListConfessions, reasonQueryFailed, err)
	}
	return confessions, nil
}

// CreateConfession validates and persists a new confession with zeroed counters.
func (s *Service) CreateConfession(ctx context.Context, request CreateConfessionRequest) (Confession, error) {
	if s.db == nil {
		s.logError(opCreateConfess, reasonMissingDatabase, errMissingDatabase)
		return Confession{}, newServiceError(opCreateConfess, reasonMissingDatabase, errMissingDatabase)
	}

	draft, err := request.validate()
	if err != nil {
		return Confession{}, newServiceError(opCreateConfess, reasonInvalidInput, err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateConfess, reasonIDGenerationFailed, err)
		return Confession{}, newServiceError(opCreateConfess, reasonIDGenerationFailed, err)
	}

	confession := Confession{
		ID:         id,
		Text:       draft.text,
		Department: draft.department,
		Gender:     draft.gender,
		Year:       draft.year,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&confession).Error; err != nil {
		s.logError(opCreateConfess, reasonInsertFailed, err, zap.String(fieldConfessionID, id))
		return Confession{}, newServiceError(opCreateConfess, reasonInsertFailed, err)
	}
	return confession, nil
}

// VoteConfession adds one vote in the given direction. An empty voter casts an anonymous vote.
func (s *Service) VoteConfession(ctx context.Context, confessionID ConfessionID, direction VoteDirection, voter VoterID) (Confession, error) {
	if s.db == nil {
		s.logError(opVoteConfession, reasonMissingDatabase, errMissingDatabase)
		return Confession{}, newServiceError(opVoteConfession, reasonMissingDatabase, errMissingDatabase)
	}
	if s.dedupeVotes && voter == "" {
		return Confession{}, newServiceError(opVoteConfession, reasonMissingVoter, ErrInvalidVoterID)
	}

	var updated Confession
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		column := direction.column()
		result := tx.Model(&Confession{}).
			Where(queryID, confessionID.String()).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if result.Error != nil {
			s.logError(opVoteConfession, reasonIncrementFailed, result.Error,
				zap.String(fieldConfessionID, confessionID.String()),
				zap.String(fieldDirection, string(direction)))
			return newServiceError(opVoteConfession, reasonIncrementFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opVoteConfession, reasonNotFound, ErrNotFound)
		}

		if err := s.recordVote(tx, opVoteConfession, voter, voteTargetConfession, confessionID.String(), direction); err != nil {
			return err
		}

		if err := tx.Where(queryID, confessionID.String()).Take(&updated).Error; err != nil {
			s.logError(opVoteConfession, reasonReloadFailed, err, zap.String(fieldConfessionID, confessionID.String()))
			return newServiceError(opVoteConfession, reasonReloadFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Confession{}, txErr
	}
	return updated, nil
}

// Trending returns up to five confessions from the last 24 hours, most viewed first.
func (s *Service) Trending(ctx context.Context) ([]Confession, error) {
	if s.db == nil {
		s.logError(opTrending, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opTrending, reasonMissingDatabase, errMissingDatabase)
	}

	since := s.clock().UTC().Add(-trendingWindow)
	trending := make([]Confession, 0, trendingLimit)
	if err := s.db.WithContext(ctx).
		Where(queryCreatedSince, since).
		Order(orderViewsThenNewest).
		Limit(trendingLimit).
		Find(&trending).Error; err != nil {
		s.logError(opTrending, reasonQueryFailed, err)
		return nil, newServiceError(opTrending, reasonQueryFailed, err)
	}
	return trending, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("confessions service error", attrs...)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
