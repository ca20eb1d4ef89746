package confessions

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListComments  = "confessions.list_comments"
	opCreateComment = "confessions.create_comment"
	opVoteComment   = "confessions.vote_comment"

	queryConfessionID        = "confession_id = ?"
	queryCommentOfConfession = "id = ? AND confession_id = ?"
	reasonParentLookupFailed = "parent_lookup_failed"
	reasonCounterFailed      = "counter_update_failed"
)

// ListComments returns the comments of a confession, newest first.
func (s *Service) ListComments(ctx context.Context, confessionID ConfessionID) ([]Comment, error) {
	if s.db == nil {
		s.logError(opListComments, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListComments, reasonMissingDatabase, errMissingDatabase)
	}

	comments := make([]Comment, 0)
	if err := s.db.WithContext(ctx).
		Where(queryConfessionID, confessionID.String()).
		Order(orderNewestFirst).
		Find(&comments).Error; err != nil {
		s.logError(opListComments, reasonQueryFailed, err, zap.String(fieldConfessionID, confessionID.String()))
		return nil, newServiceError(opListComments, reasonQueryFailed, err)
	}
	return comments, nil
}

// CreateComment inserts a comment and bumps the parent's comment counter in one transaction.
func (s *Service) CreateComment(ctx context.Context, confessionID ConfessionID, rawText string) (Comment, error) {
	if s.db == nil {
		s.logError(opCreateComment, reasonMissingDatabase, errMissingDatabase)
		return Comment{}, newServiceError(opCreateComment, reasonMissingDatabase, errMissingDatabase)
	}

	text, err := validateCommentText(rawText)
	if err != nil {
		return Comment{}, newServiceError(opCreateComment, reasonInvalidInput, err)
	}

	var comment Comment
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent Confession
		err := tx.Select(columnID).Where(queryID, confessionID.String()).Take(&parent).Error
		if isRecordNotFound(err) {
			return newServiceError(opCreateComment, reasonNotFound, ErrNotFound)
		}
		if err != nil {
			s.logError(opCreateComment, reasonParentLookupFailed, err, zap.String(fieldConfessionID, confessionID.String()))
			return newServiceError(opCreateComment, reasonParentLookupFailed, err)
		}

		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opCreateComment, reasonIDGenerationFailed, err, zap.String(fieldConfessionID, confessionID.String()))
			return newServiceError(opCreateComment, reasonIDGenerationFailed, err)
		}

		comment = Comment{
			ID:           id,
			ConfessionID: confessionID.String(),
			Text:         text,
			CreatedAt:    s.clock().UTC(),
		}
		if err := tx.Create(&comment).Error; err != nil {
			s.logError(opCreateComment, reasonInsertFailed, err, zap.String(fieldConfessionID, confessionID.String()))
			return newServiceError(opCreateComment, reasonInsertFailed, err)
		}

		if err := tx.Model(&Confession{}).
			Where(queryID, confessionID.String()).
			UpdateColumn(columnCommentsCount, gorm.Expr(columnCommentsCount+" + ?", 1)).Error; err != nil {
			s.logError(opCreateComment, reasonCounterFailed, err, zap.String(fieldConfessionID, confessionID.String()))
			return newServiceError(opCreateComment, reasonCounterFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Comment{}, txErr
	}
	return comment, nil
}

// VoteComment adds one vote to a comment that belongs to the given confession.
func (s *Service) VoteComment(ctx context.Context, confessionID ConfessionID, commentID CommentID, direction VoteDirection, voter VoterID) (Comment, error) {
	if s.db == nil {
		s.logError(opVoteComment, reasonMissingDatabase, errMissingDatabase)
		return Comment{}, newServiceError(opVoteComment, reasonMissingDatabase, errMissingDatabase)
	}
	if s.dedupeVotes && voter == "" {
		return Comment{}, newServiceError(opVoteComment, reasonMissingVoter, ErrInvalidVoterID)
	}

	var updated Comment
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		column := direction.column()
		result := tx.Model(&Comment{}).
			Where(queryCommentOfConfession, commentID.String(), confessionID.String()).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if result.Error != nil {
			s.logError(opVoteComment, reasonIncrementFailed, result.Error,
				zap.String(fieldConfessionID, confessionID.String()),
				zap.String(fieldCommentID, commentID.String()),
				zap.String(fieldDirection, string(direction)))
			return newServiceError(opVoteComment, reasonIncrementFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opVoteComment, reasonNotFound, ErrNotFound)
		}

		if err := s.recordVote(tx, opVoteComment, voter, voteTargetComment, commentID.String(), direction); err != nil {
			return err
		}

		if err := tx.Where(queryID, commentID.String()).Take(&updated).Error; err != nil {
			s.logError(opVoteComment, reasonReloadFailed, err, zap.String(fieldCommentID, commentID.String()))
			return newServiceError(opVoteComment, reasonReloadFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Comment{}, txErr
	}
	return updated, nil
}
