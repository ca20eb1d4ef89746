package confessions

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	voteTargetConfession = "confession"
	voteTargetComment    = "comment"
)

// VoteRecord remembers that a caller cast a vote, one row per voter, target and direction.
type VoteRecord struct {
	VoterID       string `gorm:"column:voter_id;primaryKey;size:190;not null"`
	TargetKind    string `gorm:"column:target_kind;primaryKey;size:16;not null"`
	TargetID      string `gorm:"column:target_id;primaryKey;size:190;not null"`
	Direction     string `gorm:"column:direction;primaryKey;size:8;not null"`
	CastAtSeconds int64  `gorm:"column:cast_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (VoteRecord) TableName() string {
	return "vote_records"
}

// recordVote is a no-op unless de-duplication is enabled.
func (s *Service) recordVote(tx *gorm.DB, operation string, voter VoterID, targetKind, targetID string, direction VoteDirection) error {
	if !s.dedupeVotes {
		return nil
	}

	record := VoteRecord{
		VoterID:       voter.String(),
		TargetKind:    targetKind,
		TargetID:      targetID,
		Direction:     string(direction),
		CastAtSeconds: s.clock().UTC().Unix(),
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		s.logError(operation, reasonLedgerFailed, result.Error,
			zap.String("target_kind", targetKind),
			zap.String("target_id", targetID))
		return newServiceError(operation, reasonLedgerFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(operation, reasonDuplicateVote, ErrDuplicateVote)
	}
	return nil
}
