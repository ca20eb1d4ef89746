package confessions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxIdentifierLength = 190
	// MaxConfessionLength caps confession text, counted in runes.
	MaxConfessionLength = 300
	minYear             = 1
	maxYear             = 4
)

// ConfessionID represents a validated confession identifier.
type ConfessionID string

// NewConfessionID validates raw input and returns a ConfessionID.
func NewConfessionID(rawInput string) (ConfessionID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidConfessionID)
	if err != nil {
		return "", err
	}
	return ConfessionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ConfessionID) String() string {
	return string(id)
}

// CommentID represents a validated comment identifier.
type CommentID string

// NewCommentID validates raw input and returns a CommentID.
func NewCommentID(rawInput string) (CommentID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidCommentID)
	if err != nil {
		return "", err
	}
	return CommentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CommentID) String() string {
	return string(id)
}

// VoterID identifies an anonymous caller for vote de-duplication.
type VoterID string

// NewVoterID validates raw input and returns a VoterID.
func NewVoterID(rawInput string) (VoterID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidVoterID)
	if err != nil {
		return "", err
	}
	return VoterID(trimmed), nil
}

// String returns the underlying string identifier.
func (id VoterID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, kind error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", kind)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", kind, maxIdentifierLength)
	}
	return trimmed, nil
}

// Gender is the optional author gender tag.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender normalizes a gender tag. Blank input yields nil.
func ParseGender(rawInput string) (*Gender, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case "":
		return nil, nil
	case string(GenderMale):
		gender := GenderMale
		return &gender, nil
	case string(GenderFemale):
		gender := GenderFemale
		return &gender, nil
	default:
		return nil, ErrInvalidGender
	}
}

// VoteDirection selects which counter a vote increments.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection validates a vote direction.
func ParseVoteDirection(rawInput string) (VoteDirection, error) {
	switch VoteDirection(strings.ToLower(strings.TrimSpace(rawInput))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	default:
		return "", ErrInvalidDirection
	}
}

func (direction VoteDirection) column() string {
	if direction == VoteDown {
		return columnDownvotes
	}
	return columnUpvotes
}

// Confession is the persisted top-level anonymous post.
type Confession struct {
	ID            string     `gorm:"column:id;primaryKey;size:190;not null"`
	Text          string     `gorm:"column:text;type:text;not null"`
	Department    Department `gorm:"column:department;size:16;not null;index:idx_confessions_department_created,priority:1"`
	Gender        *Gender    `gorm:"column:gender;size:16"`
	Year          *int       `gorm:"column:year"`
	Upvotes       int64      `gorm:"column:upvotes;not null;default:0"`
	Downvotes     int64      `gorm:"column:downvotes;not null;default:0"`
	CommentsCount int64      `gorm:"column:comments_count;not null;default:0"`
	Views         int64      `gorm:"column:views;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;index;index:idx_confessions_department_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Confession) TableName() string {
	return "confessions"
}

// Comment is a reply owned by exactly one confession.
type Comment struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	ConfessionID string    `gorm:"column:confession_id;size:190;not null;index:idx_comments_confession_created,priority:1"`
	Text         string    `gorm:"column:text;type:text;not null"`
	Upvotes      int64     `gorm:"column:upvotes;not null;default:0"`
	Downvotes    int64     `gorm:"column:downvotes;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_comments_confession_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// ListFilter narrows the confession feed.
type ListFilter struct {
	Department string
	Search     string
}

// CreateConfessionRequest carries unvalidated author input.
type CreateConfessionRequest struct {
	Text       string
	Department string
	Gender     string
	Year       *int
}

type confessionDraft struct {
	text       string
	department Department
	gender     *Gender
	year       *int
}

func (request CreateConfessionRequest) validate() (confessionDraft, error) {
	text := strings.TrimSpace(request.Text)
	if text == "" || strings.TrimSpace(request.Department) == "" {
		return confessionDraft{}, ErrMissingRequiredField
	}
	if request.Year != nil && (*request.Year < minYear || *request.Year > maxYear) {
		return confessionDraft{}, ErrYearOutOfRange
	}
	department, err := ParseDepartment(request.Department)
	if err != nil {
		return confessionDraft{}, err
	}
	gender, err := ParseGender(request.Gender)
	if err != nil {
		return confessionDraft{}, err
	}
	if utf8.RuneCountInString(text) > MaxConfessionLength {
		return confessionDraft{}, ErrConfessionTooLong
	}
	var year *int
	if request.Year != nil {
		value := *request.Year
		year = &value
	}
	return confessionDraft{
		text:       text,
		department: department,
		gender:     gender,
		year:       year,
	}, nil
}

func validateCommentText(rawInput string) (string, error) {
	text := strings.TrimSpace(rawInput)
	if text == "" {
		return "", ErrEmptyComment
	}
	return text, nil
}

// searchYear reports the year a search term names when it reads as an integral number.
func searchYear(search string) (int, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(search), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return 0, false
	}
	return int(value), true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}
