package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NOT_STARTED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Toggled returns the status a completion toggle moves to. Only
// COMPLETED goes back to NOT_STARTED; every other status completes.
func (s TaskStatus) Toggled() TaskStatus {
	if s == StatusCompleted {
		return StatusNotStarted
	}
	return StatusCompleted
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"dueDate"`
	Status      TaskStatus `json:"status"`
	Order       int64      `json:"order"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask is the validated input of a task creation.
type NewTask struct {
	Title       string
	Description string
	DueDate     time.Time
	Status      TaskStatus
}

// TaskPatch carries the fields of a partial update; nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Status      *TaskStatus
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && p.Status == nil
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// TaskSortFields lists the fields a task listing may be sorted by.
var TaskSortFields = []string{"title", "status", "dueDate", "createdAt", "updatedAt"}

type TaskQuery struct {
	Page      int
	Limit     int
	Status    TaskStatus
	Search    string
	SortBy    string
	SortOrder string
	// DueDate restricts results to one calendar day (UTC) when non-zero.
	DueDate time.Time
}

type TaskPage struct {
	Tasks      []Task `json:"tasks"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int64  `json:"totalPages"`
}

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ChallengeState tags whether an OTP challenge is live for an email.
type ChallengeState int

const (
	ChallengeAbsent ChallengeState = iota
	ChallengePending
)

// Challenge is the transient OTP payload kept in the cache between
// initiation and verification.
type Challenge struct {
	State     ChallengeState `json:"-"`
	Email     string         `json:"email"`
	CodeHash  []byte         `json:"code_hash"`
	UserID    string         `json:"user_id,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IsNewUser reports whether verification has to create the user.
func (c Challenge) IsNewUser() bool {
	return c.UserID == ""
}

const (
	MailPurposeWelcome = "welcome"
	MailPurposeLogin   = "login"
)
