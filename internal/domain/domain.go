package domain

import (
	"strings"
	"time"
)

const (
	TaskActive    = "active"
	TaskCompleted = "completed"
	TaskFailed    = "failed"

	ProofPending  = "pending"
	ProofApproved = "approved"
	ProofRejected = "rejected"
)

// CanonicalIdentity returns the lookup form of a wallet address.
func CanonicalIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// SameIdentity compares two addresses case-insensitively.
func SameIdentity(a, b string) bool {
	return CanonicalIdentity(a) == CanonicalIdentity(b)
}

type Challenge struct {
	Identity  string    `json:"identity"`
	Secret    string    `json:"secret"`
	IssuedAt  time.Time `json:"issued_at" format:"date-time"`
	ExpiresAt time.Time `json:"expires_at,omitempty" format:"date-time"`
}

// ChallengePrefix is the fixed template the secret is embedded in.
const ChallengePrefix = "Sign this message: "

// Message is the exact text a wallet must sign.
func (c Challenge) Message() string {
	return ChallengePrefix + c.Secret
}

// Expired reports whether the challenge has a deadline that has passed.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type FileRef struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType,omitempty"`
	FileSize int64  `json:"fileSize"`
}

type Task struct {
	ID             string    `json:"id"`
	UserAddress    string    `json:"userAddress"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	StakedAmount   float64   `json:"stakedAmount"`
	Deadline       time.Time `json:"deadline" format:"date-time"`
	Status         string    `json:"status" enum:"active,completed,failed"`
	ProofSubmitted bool      `json:"proofSubmitted"`
	FileData       *FileRef  `json:"fileData,omitempty"`
	CreatedAt      time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt      time.Time `json:"updatedAt" format:"date-time"`
}

type Proof struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	ProofText   string     `json:"proofText,omitempty"`
	FileData    *FileRef   `json:"fileData,omitempty"`
	Status      string     `json:"status" enum:"pending,approved,rejected"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt" format:"date-time"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty" format:"date-time"`
}

type Stats struct {
	TotalTasks      int        `json:"totalTasks"`
	CompletedTasks  int        `json:"completedTasks"`
	FailedTasks     int        `json:"failedTasks"`
	TotalStaked     float64    `json:"totalStaked"`
	TotalReturned   float64    `json:"totalReturned"`
	TotalBurned     float64    `json:"totalBurned"`
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	LastCompletedAt *time.Time `json:"lastCompletedAt"`
}

type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt" format:"date-time"`
	URL        string    `json:"url"`
	Data       []byte    `json:"data,omitempty"`
}

// Ref is the compact form attached to tasks and proofs.
func (f FileRecord) Ref() *FileRef {
	return &FileRef{FileID: f.ID, FileName: f.Name, FileType: f.Type, FileSize: f.Size}
}

type Event struct {
	ID         int64          `json:"id"`
	TS         time.Time      `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}
