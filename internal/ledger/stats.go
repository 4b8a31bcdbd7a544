package ledger

import (
	"time"

	"zerolag/internal/domain"
)

const day = 24 * time.Hour

func recordCreated(s *domain.Stats, stake float64) {
	s.TotalTasks++
	s.TotalStaked += stake
}

// recordApproved extends the streak when the previous completion was at most
// one whole day earlier and restarts it otherwise.
func recordApproved(s *domain.Stats, stake float64, now time.Time) {
	s.CompletedTasks++
	s.TotalReturned += stake
	if s.LastCompletedAt == nil {
		s.CurrentStreak = 1
	} else if gapDays := int(now.Sub(*s.LastCompletedAt) / day); gapDays <= 1 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	completed := now
	s.LastCompletedAt = &completed
}

func recordRejected(s *domain.Stats, stake float64) {
	s.FailedTasks++
	s.TotalBurned += stake
	s.CurrentStreak = 0
}
