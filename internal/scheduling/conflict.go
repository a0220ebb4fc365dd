package scheduling

import (
	"time"

	"github.com/google/uuid"

	"tutoring-scheduler/internal/data/entity"
)

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// DetectConflicts returns the active sessions of tutorID that overlap
// [start, end). Sessions listed in exclude are ignored.
func DetectConflicts(tutorID uuid.UUID, start, end time.Time, existing []*entity.Session, exclude ...uuid.UUID) []*entity.Session {
	var conflicts []*entity.Session
	for _, s := range existing {
		if s.TutorID != tutorID || !s.Status.IsActive() {
			continue
		}
		if excluded(s.ID, exclude) {
			continue
		}
		if Overlaps(start, end, s.ScheduledStart, s.End()) {
			conflicts = append(conflicts, s)
		}
	}
	return conflicts
}

func HasConflict(tutorID uuid.UUID, start, end time.Time, existing []*entity.Session, exclude ...uuid.UUID) bool {
	return len(DetectConflicts(tutorID, start, end, existing, exclude...)) > 0
}

func excluded(id uuid.UUID, exclude []uuid.UUID) bool {
	for _, x := range exclude {
		if x == id {
			return true
		}
	}
	return false
}
