package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
)

func assignment(id, category string, progress int, completedAt *time.Time) *activity.Assignment {
	a := &activity.Assignment{
		ID:         id,
		AssignedTo: "student-1",
		Category:   category,
		Progress:   progress,
		Status:     activity.StatusForProgress(progress),
	}
	a.CompletedAt = completedAt
	return a
}

func TestDeriveProgress_NoAssignments(t *testing.T) {
	p := DeriveProgress(nil, time.Now())

	assert.Equal(t, 0, p.Academic)
	// No emotional-category assignments: the emotional metric defaults.
	assert.Equal(t, 75, p.Emotional)
	assert.Equal(t, 10, p.Social)
	assert.Equal(t, 68, p.Behavioral) // round(75 * 0.9)
	assert.Equal(t, 28, p.Overall)    // round((0+75+10)/3)
	assert.Equal(t, 0, p.WeeklyStreak)
}

func TestDeriveProgress_RatesAndCaps(t *testing.T) {
	now := time.Now()
	done := now.Add(-time.Hour)

	assignments := []*activity.Assignment{
		assignment("a1", "", 100, &done),
		assignment("a2", "", 100, &done),
		assignment("a3", "", 100, &done),
		assignment("a4", "", 40, nil),
	}

	p := DeriveProgress(assignments, now)
	assert.Equal(t, 75, p.Academic) // 3 of 4 completed
	assert.Equal(t, 85, p.Social)   // academic + 10
	assert.Equal(t, 75, p.Emotional)

	// Social caps at 100.
	all := []*activity.Assignment{
		assignment("a1", "", 100, &done),
	}
	p = DeriveProgress(all, now)
	assert.Equal(t, 100, p.Academic)
	assert.Equal(t, 100, p.Social)
}

func TestDeriveProgress_EmotionalSubset(t *testing.T) {
	now := time.Now()
	done := now.Add(-time.Hour)

	assignments := []*activity.Assignment{
		assignment("a1", "emotional", 100, &done),
		assignment("a2", "emotional", 0, nil),
		assignment("a3", "", 100, &done),
	}

	p := DeriveProgress(assignments, now)
	assert.Equal(t, 50, p.Emotional) // 1 of 2 emotional completed
	assert.Equal(t, 67, p.Academic)  // 2 of 3 overall
	assert.Equal(t, 45, p.Behavioral)
}

func TestDeriveProgress_WeeklyStreakCountsDistinctDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	day := func(offset int, hour int) *time.Time {
		t := now.AddDate(0, 0, -offset).Truncate(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
		return &t
	}

	assignments := []*activity.Assignment{
		// Two completions on the same local day count once.
		assignment("a1", "", 100, day(1, 9)),
		assignment("a2", "", 100, day(1, 17)),
		assignment("a3", "", 100, day(2, 12)),
		assignment("a4", "", 100, day(3, 12)),
		// Outside the 7-day window.
		assignment("a5", "", 100, day(9, 12)),
	}

	p := DeriveProgress(assignments, now)
	assert.Equal(t, 3, p.WeeklyStreak)
}

func TestDeriveAlerts_AllThreeRulesFire(t *testing.T) {
	alerts := DeriveAlerts("student-1", Progress{
		Academic:     55,
		Emotional:    65,
		WeeklyStreak: 6,
	})
	require.Len(t, alerts, 3)

	byType := map[AlertType]Alert{}
	for _, a := range alerts {
		byType[a.Type] = a
	}

	academic := byType[AlertAcademicConcern]
	assert.Equal(t, notification.PriorityHigh, academic.Priority)
	assert.Contains(t, academic.Message, "55%")
	assert.Equal(t, "academic_concern:student-1", academic.Fingerprint)

	positive := byType[AlertPositiveReinforcement]
	assert.Equal(t, notification.PriorityLow, positive.Priority)
	assert.Contains(t, positive.Message, "6 días")

	emotional := byType[AlertEmotionalSupport]
	assert.Equal(t, notification.PriorityMedium, emotional.Priority)
	assert.Contains(t, emotional.Message, "65%")
}

func TestDeriveAlerts_Boundaries(t *testing.T) {
	// At the thresholds themselves nothing fires except the streak rule.
	alerts := DeriveAlerts("student-1", Progress{
		Academic:     60,
		Emotional:    70,
		WeeklyStreak: 5,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPositiveReinforcement, alerts[0].Type)

	assert.Empty(t, DeriveAlerts("student-1", Progress{
		Academic:     60,
		Emotional:    70,
		WeeklyStreak: 4,
	}))
}

func TestDeriveAlerts_FingerprintStablePerStudentRule(t *testing.T) {
	a := DeriveAlerts("student-1", Progress{Academic: 10, Emotional: 75})
	b := DeriveAlerts("student-1", Progress{Academic: 30, Emotional: 75})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Fingerprint, b[0].Fingerprint)

	other := DeriveAlerts("student-2", Progress{Academic: 10, Emotional: 75})
	require.Len(t, other, 1)
	assert.NotEqual(t, a[0].Fingerprint, other[0].Fingerprint)
}
