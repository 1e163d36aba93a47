// Package sync contains the consolidated parent view model and the derived
// progress and alert rules of the cross-role aggregator.
package sync

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is the derived metric block of a parent view. All percentages are
// integers in [0, 100].
type Progress struct {
	Academic     int `json:"academic"`
	Emotional    int `json:"emotional"`
	Social       int `json:"social"`
	Behavioral   int `json:"behavioral"`
	Overall      int `json:"overall"`
	WeeklyStreak int `json:"weeklyStreak"`
}

// defaultEmotional is used when the student has no emotional-category
// assignments to derive from.
const defaultEmotional = 75

// DeriveProgress computes the metric block from the student's assignments.
//
// Academic is the completion rate over all assignments; emotional is the
// same rate over the emotional-category subset, defaulting when the subset
// is empty. Social, behavioral and overall are derived from those two.
// The weekly streak counts distinct local calendar days within the last 7
// that saw at least one completion.
func DeriveProgress(assignments []*activity.Assignment, now time.Time) Progress {
	var total, completed int
	var emoTotal, emoCompleted int
	var completions []time.Time

	for _, a := range assignments {
		total++
		if a.IsCompleted() {
			completed++
			if a.CompletedAt != nil {
				completions = append(completions, *a.CompletedAt)
			}
		}
		if a.IsEmotional() {
			emoTotal++
			if a.IsCompleted() {
				emoCompleted++
			}
		}
	}

	academic := completionRate(completed, total)
	emotional := defaultEmotional
	if emoTotal > 0 {
		emotional = completionRate(emoCompleted, emoTotal)
	}

	social := academic + 10
	if social > 100 {
		social = 100
	}

	var recent []time.Time
	for _, t := range completions {
		if timeutil.WithinLastDays(t, now, 7) {
			recent = append(recent, t)
		}
	}

	return Progress{
		Academic:     academic,
		Emotional:    emotional,
		Social:       social,
		Behavioral:   int(math.Round(float64(emotional) * 0.9)),
		Overall:      int(math.Round(float64(academic+emotional+social) / 3.0)),
		WeeklyStreak: timeutil.DistinctDays(recent),
	}
}

func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED ALERTS
// ══════════════════════════════════════════════════════════════════════════════

// AlertType identifies which threshold rule produced an alert.
type AlertType string

const (
	AlertAcademicConcern       AlertType = "academic_concern"
	AlertPositiveReinforcement AlertType = "positive_reinforcement"
	AlertEmotionalSupport      AlertType = "emotional_support"
)

// Alert is one derived threshold alert. The list is regenerated from
// scratch on every refresh; Fingerprint is stable for a given
// (student, rule) pair so consumers can dedup repeats.
type Alert struct {
	Type            AlertType             `json:"type"`
	Priority        notification.Priority `json:"priority"`
	Confidence      float64               `json:"confidence"`
	Message         string                `json:"message"`
	Recommendations []string              `json:"recommendations"`
	Actions         []string              `json:"actions"`
	Fingerprint     string                `json:"fingerprint"`
}

// DeriveAlerts evaluates the three threshold rules against the derived
// progress. Rules are independent; several may fire on one refresh.
func DeriveAlerts(studentID string, p Progress) []Alert {
	var alerts []Alert

	if p.Academic < 60 {
		alerts = append(alerts, Alert{
			Type:       AlertAcademicConcern,
			Priority:   notification.PriorityHigh,
			Confidence: 0.85,
			Message:    fmt.Sprintf("El progreso académico está en %d%%, por debajo del nivel esperado.", p.Academic),
			Recommendations: []string{
				"Revisar las actividades pendientes con el estudiante",
				"Coordinar una reunión con el docente",
			},
			Actions: []string{
				"ver_actividades",
				"contactar_docente",
			},
			Fingerprint: fingerprint(studentID, AlertAcademicConcern),
		})
	}

	if p.WeeklyStreak >= 5 {
		alerts = append(alerts, Alert{
			Type:       AlertPositiveReinforcement,
			Priority:   notification.PriorityLow,
			Confidence: 0.9,
			Message:    fmt.Sprintf("¡Excelente! %d días de actividad completada esta semana.", p.WeeklyStreak),
			Recommendations: []string{
				"Felicitar al estudiante por su constancia",
			},
			Actions: []string{
				"enviar_felicitacion",
			},
			Fingerprint: fingerprint(studentID, AlertPositiveReinforcement),
		})
	}

	if p.Emotional < 70 {
		alerts = append(alerts, Alert{
			Type:       AlertEmotionalSupport,
			Priority:   notification.PriorityMedium,
			Confidence: 0.8,
			Message:    fmt.Sprintf("El bienestar emocional está en %d%%. Puede necesitar acompañamiento.", p.Emotional),
			Recommendations: []string{
				"Conversar con el estudiante sobre cómo se siente",
				"Consultar con el psicopedagogo",
			},
			Actions: []string{
				"contactar_psicopedagogo",
			},
			Fingerprint: fingerprint(studentID, AlertEmotionalSupport),
		})
	}

	return alerts
}

func fingerprint(studentID string, t AlertType) string {
	return fmt.Sprintf("%s:%s", t, studentID)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARENT VIEW
// ══════════════════════════════════════════════════════════════════════════════

// ParentView is the consolidated bundle the aggregator assembles for one
// (parent, student) pair.
type ParentView struct {
	ParentID  string `json:"parentId"`
	StudentID string `json:"studentId"`

	Student       *person.Person               `json:"student"`
	Assignments   []*activity.Assignment       `json:"assignments"`
	Progress      Progress                     `json:"progress"`
	Notifications []*notification.Notification `json:"notifications"`
	Alerts        []Alert                      `json:"alerts"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// ViewCache caches consolidated parent views between refreshes.
type ViewCache interface {
	// Get returns the cached view for a (parent, student) pair, or an
	// error on miss.
	Get(ctx context.Context, parentID, studentID string) (*ParentView, error)

	// Set stores a view with the given TTL.
	Set(ctx context.Context, view *ParentView, ttl time.Duration) error

	// InvalidateStudent drops every cached view involving the student.
	InvalidateStudent(ctx context.Context, studentID string) error

	// InvalidateParent drops every cached view for the parent.
	InvalidateParent(ctx context.Context, parentID string) error
}
