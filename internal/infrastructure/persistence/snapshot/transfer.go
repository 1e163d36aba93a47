package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
)

// Repositories groups the repository set a snapshot transfer works against.
type Repositories struct {
	Persons       person.Repository
	Activities    activity.Repository
	Casefiles     casefile.Repository
	Notifications notification.Repository
	Links         link.Repository
}

// Import loads every snapshot file into the repositories. Files that do not
// exist contribute nothing. Records are created in dependency order so
// cross-role references resolve against already-imported people.
func (s *Store) Import(ctx context.Context, repos Repositories) error {
	unified, err := s.LoadUnified(ctx)
	if err != nil {
		return err
	}

	persons := unified.Persons()
	for _, p := range persons {
		if err := repos.Persons.Create(ctx, p); err != nil {
			return fmt.Errorf("import person %s: %w", p.ID, err)
		}
	}
	for _, c := range unified.Cases {
		if err := repos.Casefiles.CreateCase(ctx, c); err != nil {
			return fmt.Errorf("import case %s: %w", c.ID, err)
		}
	}
	for _, p := range unified.SupportPlans {
		if err := repos.Casefiles.CreatePlan(ctx, p); err != nil {
			return fmt.Errorf("import support plan %s: %w", p.ID, err)
		}
	}
	for _, r := range unified.LinkRequests {
		if err := repos.Links.CreateRequest(ctx, r); err != nil {
			return fmt.Errorf("import link request %s: %w", r.ID, err)
		}
	}
	for _, l := range unified.ActiveLinks {
		if err := repos.Links.CreateLink(ctx, l); err != nil {
			return fmt.Errorf("import active link %s: %w", l.ID, err)
		}
	}

	activities, err := s.LoadActivities(ctx)
	if err != nil {
		return err
	}
	for _, tpl := range activities.Templates {
		if err := repos.Activities.CreateTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("import activity %s: %w", tpl.ID, err)
		}
	}
	for _, a := range activities.Assignments {
		if err := repos.Activities.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("import assignment %s: %w", a.ID, err)
		}
	}

	notifications, err := s.LoadNotifications(ctx)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if err := repos.Notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("import notification %s: %w", n.ID, err)
		}
	}

	s.logger.Info("snapshot imported",
		"dir", s.dir,
		"persons", len(persons),
		"templates", len(activities.Templates),
		"assignments", len(activities.Assignments),
		"notifications", len(notifications),
	)
	return nil
}

// Export regenerates the three snapshot files from the repositories.
func (s *Store) Export(ctx context.Context, repos Repositories) error {
	persons, err := repos.Persons.List(ctx, person.Filter{})
	if err != nil {
		return err
	}
	cases, err := repos.Casefiles.ListCases(ctx, casefile.CaseFilter{})
	if err != nil {
		return err
	}
	plans, err := repos.Casefiles.ListPlans(ctx, casefile.PlanFilter{})
	if err != nil {
		return err
	}
	requests, err := repos.Links.ListRequests(ctx, link.RequestFilter{})
	if err != nil {
		return err
	}
	links, err := repos.Links.ListLinks(ctx, link.LinkFilter{})
	if err != nil {
		return err
	}

	unified := &UnifiedData{
		Cases:        cases,
		SupportPlans: plans,
		LinkRequests: requests,
		ActiveLinks:  links,
		LastUpdate:   time.Now().UTC(),
	}
	unified.SetPersons(persons)
	if err := s.SaveUnified(ctx, unified); err != nil {
		return err
	}

	templates, err := repos.Activities.ListTemplates(ctx, activity.TemplateFilter{})
	if err != nil {
		return err
	}
	assignments, err := repos.Activities.ListAssignments(ctx, activity.AssignmentFilter{})
	if err != nil {
		return err
	}
	if err := s.SaveActivities(ctx, &ActivityData{
		Templates:   templates,
		Assignments: assignments,
	}); err != nil {
		return err
	}

	notifications, err := repos.Notifications.List(ctx, notification.Filter{})
	if err != nil {
		return err
	}
	if err := s.SaveNotifications(ctx, notifications); err != nil {
		return err
	}

	s.logger.Info("snapshot exported",
		"dir", s.dir,
		"persons", len(persons),
		"templates", len(templates),
		"assignments", len(assignments),
		"notifications", len(notifications),
	)
	return nil
}
