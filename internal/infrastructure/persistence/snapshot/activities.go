package snapshot

import (
	"context"
	"encoding/json"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// kary_activities is a single flat array commingling templates and
// assignments. The discriminator is the assignedTo field: assignments have
// it, templates never do.

// ActivityData is the decoded kary_activities document split back into its
// two record kinds.
type ActivityData struct {
	Templates   []*activity.Activity
	Assignments []*activity.Assignment
}

// LoadActivities reads kary_activities and splits the records.
func (s *Store) LoadActivities(ctx context.Context) (*ActivityData, error) {
	var raw []json.RawMessage
	ok, err := s.load(ctx, ActivitiesFile, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ActivityData{}, nil
	}

	data := &ActivityData{}
	for _, msg := range raw {
		var probe struct {
			AssignedTo string `json:"assignedTo"`
		}
		if err := json.Unmarshal(msg, &probe); err != nil {
			return nil, shared.WrapError("snapshot", "LoadActivities", shared.ErrSnapshotCorrupt, "activity record unreadable", err)
		}

		if probe.AssignedTo != "" {
			var a activity.Assignment
			if err := json.Unmarshal(msg, &a); err != nil {
				return nil, shared.WrapError("snapshot", "LoadActivities", shared.ErrSnapshotCorrupt, "assignment record unreadable", err)
			}
			data.Assignments = append(data.Assignments, &a)
			continue
		}

		var t activity.Activity
		if err := json.Unmarshal(msg, &t); err != nil {
			return nil, shared.WrapError("snapshot", "LoadActivities", shared.ErrSnapshotCorrupt, "template record unreadable", err)
		}
		data.Templates = append(data.Templates, &t)
	}
	return data, nil
}

// SaveActivities writes kary_activities with templates first, then
// assignments, matching how the dashboards append records.
func (s *Store) SaveActivities(ctx context.Context, data *ActivityData) error {
	records := make([]interface{}, 0, len(data.Templates)+len(data.Assignments))
	for _, t := range data.Templates {
		records = append(records, t)
	}
	for _, a := range data.Assignments {
		records = append(records, a)
	}
	return s.save(ctx, ActivitiesFile, records)
}
