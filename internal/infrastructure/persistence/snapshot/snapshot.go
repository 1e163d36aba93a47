// Package snapshot reads and writes the legacy Kary data files. Three
// files exist, named after the storage keys of the original web platform:
// kary_unified_data (people, cases, support plans, link workflow),
// kary_activities (templates and assignments commingled) and
// kary_realtime_notifications. The JSON layout is wire-compatible with
// what the dashboards already persist, so an engine deployment can import
// an existing dataset and export one the dashboards can read back.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/pkg/retry"
)

// File names match the legacy storage keys.
const (
	UnifiedDataFile   = "kary_unified_data.json"
	ActivitiesFile    = "kary_activities.json"
	NotificationsFile = "kary_realtime_notifications.json"
)

// UnifiedData is the kary_unified_data document. People are stored in
// one array per role, the way the dashboards keep them.
type UnifiedData struct {
	Students         []*person.Person        `json:"students"`
	Teachers         []*person.Person        `json:"teachers"`
	Psychopedagogues []*person.Person        `json:"psychopedagogues"`
	Parents          []*person.Person        `json:"parents"`
	Directives       []*person.Person        `json:"directives"`
	Cases            []*casefile.Case        `json:"cases,omitempty"`
	SupportPlans     []*casefile.SupportPlan `json:"supportPlans,omitempty"`
	LinkRequests     []*link.Request         `json:"linkRequests,omitempty"`
	ActiveLinks      []*link.ActiveLink      `json:"activeLinks,omitempty"`
	LastUpdate       time.Time               `json:"lastUpdate"`
}

// Persons merges the role arrays into one slice, role arrays first to
// last in declaration order.
func (d *UnifiedData) Persons() []*person.Person {
	merged := make([]*person.Person, 0,
		len(d.Students)+len(d.Teachers)+len(d.Psychopedagogues)+len(d.Parents)+len(d.Directives))
	for _, group := range [][]*person.Person{d.Students, d.Teachers, d.Psychopedagogues, d.Parents, d.Directives} {
		merged = append(merged, group...)
	}
	return merged
}

// SetPersons buckets the slice into the role arrays, replacing any
// previous contents. A person with an unknown role is dropped.
func (d *UnifiedData) SetPersons(people []*person.Person) {
	d.Students = nil
	d.Teachers = nil
	d.Psychopedagogues = nil
	d.Parents = nil
	d.Directives = nil
	for _, p := range people {
		switch p.Role {
		case person.RoleStudent:
			d.Students = append(d.Students, p)
		case person.RoleTeacher:
			d.Teachers = append(d.Teachers, p)
		case person.RolePsychopedagogue:
			d.Psychopedagogues = append(d.Psychopedagogues, p)
		case person.RoleParent:
			d.Parents = append(d.Parents, p)
		case person.RoleDirective:
			d.Directives = append(d.Directives, p)
		}
	}
}

// Store reads and writes the snapshot files under one directory.
type Store struct {
	dir     string
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:     dir,
		retrier: retry.SnapshotRetrier(),
		logger:  logger,
	}
}

// LoadUnified reads kary_unified_data. A missing file yields an empty
// document, not an error; an unreadable one yields ErrSnapshotCorrupt.
func (s *Store) LoadUnified(ctx context.Context) (*UnifiedData, error) {
	var doc UnifiedData
	ok, err := s.load(ctx, UnifiedDataFile, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UnifiedData{}, nil
	}
	return &doc, nil
}

// SaveUnified writes kary_unified_data, stamping LastUpdate.
func (s *Store) SaveUnified(ctx context.Context, doc *UnifiedData) error {
	doc.LastUpdate = time.Now().UTC()
	return s.save(ctx, UnifiedDataFile, doc)
}

// LoadNotifications reads kary_realtime_notifications.
func (s *Store) LoadNotifications(ctx context.Context) ([]*notification.Notification, error) {
	var items []*notification.Notification
	ok, err := s.load(ctx, NotificationsFile, &items)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return items, nil
}

// SaveNotifications writes kary_realtime_notifications.
func (s *Store) SaveNotifications(ctx context.Context, items []*notification.Notification) error {
	if items == nil {
		items = []*notification.Notification{}
	}
	return s.save(ctx, NotificationsFile, items)
}

// load unmarshals one file into v. The boolean reports whether the file
// existed.
func (s *Store) load(ctx context.Context, name string, v interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, shared.WrapError("snapshot", "Load", shared.ErrSnapshotCorrupt, "snapshot file unreadable", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Error("snapshot file is not valid JSON", "file", name, "error", err)
		return false, shared.WrapError("snapshot", "Load", shared.ErrSnapshotCorrupt, "snapshot file unreadable", err)
	}
	return true, nil
}

// save marshals v and writes it atomically: temp file in the same
// directory, then rename. Transient write failures are retried.
func (s *Store) save(ctx context.Context, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return shared.WrapError("snapshot", "Save", shared.ErrSnapshotWrite, "snapshot marshal failed", err)
	}

	path := filepath.Join(s.dir, name)
	writeErr := s.retrier.Do(ctx, func(ctx context.Context) error {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return retry.Retryable(err)
		}
		tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
		if err != nil {
			return retry.Retryable(err)
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return retry.Retryable(err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return retry.Retryable(err)
		}
		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)
			return retry.Retryable(err)
		}
		return nil
	})
	if writeErr != nil {
		s.logger.Error("snapshot write failed", "file", name, "error", writeErr)
		return shared.WrapError("snapshot", "Save", shared.ErrSnapshotWrite, "snapshot write failed", writeErr)
	}

	s.logger.Debug("snapshot written", "file", name, "bytes", len(data))
	return nil
}

// Path returns the absolute path of one snapshot file, mostly for logs.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// String identifies the store in log output.
func (s *Store) String() string {
	return fmt.Sprintf("snapshot.Store(%s)", s.dir)
}
