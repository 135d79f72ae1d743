package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// ErrIncompleteCatalog is returned when the destination lacks an entry the
// mapper cannot fall back from.
var ErrIncompleteCatalog = errors.New("destination catalog incomplete")

// Catalog holds the destination enumerations the mapper resolves against.
type Catalog struct {
	Statuses   []models.Status
	Priorities []models.Priority
	Trackers   []models.Tracker
}

// Mapper translates source enumerations into resolved destination records.
type Mapper struct {
	tables Tables

	defaultStatus  models.Status
	closedStatus   models.Status
	assignedStatus models.Status
	resolvedStatus models.Status

	defaultPriority models.Priority
	priorities      map[string]models.Priority

	bugTracker     models.Tracker
	featureTracker models.Tracker
}

// NewMapper resolves the tables against the catalog. It fails only when there
// is no Bug tracker, no usable default status or no priority at all.
func NewMapper(tables Tables, catalog Catalog) (*Mapper, error) {
	tables, err := tables.WithOverrides(nil, nil)
	if err != nil {
		return nil, err
	}
	m := &Mapper{tables: tables, priorities: make(map[string]models.Priority)}

	bug, ok := findTracker(catalog.Trackers, tables.BugTracker)
	if !ok {
		return nil, fmt.Errorf("%w: tracker %q not found", ErrIncompleteCatalog, tables.BugTracker)
	}
	m.bugTracker = bug
	m.featureTracker = bug
	if feature, ok := findTracker(catalog.Trackers, tables.FeatureTracker); ok {
		m.featureTracker = feature
	}

	statuses := append([]models.Status(nil), catalog.Statuses...)
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Position < statuses[j].Position })

	def, ok := defaultStatus(statuses, bug)
	if !ok {
		return nil, fmt.Errorf("%w: no default issue status", ErrIncompleteCatalog)
	}
	m.defaultStatus = def
	m.closedStatus = def
	for _, s := range statuses {
		if s.IsClosed {
			m.closedStatus = s
			break
		}
	}
	m.assignedStatus = statusByName(statuses, tables.AssignedStatus, def)
	m.resolvedStatus = statusByName(statuses, tables.ResolvedStatus, def)

	priorities := append([]models.Priority(nil), catalog.Priorities...)
	sort.SliceStable(priorities, func(i, j int) bool { return priorities[i].Position < priorities[j].Position })
	if len(priorities) == 0 {
		return nil, fmt.Errorf("%w: no issue priorities", ErrIncompleteCatalog)
	}
	m.defaultPriority = priorities[0]
	for _, p := range priorities {
		if p.IsDefault {
			m.defaultPriority = p
			break
		}
	}
	for code, name := range tables.Priorities {
		m.priorities[code] = m.defaultPriority
		for _, p := range priorities {
			if strings.EqualFold(p.Name, name) {
				m.priorities[code] = p
				break
			}
		}
	}

	return m, nil
}

// Status maps a source status code. Unknown codes map to the default status.
func (m *Mapper) Status(code string) models.Status {
	switch m.tables.Statuses[normalize(code)] {
	case RoleClosed:
		return m.closedStatus
	case RoleAssigned:
		return m.assignedStatus
	case RoleResolved:
		return m.resolvedStatus
	default:
		return m.defaultStatus
	}
}

// Priority maps a source priority code. Unknown codes and names missing in
// the destination map to the default priority.
func (m *Mapper) Priority(code string) models.Priority {
	if p, ok := m.priorities[normalize(code)]; ok {
		return p
	}
	return m.defaultPriority
}

// Tracker classifies a bug by severity.
func (m *Mapper) Tracker(severity string) models.Tracker {
	if strings.EqualFold(strings.TrimSpace(severity), m.tables.FeatureSeverity) {
		return m.featureTracker
	}
	return m.bugTracker
}

// DefaultStatus returns the status unmapped codes fall back to.
func (m *Mapper) DefaultStatus() models.Status { return m.defaultStatus }

// DefaultPriority returns the priority unmapped codes fall back to.
func (m *Mapper) DefaultPriority() models.Priority { return m.defaultPriority }

// Relation maps a source relation kind to a destination relation type.
func (t Tables) Relation(kind RelationKind) string {
	if rel, ok := t.Relations[kind]; ok {
		return rel
	}
	return RelationRelates
}

// CustomFieldFormat maps a source custom field kind to a destination format.
func (t Tables) CustomFieldFormat(kind FieldKind) string {
	if format, ok := t.CustomFieldFormats[kind]; ok {
		return format
	}
	return "string"
}

func findTracker(trackers []models.Tracker, name string) (models.Tracker, bool) {
	for _, t := range trackers {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return models.Tracker{}, false
}

// defaultStatus prefers the tracker's own default, then the first open status.
func defaultStatus(statuses []models.Status, tracker models.Tracker) (models.Status, bool) {
	if tracker.DefaultStatusID != 0 {
		for _, s := range statuses {
			if s.ID == tracker.DefaultStatusID {
				return s, true
			}
		}
	}
	for _, s := range statuses {
		if !s.IsClosed {
			return s, true
		}
	}
	return models.Status{}, false
}

func statusByName(statuses []models.Status, name string, fallback models.Status) models.Status {
	for _, s := range statuses {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return fallback
}
