// Package mapping translates Bugzilla enumerations into Redmine equivalents.
//
// The translation is declared in Tables and resolved once against the
// destination catalog by NewMapper. Every lookup on the resulting Mapper
// returns a value; unknown codes fall back to the configured defaults.
package mapping

import (
	"fmt"
	"strings"
)

// StatusRole names the destination status a source status maps onto.
type StatusRole string

const (
	// RoleDefault is the status new issues start in.
	RoleDefault StatusRole = "default"
	// RoleClosed is the first closed status.
	RoleClosed StatusRole = "closed"
	// RoleAssigned is the in-progress status, named by Tables.AssignedStatus.
	RoleAssigned StatusRole = "assigned"
	// RoleResolved is the resolved status, named by Tables.ResolvedStatus.
	RoleResolved StatusRole = "resolved"
)

// Destination relation types.
const (
	RelationDuplicates = "duplicates"
	RelationRelates    = "relates"
)

// RelationKind is a Bugzilla relation kind.
type RelationKind int

const (
	DuplicateOf RelationKind = iota
	RelatedTo
	ParentOf
	ChildOf
	HasDuplicate
)

var relationNames = map[RelationKind]string{
	DuplicateOf:  "duplicate-of",
	RelatedTo:    "related-to",
	ParentOf:     "parent-of",
	ChildOf:      "child-of",
	HasDuplicate: "has-duplicate",
}

func (k RelationKind) String() string {
	if name, ok := relationNames[k]; ok {
		return name
	}
	return fmt.Sprintf("relation(%d)", int(k))
}

// FieldKind is a Bugzilla custom field type.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldNumeric
	FieldFloat
	FieldEnumeration
	FieldEmail
	FieldCheckbox
	FieldList
	FieldMultiselectList
	FieldDate
)

var fieldNames = map[FieldKind]string{
	FieldString:          "string",
	FieldNumeric:         "numeric",
	FieldFloat:           "float",
	FieldEnumeration:     "enumeration",
	FieldEmail:           "email",
	FieldCheckbox:        "checkbox",
	FieldList:            "list",
	FieldMultiselectList: "multiselect-list",
	FieldDate:            "date",
}

func (k FieldKind) String() string {
	if name, ok := fieldNames[k]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(k))
}

// Tables is the declarative mapping configuration.
type Tables struct {
	// Statuses maps a source status code to a destination status role.
	Statuses map[string]StatusRole

	// AssignedStatus and ResolvedStatus name the destination statuses behind
	// RoleAssigned and RoleResolved.
	AssignedStatus string
	ResolvedStatus string

	// Priorities maps a source priority code to a destination priority name.
	Priorities map[string]string

	// FeatureSeverity is the source severity classified as a feature.
	FeatureSeverity string

	BugTracker     string
	FeatureTracker string

	// Relations maps source relation kinds to destination relation types.
	Relations map[RelationKind]string

	// CustomFieldFormats maps source field kinds to destination field formats.
	// Float becomes int, which loses the fractional part.
	CustomFieldFormats map[FieldKind]string
}

// DefaultTables returns the standard Bugzilla to Redmine mapping.
func DefaultTables() Tables {
	return Tables{
		Statuses: map[string]StatusRole{
			"UNCONFIRMED": RoleDefault,
			"NEW":         RoleDefault,
			"VERIFIED":    RoleClosed,
			"CLOSED":      RoleClosed,
			"ASSIGNED":    RoleAssigned,
			"REOPENED":    RoleAssigned,
			"RESOLVED":    RoleResolved,
		},
		AssignedStatus: "In Progress",
		ResolvedStatus: "Resolved",
		Priorities: map[string]string{
			"P1": "Immediate",
			"P2": "Essential",
			"P3": "Important",
			"P4": "Optional",
			"P5": "Low",
		},
		FeatureSeverity: "enhancement",
		BugTracker:      "Bug",
		FeatureTracker:  "Feature",
		Relations: map[RelationKind]string{
			DuplicateOf:  RelationDuplicates,
			HasDuplicate: RelationDuplicates,
			RelatedTo:    RelationRelates,
			ParentOf:     RelationRelates,
			ChildOf:      RelationRelates,
		},
		CustomFieldFormats: map[FieldKind]string{
			FieldString:          "string",
			FieldEmail:           "string",
			FieldNumeric:         "int",
			FieldFloat:           "int",
			FieldEnumeration:     "list",
			FieldList:            "list",
			FieldMultiselectList: "list",
			FieldCheckbox:        "bool",
			FieldDate:            "date",
		},
	}
}

// WithOverrides returns a copy of t with status and priority entries
// replaced or added. Keys are source codes and are matched case-insensitively.
// Status values must be one of the StatusRole names.
func (t Tables) WithOverrides(statuses, priorities map[string]string) (Tables, error) {
	out := t
	out.Statuses = make(map[string]StatusRole, len(t.Statuses)+len(statuses))
	for k, v := range t.Statuses {
		out.Statuses[normalize(k)] = v
	}
	for k, v := range statuses {
		role := StatusRole(strings.ToLower(strings.TrimSpace(v)))
		switch role {
		case RoleDefault, RoleClosed, RoleAssigned, RoleResolved:
		default:
			return Tables{}, fmt.Errorf("invalid status role %q for source status %q", v, k)
		}
		out.Statuses[normalize(k)] = role
	}

	out.Priorities = make(map[string]string, len(t.Priorities)+len(priorities))
	for k, v := range t.Priorities {
		out.Priorities[normalize(k)] = v
	}
	for k, v := range priorities {
		out.Priorities[normalize(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
