// Package policy decides what an actor may do with a report. It is pure:
// decisions depend only on the actor, the report, and the action.
package policy

import "github.com/safeher/apiserver/types"

// Action is an operation an actor attempts on a report.
type Action string

const (
	ActionRead          Action = "read"
	ActionUpdateContent Action = "update_content"
	ActionUpdateStatus  Action = "update_status"
	ActionDelete        Action = "delete"
)

// Field names a report attribute. Names match the JSON keys.
type Field string

const (
	FieldID                     Field = "id"
	FieldOwner                  Field = "owner"
	FieldReportNumber           Field = "report_number"
	FieldTitle                  Field = "title"
	FieldDescription            Field = "description"
	FieldCategory               Field = "category"
	FieldSubcategory            Field = "subcategory"
	FieldTags                   Field = "tags"
	FieldLocation               Field = "location"
	FieldIncidentDate           Field = "incident_date"
	FieldSeverity               Field = "severity"
	FieldUrgency                Field = "urgency"
	FieldEvidenceText           Field = "evidence_text"
	FieldFileAttachments        Field = "file_attachments"
	FieldContactPhone           Field = "contact_phone"
	FieldPreferredContactMethod Field = "preferred_contact_method"
	FieldFollowUpRequested      Field = "follow_up_requested"
	FieldWitnesses              Field = "witnesses"
	FieldPerpetratorInfo        Field = "perpetrator_info"
	FieldAnonymous              Field = "anonymous"
	FieldRelatedReportIDs       Field = "related_report_ids"
	FieldStatus                 Field = "status"
	FieldResolutionNotes        Field = "resolution_notes"
	FieldCreatedAt              Field = "created_at"
	FieldUpdatedAt              Field = "updated_at"
)

// FieldSet is an unordered set of fields.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Union returns a new set holding the fields of both sets.
func (s FieldSet) Union(other FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(other))
	for f := range s {
		out[f] = struct{}{}
	}
	for f := range other {
		out[f] = struct{}{}
	}
	return out
}

// ContentFields are the fields the reporter owns. Anonymous is fixed at
// submission time and is not among them.
var ContentFields = NewFieldSet(
	FieldTitle,
	FieldDescription,
	FieldCategory,
	FieldSubcategory,
	FieldTags,
	FieldLocation,
	FieldIncidentDate,
	FieldSeverity,
	FieldUrgency,
	FieldEvidenceText,
	FieldFileAttachments,
	FieldContactPhone,
	FieldPreferredContactMethod,
	FieldFollowUpRequested,
	FieldWitnesses,
	FieldPerpetratorInfo,
	FieldRelatedReportIDs,
)

// StatusFields are the fields moderators and admins own.
var StatusFields = NewFieldSet(FieldStatus, FieldResolutionNotes)

// AllFields is every field of a serialized report.
var AllFields = ContentFields.Union(StatusFields).Union(NewFieldSet(
	FieldID,
	FieldOwner,
	FieldReportNumber,
	FieldAnonymous,
	FieldCreatedAt,
	FieldUpdatedAt,
))

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	// Visible is the set of fields the actor may see. The owner field stays
	// visible on redacted reports but carries the placeholder identity.
	Visible FieldSet
	// Mutable is the set of fields the actor may change with this action.
	Mutable FieldSet
	// RedactOwner hides the reporter identity on anonymous reports.
	RedactOwner bool
}

// Decide evaluates action for actor on report.
func Decide(actor types.Actor, report types.Report, action Action) Decision {
	owner := actor.Owns(report)
	allow := func(mutable FieldSet) Decision {
		return Decision{Allowed: true, Visible: AllFields, Mutable: mutable}
	}
	denied := Decision{
		Visible:     FieldSet{},
		Mutable:     FieldSet{},
		RedactOwner: report.Anonymous && !actor.Privileged() && !owner,
	}

	switch actor.Role {
	case types.RoleAdmin:
		switch action {
		case ActionUpdateContent:
			if owner {
				return allow(ContentFields)
			}
		case ActionUpdateStatus:
			return allow(StatusFields)
		}
		return allow(FieldSet{})

	case types.RoleModerator:
		switch action {
		case ActionRead:
			return allow(FieldSet{})
		case ActionUpdateStatus:
			return allow(StatusFields)
		}

	case types.RoleUser:
		if !owner {
			return denied
		}
		switch action {
		case ActionRead, ActionDelete:
			return allow(FieldSet{})
		case ActionUpdateContent:
			return allow(ContentFields)
		}
	}

	return denied
}

// CanRead reports whether actor may read report.
func CanRead(actor types.Actor, report types.Report) bool {
	return Decide(actor, report, ActionRead).Allowed
}

// UpdatableFields is the set of fields actor may change through a generic
// update: the union of the content and status mutable sets.
func UpdatableFields(actor types.Actor, report types.Report) FieldSet {
	content := Decide(actor, report, ActionUpdateContent)
	status := Decide(actor, report, ActionUpdateStatus)
	out := FieldSet{}
	if content.Allowed {
		out = out.Union(content.Mutable)
	}
	if status.Allowed {
		out = out.Union(status.Mutable)
	}
	return out
}
