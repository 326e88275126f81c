package model

import "time"

// Field names a single input of the metadata form.
type Field string

const (
	FieldOwner        Field = "owner"
	FieldDocumentType Field = "documentType"
	FieldDate         Field = "date"
	FieldLocation     Field = "location"
	FieldTitle        Field = "title"
)

// DateLayout is the calendar date format used on the wire (dataDocumento).
const DateLayout = "2006-01-02"

// Owner references the person a student or staff document belongs to.
type Owner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Common holds the fields every document category shares. A zero Date means
// the user has not picked one yet.
type Common struct {
	DocumentType string    `json:"documentType"`
	Date         time.Time `json:"date"`
	Location     string    `json:"location"`
}

// Metadata is the closed set of per-category metadata variants. The unexported
// method keeps other packages from adding variants, so a type switch over
// *StudentMetadata, *StaffMetadata and *InstitutionMetadata is exhaustive.
type Metadata interface {
	Entity() EntityType
	Shared() *Common
	metadata()
}

// StudentMetadata describes a document owned by a student.
type StudentMetadata struct {
	Owner *Owner `json:"owner,omitempty"`
	Common
}

// StaffMetadata describes a document owned by a staff member.
type StaffMetadata struct {
	Owner *Owner `json:"owner,omitempty"`
	Common
}

// InstitutionMetadata describes an institutional document. It has no owner
// but requires a title.
type InstitutionMetadata struct {
	Title string `json:"title"`
	Common
}

func (*StudentMetadata) Entity() EntityType     { return EntityStudent }
func (*StaffMetadata) Entity() EntityType       { return EntityStaff }
func (*InstitutionMetadata) Entity() EntityType { return EntityInstitution }

func (m *StudentMetadata) Shared() *Common     { return &m.Common }
func (m *StaffMetadata) Shared() *Common       { return &m.Common }
func (m *InstitutionMetadata) Shared() *Common { return &m.Common }

func (*StudentMetadata) metadata()     {}
func (*StaffMetadata) metadata()       {}
func (*InstitutionMetadata) metadata() {}

// NewMetadata returns an empty variant for the entity type.
func NewMetadata(entity EntityType) Metadata {
	switch entity {
	case EntityStudent:
		return &StudentMetadata{}
	case EntityStaff:
		return &StaffMetadata{}
	case EntityInstitution:
		return &InstitutionMetadata{}
	}
	return nil
}

// OwnerOf returns the owner of a student or staff document, nil otherwise.
func OwnerOf(m Metadata) *Owner {
	switch v := m.(type) {
	case *StudentMetadata:
		return v.Owner
	case *StaffMetadata:
		return v.Owner
	}
	return nil
}

// Clone returns a deep copy so stages never share mutable metadata.
func Clone(m Metadata) Metadata {
	switch v := m.(type) {
	case *StudentMetadata:
		c := *v
		c.Owner = cloneOwner(v.Owner)
		return &c
	case *StaffMetadata:
		c := *v
		c.Owner = cloneOwner(v.Owner)
		return &c
	case *InstitutionMetadata:
		c := *v
		return &c
	}
	return nil
}

func cloneOwner(o *Owner) *Owner {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// MissingFields lists the required fields that are empty, in form order. A
// date later than today counts as missing.
func MissingFields(m Metadata, now time.Time) []Field {
	var missing []Field
	switch v := m.(type) {
	case *StudentMetadata:
		if v.Owner == nil {
			missing = append(missing, FieldOwner)
		}
	case *StaffMetadata:
		if v.Owner == nil {
			missing = append(missing, FieldOwner)
		}
	case *InstitutionMetadata:
		if v.Title == "" {
			missing = append(missing, FieldTitle)
		}
	default:
		return []Field{FieldDocumentType, FieldDate}
	}
	c := m.Shared()
	if c.DocumentType == "" {
		missing = append(missing, FieldDocumentType)
	}
	if c.Date.IsZero() || dayKey(c.Date) > dayKey(now) {
		missing = append(missing, FieldDate)
	}
	return missing
}

// Valid reports whether every required field for the variant is populated.
func Valid(m Metadata, now time.Time) bool {
	return len(MissingFields(m, now)) == 0
}

// Prefill seeds a new form from a successfully uploaded document. Owner and
// location carry over; document type, date and title are reset so the user
// picks them again.
func Prefill(m Metadata) Metadata {
	switch v := m.(type) {
	case *StudentMetadata:
		return &StudentMetadata{Owner: cloneOwner(v.Owner), Common: Common{Location: v.Location}}
	case *StaffMetadata:
		return &StaffMetadata{Owner: cloneOwner(v.Owner), Common: Common{Location: v.Location}}
	case *InstitutionMetadata:
		return &InstitutionMetadata{Common: Common{Location: v.Location}}
	}
	return nil
}

func dayKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
