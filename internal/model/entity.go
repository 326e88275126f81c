// Package model contains the types shared by the digitalization client and the
// reference backend.
package model

import (
	"fmt"
	"strings"
)

// EntityType is the category of a document owner. It selects the required
// metadata fields and the upload endpoint.
type EntityType string

const (
	EntityStudent     EntityType = "student"
	EntityStaff       EntityType = "staff"
	EntityInstitution EntityType = "institution"
)

// EntityTypes lists every category in the order the selector presents them.
var EntityTypes = []EntityType{EntityStudent, EntityStaff, EntityInstitution}

// ParseEntityType accepts the English names plus the Portuguese aliases used
// by the backend (aluno, colaborador, institucional).
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student", "aluno":
		return EntityStudent, nil
	case "staff", "colaborador":
		return EntityStaff, nil
	case "institution", "institucional":
		return EntityInstitution, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// HasOwner reports whether documents of this category belong to a person.
func (e EntityType) HasOwner() bool {
	return e == EntityStudent || e == EntityStaff
}

// Label is the human readable name shown by the selector.
func (e EntityType) Label() string {
	switch e {
	case EntityStudent:
		return "Student"
	case EntityStaff:
		return "Staff"
	case EntityInstitution:
		return "Institution"
	}
	return string(e)
}
