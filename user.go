package userd

import (
	"strings"

	"github.com/google/uuid"
)

// User is the single entity managed by the service.
// ID is assigned by the server on creation and never changes afterwards.
type User struct {
	ID    uuid.UUID `json:"id" xml:"id,omitempty" msgpack:"id"`
	Name  string    `json:"name" xml:"name" msgpack:"name" validate:"notblank"`
	Email string    `json:"email" xml:"email" msgpack:"email" validate:"emailshape"`
}

// PartialUser carries an update request. Nil fields are left untouched.
type PartialUser struct {
	Name  *string `json:"name,omitempty" xml:"name,omitempty" validate:"omitempty,notblank"`
	Email *string `json:"email,omitempty" xml:"email,omitempty" validate:"omitempty,emailshape"`
}

// FieldMask is the set of columns an update touches.
type FieldMask uint8

const (
	FieldName FieldMask = 1 << iota
	FieldEmail
)

// Mask reports which fields p sets.
func (p PartialUser) Mask() FieldMask {
	var m FieldMask
	if p.Name != nil {
		m |= FieldName
	}
	if p.Email != nil {
		m |= FieldEmail
	}
	return m
}

func (m FieldMask) Has(f FieldMask) bool { return m&f != 0 }
func (m FieldMask) Empty() bool          { return m == 0 }

func (m FieldMask) String() string {
	if m.Empty() {
		return "none"
	}
	var parts []string
	if m.Has(FieldName) {
		parts = append(parts, "name")
	}
	if m.Has(FieldEmail) {
		parts = append(parts, "email")
	}
	return strings.Join(parts, ",")
}

// Apply returns u with the fields of p applied.
func (p PartialUser) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	return u
}
