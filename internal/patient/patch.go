package patient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned for a patch naming a field the record does not have
	ErrUnknownField = errors.New("unknown field")
	// ErrIndexOutOfRange is returned when an extra-field patch points past the end
	ErrIndexOutOfRange = errors.New("extra field index out of range")
)

// ScalarField names a top-level string field
type ScalarField string

const (
	FirstName   ScalarField = "firstName"
	MiddleName  ScalarField = "middleName"
	LastName    ScalarField = "lastName"
	DateOfBirth ScalarField = "dateOfBirth"
)

// AddressField names one address sub-field
type AddressField string

const (
	Street   AddressField = "street"
	Address2 AddressField = "address2"
	City     AddressField = "city"
	State    AddressField = "state"
	Zipcode  AddressField = "zipcode"
	Country  AddressField = "country"
)

// PatchKind tags the patch variants on the wire
type PatchKind string

const (
	KindScalar     PatchKind = "scalar"
	KindAddress    PatchKind = "address"
	KindExtraField PatchKind = "extraField"
	KindStatuses   PatchKind = "statuses"
)

// Patch is one field-level edit. The set of implementations is closed:
// ScalarPatch, AddressPatch, ExtraFieldPatch and StatusesPatch.
type Patch interface {
	Kind() PatchKind
	apply(*Fields) error
}

// ScalarPatch sets a top-level string field
type ScalarPatch struct {
	Field ScalarField
	Value string
}

// AddressPatch sets one address sub-field, leaving its siblings untouched
type AddressPatch struct {
	Field AddressField
	Value string
}

// ExtraFieldPatch replaces the entry at Index. Index equal to the current
// length appends a new entry.
type ExtraFieldPatch struct {
	Index int
	Value ExtraField
}

// StatusesPatch replaces the status sequence
type StatusesPatch struct {
	Statuses []string
}

func (ScalarPatch) Kind() PatchKind     { return KindScalar }
func (AddressPatch) Kind() PatchKind    { return KindAddress }
func (ExtraFieldPatch) Kind() PatchKind { return KindExtraField }
func (StatusesPatch) Kind() PatchKind   { return KindStatuses }

func (p ScalarPatch) apply(f *Fields) error {
	switch p.Field {
	case FirstName:
		f.FirstName = p.Value
	case MiddleName:
		f.MiddleName = p.Value
	case LastName:
		f.LastName = p.Value
	case DateOfBirth:
		f.DateOfBirth = p.Value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, p.Field)
	}
	return nil
}

func (p AddressPatch) apply(f *Fields) error {
	switch p.Field {
	case Street:
		f.Address.Street = p.Value
	case Address2:
		f.Address.Address2 = p.Value
	case City:
		f.Address.City = p.Value
	case State:
		f.Address.State = p.Value
	case Zipcode:
		f.Address.Zipcode = p.Value
	case Country:
		f.Address.Country = p.Value
	default:
		return fmt.Errorf("%w: address.%s", ErrUnknownField, p.Field)
	}
	return nil
}

func (p ExtraFieldPatch) apply(f *Fields) error {
	switch {
	case p.Index < 0 || p.Index > len(f.ExtraFields):
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, p.Index, len(f.ExtraFields))
	case p.Index == len(f.ExtraFields):
		f.ExtraFields = append(f.ExtraFields, p.Value)
	default:
		f.ExtraFields[p.Index] = p.Value
	}
	return nil
}

func (p StatusesPatch) apply(f *Fields) error {
	if err := ValidateStatuses(p.Statuses); err != nil {
		return err
	}
	f.Statuses = append([]string{}, p.Statuses...)
	return nil
}

// Apply merges the patches into a copy of f, in order. f is never modified.
func Apply(f Fields, patches ...Patch) (Fields, error) {
	out := f.Materialize()
	for _, p := range patches {
		if p == nil {
			continue
		}
		if err := p.apply(&out); err != nil {
			return f, err
		}
	}
	return out, nil
}
