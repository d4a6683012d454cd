package presenter

import (
	"context"
	"fmt"
	"strings"

	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/toast"
)

// EditSession buffers edits to one record until they are saved. A failed
// save leaves the buffer untouched so the user can retry.
type EditSession struct {
	panel    *Panel
	original patient.Record
	buffer   patient.Record
	open     bool
}

func newEditSession(p *Panel, rec patient.Record) *EditSession {
	return &EditSession{
		panel:    p,
		original: rec.Clone(),
		buffer:   rec.Clone(),
		open:     true,
	}
}

// Open reports whether the session still has unsaved state
func (s *EditSession) Open() bool { return s.open }

// Buffer returns a copy of the edited record
func (s *EditSession) Buffer() patient.Record { return s.buffer.Clone() }

// Pending returns the patches a save would write
func (s *EditSession) Pending() []patient.Patch { return Diff(s.original, s.buffer) }

// SetField edits a top-level string field
func (s *EditSession) SetField(field patient.ScalarField, value string) error {
	return s.apply(patient.ScalarPatch{Field: field, Value: value})
}

// SetAddress edits one address sub-field
func (s *EditSession) SetAddress(field patient.AddressField, value string) error {
	return s.apply(patient.AddressPatch{Field: field, Value: value})
}

// SetExtraField edits the extra field at index
func (s *EditSession) SetExtraField(index int, value patient.ExtraField) error {
	return s.apply(patient.ExtraFieldPatch{Index: index, Value: value})
}

// AddExtraField appends an extra field
func (s *EditSession) AddExtraField(label, value string) {
	s.buffer.ExtraFields = append(s.buffer.ExtraFields, patient.ExtraField{Label: label, Value: value})
}

// SetStatus replaces the statuses with a single one, as the row selector does
func (s *EditSession) SetStatus(status string) error {
	return s.apply(patient.StatusesPatch{Statuses: []string{status}})
}

func (s *EditSession) apply(p patient.Patch) error {
	fields, err := patient.Apply(s.buffer.Fields, p)
	if err != nil {
		return err
	}
	s.buffer.Fields = fields
	return nil
}

// Cancel discards the buffer
func (s *EditSession) Cancel() {
	s.buffer = s.original.Clone()
	s.open = false
}

// Save writes the pending patches. On success the session closes; on
// failure it stays open with the buffer intact.
func (s *EditSession) Save(ctx context.Context) error {
	if err := s.panel.Update(ctx, s.original.ID, s.Pending()...); err != nil {
		return err
	}
	s.original = s.buffer.Clone()
	s.open = false
	return nil
}

// requiredFields are the form fields that must be non-blank
var requiredFields = []struct {
	name string
	get  func(patient.NewRecordInput) string
}{
	{"firstName", func(in patient.NewRecordInput) string { return in.FirstName }},
	{"lastName", func(in patient.NewRecordInput) string { return in.LastName }},
	{"dateOfBirth", func(in patient.NewRecordInput) string { return in.DateOfBirth }},
	{"address.street", func(in patient.NewRecordInput) string { return in.Address.Street }},
	{"address.state", func(in patient.NewRecordInput) string { return in.Address.State }},
	{"address.zipcode", func(in patient.NewRecordInput) string { return in.Address.Zipcode }},
	{"address.country", func(in patient.NewRecordInput) string { return in.Address.Country }},
}

// ValidateInput checks required fields and the status vocabulary
func ValidateInput(in patient.NewRecordInput) error {
	var missing []string
	for _, f := range requiredFields {
		if strings.TrimSpace(f.get(in)) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if err := patient.ValidateStatuses(in.Statuses); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// NewRecordForm buffers a record that does not exist yet
type NewRecordForm struct {
	panel *Panel
	input patient.NewRecordInput
}

func newRecordForm(p *Panel) *NewRecordForm {
	return &NewRecordForm{panel: p, input: emptyInput()}
}

func emptyInput() patient.NewRecordInput {
	return patient.NewRecordInput{
		Statuses:    []string{},
		ExtraFields: []patient.ExtraField{},
	}
}

// Input returns a copy of the form buffer
func (f *NewRecordForm) Input() patient.NewRecordInput { return f.input.Materialize() }

// Fill replaces the whole buffer
func (f *NewRecordForm) Fill(in patient.NewRecordInput) { f.input = in.Materialize() }

// SetField edits a top-level string field
func (f *NewRecordForm) SetField(field patient.ScalarField, value string) error {
	return f.apply(patient.ScalarPatch{Field: field, Value: value})
}

// SetAddress edits one address sub-field
func (f *NewRecordForm) SetAddress(field patient.AddressField, value string) error {
	return f.apply(patient.AddressPatch{Field: field, Value: value})
}

// ToggleStatus adds status if unchecked, removes it if checked
func (f *NewRecordForm) ToggleStatus(status string) error {
	if !patient.IsStatus(status) {
		return fmt.Errorf("%w: %q", patient.ErrUnknownStatus, status)
	}
	next := make([]string, 0, len(f.input.Statuses)+1)
	found := false
	for _, s := range f.input.Statuses {
		if s == status {
			found = true
			continue
		}
		next = append(next, s)
	}
	if !found {
		next = append(next, status)
	}
	f.input.Statuses = next
	return nil
}

// AddExtraField appends a blank extra field
func (f *NewRecordForm) AddExtraField() {
	f.input.ExtraFields = append(f.input.ExtraFields, patient.ExtraField{})
}

// SetExtraField edits the extra field at index
func (f *NewRecordForm) SetExtraField(index int, value patient.ExtraField) error {
	return f.apply(patient.ExtraFieldPatch{Index: index, Value: value})
}

func (f *NewRecordForm) apply(p patient.Patch) error {
	fields, err := patient.Apply(f.input, p)
	if err != nil {
		return err
	}
	f.input = fields
	return nil
}

// Validate checks the buffer without submitting it
func (f *NewRecordForm) Validate() error {
	return ValidateInput(f.input)
}

// Submit validates and creates the record. Success resets the form;
// failure keeps it. Both raise a toast.
func (f *NewRecordForm) Submit(ctx context.Context) (string, error) {
	if err := f.Validate(); err != nil {
		f.panel.notify(toast.Created, err)
		return "", err
	}
	id, err := f.panel.Create(ctx, f.input.Materialize())
	if err != nil {
		return "", err
	}
	f.input = emptyInput()
	return id, nil
}
