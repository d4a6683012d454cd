package presenter

import (
	"stealthcompany.com/patientpanel/internal/patient"
)

// Diff returns the patches that turn before into after. Extra fields past
// the end of before become appends; extra fields missing from after are
// not expressed (there is no remove patch).
func Diff(before, after patient.Record) []patient.Patch {
	var patches []patient.Patch

	scalars := []struct {
		field patient.ScalarField
		a, b  string
	}{
		{patient.FirstName, before.FirstName, after.FirstName},
		{patient.MiddleName, before.MiddleName, after.MiddleName},
		{patient.LastName, before.LastName, after.LastName},
		{patient.DateOfBirth, before.DateOfBirth, after.DateOfBirth},
	}
	for _, s := range scalars {
		if s.a != s.b {
			patches = append(patches, patient.ScalarPatch{Field: s.field, Value: s.b})
		}
	}

	addr := []struct {
		field patient.AddressField
		a, b  string
	}{
		{patient.Street, before.Address.Street, after.Address.Street},
		{patient.Address2, before.Address.Address2, after.Address.Address2},
		{patient.City, before.Address.City, after.Address.City},
		{patient.State, before.Address.State, after.Address.State},
		{patient.Zipcode, before.Address.Zipcode, after.Address.Zipcode},
		{patient.Country, before.Address.Country, after.Address.Country},
	}
	for _, s := range addr {
		if s.a != s.b {
			patches = append(patches, patient.AddressPatch{Field: s.field, Value: s.b})
		}
	}

	if !equalStrings(before.Statuses, after.Statuses) {
		patches = append(patches, patient.StatusesPatch{Statuses: append([]string{}, after.Statuses...)})
	}

	for i, ef := range after.ExtraFields {
		if i >= len(before.ExtraFields) || before.ExtraFields[i] != ef {
			patches = append(patches, patient.ExtraFieldPatch{Index: i, Value: ef})
		}
	}

	return patches
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
