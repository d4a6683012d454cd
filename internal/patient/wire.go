package patient

import (
	"fmt"
)

// PatchRequest is the JSON form of a Patch:
//
//	{"kind":"scalar","field":"firstName","value":"Ana"}
//	{"kind":"address","field":"city","value":"Lisbon"}
//	{"kind":"extraField","index":1,"label":"Insurer","value":"Acme"}
//	{"kind":"statuses","statuses":["Active"]}
type PatchRequest struct {
	Kind     PatchKind `json:"kind"`
	Field    string    `json:"field,omitempty"`
	Value    string    `json:"value,omitempty"`
	Index    int       `json:"index,omitempty"`
	Label    string    `json:"label,omitempty"`
	Statuses []string  `json:"statuses,omitempty"`
}

// ToPatch converts the request into its typed variant
func (r PatchRequest) ToPatch() (Patch, error) {
	switch r.Kind {
	case KindScalar:
		return ScalarPatch{Field: ScalarField(r.Field), Value: r.Value}, nil
	case KindAddress:
		return AddressPatch{Field: AddressField(r.Field), Value: r.Value}, nil
	case KindExtraField:
		return ExtraFieldPatch{Index: r.Index, Value: ExtraField{Label: r.Label, Value: r.Value}}, nil
	case KindStatuses:
		return StatusesPatch{Statuses: r.Statuses}, nil
	default:
		return nil, fmt.Errorf("%w: patch kind %q", ErrUnknownField, r.Kind)
	}
}

// ToPatches converts a batch, failing on the first bad entry
func ToPatches(reqs []PatchRequest) ([]Patch, error) {
	patches := make([]Patch, 0, len(reqs))
	for i, r := range reqs {
		p, err := r.ToPatch()
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		patches = append(patches, p)
	}
	return patches, nil
}
