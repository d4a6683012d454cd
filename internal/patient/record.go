package patient

import (
	"strconv"
)

// Address is the nested postal address of a patient record
type Address struct {
	Street   string `json:"street"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zipcode  string `json:"zipcode"`
	Country  string `json:"country"`
}

// ExtraField is an open-ended custom attribute
type ExtraField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Fields is the stored document shape: a record minus its id
type Fields struct {
	FirstName   string       `json:"firstName"`
	MiddleName  string       `json:"middleName"`
	LastName    string       `json:"lastName"`
	DateOfBirth string       `json:"dateOfBirth"`
	Address     Address      `json:"address"`
	Statuses    []string     `json:"statuses"`
	ExtraFields []ExtraField `json:"extraFields"`
}

// Record is a normalized patient record keyed by its document id
type Record struct {
	ID string `json:"id"`
	Fields
}

// NewRecordInput is a candidate record submitted by the new-record form
type NewRecordInput = Fields

// Materialize returns a copy whose sequences are never nil
func (f Fields) Materialize() Fields {
	out := f
	out.Statuses = make([]string, len(f.Statuses))
	copy(out.Statuses, f.Statuses)
	out.ExtraFields = make([]ExtraField, len(f.ExtraFields))
	copy(out.ExtraFields, f.ExtraFields)
	return out
}

// Clone deep-copies the record
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: r.Fields.Materialize()}
}

// FullName joins the three name parts the way the table shows them
func (r Record) FullName() string {
	return r.FirstName + " " + r.MiddleName + " " + r.LastName
}

// Normalize builds a fully materialized record from a raw document.
// Missing or mistyped values fall back to their empty defaults.
func Normalize(id string, raw map[string]interface{}) Record {
	rec := Record{ID: id}
	rec.FirstName = asString(raw["firstName"])
	rec.MiddleName = asString(raw["middleName"])
	rec.LastName = asString(raw["lastName"])
	rec.DateOfBirth = asString(raw["dateOfBirth"])

	addr, _ := raw["address"].(map[string]interface{})
	rec.Address = Address{
		Street:   asString(addr["street"]),
		Address2: asString(addr["address2"]),
		City:     asString(addr["city"]),
		State:    asString(addr["state"]),
		Zipcode:  asString(addr["zipcode"]),
		Country:  asString(addr["country"]),
	}

	rec.Statuses = []string{}
	if list, ok := raw["statuses"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				rec.Statuses = append(rec.Statuses, s)
			}
		}
	}

	rec.ExtraFields = []ExtraField{}
	if list, ok := raw["extraFields"].([]interface{}); ok {
		for _, item := range list {
			entry, _ := item.(map[string]interface{})
			rec.ExtraFields = append(rec.ExtraFields, ExtraField{
				Label: asString(entry["label"]),
				Value: asString(entry["value"]),
			})
		}
	}

	return rec
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
