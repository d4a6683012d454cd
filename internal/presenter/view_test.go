package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/recordstore"
)

func rec(id, first, middle, last string) patient.Record {
	return patient.Record{
		ID: id,
		Fields: patient.Fields{
			FirstName:   first,
			MiddleName:  middle,
			LastName:    last,
			Statuses:    []string{},
			ExtraFields: []patient.ExtraField{},
		},
	}
}

func names(records []patient.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterByName(t *testing.T) {
	records := []patient.Record{
		rec("1", "Ana", "Maria", "Lee"),
		rec("2", "Bo", "", "Kim"),
		rec("3", "Carla", "", "Leeds"),
	}

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"lee", []string{"1", "3"}},
		{"MARIA LEE", []string{"1"}},
		{"bo  kim", []string{"2"}},
		{"zed", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.want, names(FilterByName(records, tt.q)))
		})
	}
}

func TestSortRecords(t *testing.T) {
	a := rec("a", "Ana", "", "Lee")
	a.DateOfBirth = "1990-05-01"
	a.Statuses = []string{"Onboarding"}
	a.Address.Street = "9 Elm"
	b := rec("b", "bo", "", "Kim")
	b.DateOfBirth = "03/04/1985"
	b.Statuses = []string{"Active"}
	b.Address.Street = "1 Oak"
	c := rec("c", "Carla", "", "Diaz")
	c.DateOfBirth = "unknown"
	c.Address.Street = "5 Ash"

	records := []patient.Record{a, b, c}

	assert.Equal(t, []string{"a", "b", "c"}, names(SortRecords(records, ColumnName, OrderAsc)))
	assert.Equal(t, []string{"c", "b", "a"}, names(SortRecords(records, ColumnName, OrderDesc)))
	assert.Equal(t, []string{"b", "a", "c"}, names(SortRecords(records, ColumnDOB, OrderAsc)))
	assert.Equal(t, []string{"b", "c", "a"}, names(SortRecords(records, ColumnAddress, OrderAsc)))
	assert.Equal(t, []string{"c", "b", "a"}, names(SortRecords(records, ColumnStatus, OrderAsc)))
	assert.Equal(t, []string{"a", "b", "c"}, names(SortRecords(records, "bogus", OrderDesc)))
	assert.Equal(t, []string{"a", "b", "c"}, names(records), "input is not reordered")
}

func TestPaginate(t *testing.T) {
	records := make([]patient.Record, 12)
	for i := range records {
		records[i] = rec(string(rune('a'+i)), "", "", "")
	}

	assert.Len(t, Paginate(records, 0, 5), 5)
	assert.Equal(t, "f", Paginate(records, 1, 5)[0].ID)
	assert.Len(t, Paginate(records, 2, 5), 2)
	assert.Empty(t, Paginate(records, 3, 5))
	assert.Empty(t, Paginate(records, 0, 0))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "March 04, 1985", FormatDateOfBirth("1985-03-04"))
	assert.Equal(t, "March 04, 1985", FormatDateOfBirth("03/04/1985"))
	assert.Equal(t, "someday", FormatDateOfBirth("someday"))

	addr := patient.Address{Street: "1 Main St", City: "Porto", State: "PT", Zipcode: "4000", Country: "Portugal"}
	assert.Equal(t, "1 Main St, Porto PT 4000 Portugal", FormatAddress(addr))
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"Active", "Churned"}, "error"},
		{[]string{"Onboarding", "Inquiry"}, "warning"},
		{[]string{"Inquiry"}, "info"},
		{[]string{"Active"}, "success"},
		{[]string{}, "success"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusColor(tt.statuses), "%v", tt.statuses)
	}
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Page: -2, RowsPerPage: 7, SortBy: "age", Order: "sideways"}.Normalize()
	assert.Equal(t, 0, q.Page)
	assert.Equal(t, DefaultRowsPerPage, q.RowsPerPage)
	assert.Empty(t, q.SortBy)
	assert.Equal(t, OrderAsc, q.Order)

	q = Query{RowsPerPage: 25, SortBy: ColumnDOB, Order: OrderDesc}.Normalize()
	assert.Equal(t, 25, q.RowsPerPage)
	assert.Equal(t, ColumnDOB, q.SortBy)
	assert.Equal(t, OrderDesc, q.Order)
}

func TestRenderEmptyStates(t *testing.T) {
	empty := recordstore.State{Records: []patient.Record{}, Status: recordstore.StatusReady}
	view := Render(empty, Query{})
	assert.Equal(t, EmptyNoRecords, view.Empty)
	assert.Equal(t, NoRecordsMessage, view.EmptyMessage)

	view = Render(empty, Query{Filter: "ana"})
	assert.Equal(t, EmptyNoRecords, view.Empty, "an empty collection wins over a filter miss")

	full := recordstore.State{Records: []patient.Record{rec("1", "Ana", "", "Lee")}, Status: recordstore.StatusReady}
	view = Render(full, Query{Filter: "zed"})
	assert.Equal(t, EmptyNotFound, view.Empty)
	assert.Equal(t, "No results found for 'zed'. Try typing a different entry.", view.EmptyMessage)
	assert.Zero(t, view.Total)

	view = Render(full, Query{Filter: "ana"})
	assert.Equal(t, EmptyNone, view.Empty)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Ana  Lee", view.Rows[0].Name)

	loading := recordstore.State{Records: []patient.Record{}, Loading: true, Status: recordstore.StatusLoading}
	assert.Equal(t, EmptyNone, Render(loading, Query{}).Empty)
}

func TestRenderPagingAndError(t *testing.T) {
	records := make([]patient.Record, 7)
	for i := range records {
		records[i] = rec(string(rune('a'+i)), "P", "", string(rune('a'+i)))
	}
	st := recordstore.State{
		Records: records,
		Status:  recordstore.StatusError,
		Err:     &recordstore.Failure{Kind: recordstore.FetchFailure, Message: recordstore.FetchFailureMessage},
	}

	view := Render(st, Query{Page: 1})
	assert.Equal(t, 7, view.Total)
	assert.Equal(t, 1, view.Page)
	assert.Len(t, view.Rows, 2)
	assert.Equal(t, recordstore.FetchFailureMessage, view.Error)
	assert.Equal(t, []int{5, 10, 25}, view.RowsPerPageOptions)

	view = Render(st, Query{Page: 9})
	assert.Equal(t, 1, view.Page, "past the end clamps to the last page")
}

func TestDiff(t *testing.T) {
	before := rec("1", "Ana", "", "Lee")
	before.Address = patient.Address{Street: "1 Main", City: "Porto"}
	before.Statuses = []string{"Active"}
	before.ExtraFields = []patient.ExtraField{{Label: "a", Value: "1"}, {Label: "b", Value: "2"}}

	assert.Empty(t, Diff(before, before.Clone()))

	after := before.Clone()
	after.LastName = "Li"
	after.Address.City = "Lisbon"
	after.Statuses = []string{"Churned"}
	after.ExtraFields[1].Value = "20"
	after.ExtraFields = append(after.ExtraFields, patient.ExtraField{Label: "c", Value: "3"})

	patches := Diff(before, after)
	assert.Equal(t, []patient.Patch{
		patient.ScalarPatch{Field: patient.LastName, Value: "Li"},
		patient.AddressPatch{Field: patient.City, Value: "Lisbon"},
		patient.StatusesPatch{Statuses: []string{"Churned"}},
		patient.ExtraFieldPatch{Index: 1, Value: patient.ExtraField{Label: "b", Value: "20"}},
		patient.ExtraFieldPatch{Index: 2, Value: patient.ExtraField{Label: "c", Value: "3"}},
	}, patches)

	applied, err := patient.Apply(before.Fields, patches...)
	require.NoError(t, err)
	assert.Equal(t, after.Fields, applied)
}
