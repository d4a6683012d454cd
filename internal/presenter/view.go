// Package presenter turns record store state into table view models and
// drives record edits, the new-record form and deletes.
package presenter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/recordstore"
)

// Sort columns
const (
	ColumnName    = "name"
	ColumnAddress = "address"
	ColumnDOB     = "dob"
	ColumnStatus  = "status"
)

// Sort orders
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// DefaultRowsPerPage is the initial page size
const DefaultRowsPerPage = 5

// RowsPerPageOptions are the selectable page sizes
var RowsPerPageOptions = []int{5, 10, 25}

// Empty states
type EmptyState string

const (
	EmptyNone      EmptyState = "none"
	EmptyNoRecords EmptyState = "no-records"
	EmptyNotFound  EmptyState = "not-found"
)

// NoRecordsMessage is shown when the collection holds nothing
const NoRecordsMessage = "There are no patient records currently. Click on the 'New patient' button to create one!"

// NotFoundMessage is shown when a filter matches nothing
func NotFoundMessage(q string) string {
	return fmt.Sprintf("No results found for '%s'. Try typing a different entry.", q)
}

// DateDisplayLayout renders dates of birth, e.g. "March 04, 1990"
const DateDisplayLayout = "January 02, 2006"

var dateInputLayouts = []string{"2006-01-02", "01/02/2006", time.RFC3339}

// Query is what the table asks for. Page is zero-based.
type Query struct {
	Filter      string `json:"filter"`
	SortBy      string `json:"sortBy"`
	Order       string `json:"order"`
	Page        int    `json:"page"`
	RowsPerPage int    `json:"rowsPerPage"`
}

// Normalize fills defaults and drops invalid values
func (q Query) Normalize() Query {
	out := q
	valid := false
	for _, n := range RowsPerPageOptions {
		if q.RowsPerPage == n {
			valid = true
		}
	}
	if !valid {
		out.RowsPerPage = DefaultRowsPerPage
	}
	if out.Page < 0 {
		out.Page = 0
	}
	switch out.SortBy {
	case ColumnName, ColumnAddress, ColumnDOB, ColumnStatus:
	default:
		out.SortBy = ""
	}
	if out.Order != OrderDesc {
		out.Order = OrderAsc
	}
	return out
}

// Row is one rendered table row
type Row struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	DateOfBirth string         `json:"dateOfBirth"`
	Status      string         `json:"status"`
	StatusColor string         `json:"statusColor"`
	Record      patient.Record `json:"record"`
}

// View is the rendered table
type View struct {
	Rows               []Row              `json:"rows"`
	Total              int                `json:"total"`
	Page               int                `json:"page"`
	RowsPerPage        int                `json:"rowsPerPage"`
	RowsPerPageOptions []int              `json:"rowsPerPageOptions"`
	Query              Query              `json:"query"`
	Loading            bool               `json:"loading"`
	Status             recordstore.Status `json:"status"`
	Error              string             `json:"error,omitempty"`
	Empty              EmptyState         `json:"empty"`
	EmptyMessage       string             `json:"emptyMessage,omitempty"`
	Version            uint64             `json:"version"`
}

// FilterByName keeps records whose "first middle last" contains q, ignoring case
func FilterByName(records []patient.Record, q string) []patient.Record {
	needle := strings.ToLower(q)
	out := make([]patient.Record, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.FullName()), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// SortRecords returns a stably sorted copy. Unknown columns keep store order.
func SortRecords(records []patient.Record, column, order string) []patient.Record {
	out := append([]patient.Record(nil), records...)

	var less func(a, b patient.Record) bool
	switch column {
	case ColumnName:
		less = func(a, b patient.Record) bool { return lowerLess(a.FullName(), b.FullName()) }
	case ColumnAddress:
		less = func(a, b patient.Record) bool { return lowerLess(FormatAddress(a.Address), FormatAddress(b.Address)) }
	case ColumnStatus:
		less = func(a, b patient.Record) bool { return lowerLess(firstStatus(a), firstStatus(b)) }
	case ColumnDOB:
		less = dobLess
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if order == OrderDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func lowerLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// dobLess orders parsable dates chronologically ahead of unparsable ones
func dobLess(a, b patient.Record) bool {
	ta, okA := ParseDate(a.DateOfBirth)
	tb, okB := ParseDate(b.DateOfBirth)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a.DateOfBirth < b.DateOfBirth
	}
}

// Paginate returns the slice [page*size, page*size+size)
func Paginate(records []patient.Record, page, size int) []patient.Record {
	if size <= 0 || page < 0 {
		return []patient.Record{}
	}
	start := page * size
	if start >= len(records) {
		return []patient.Record{}
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// ParseDate accepts YYYY-MM-DD, MM/DD/YYYY and RFC 3339
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDateOfBirth renders a stored date for the table; unparsable values
// pass through unchanged
func FormatDateOfBirth(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format(DateDisplayLayout)
}

// FormatAddress renders "street, city state zipcode country"
func FormatAddress(a patient.Address) string {
	return fmt.Sprintf("%s, %s %s %s %s", a.Street, a.City, a.State, a.Zipcode, a.Country)
}

// StatusColor picks the label color from every status the record carries
func StatusColor(statuses []string) string {
	has := func(s string) bool {
		for _, st := range statuses {
			if st == s {
				return true
			}
		}
		return false
	}
	switch {
	case has(patient.StatusChurned):
		return "error"
	case has(patient.StatusOnboarding):
		return "warning"
	case has(patient.StatusInquiry):
		return "info"
	default:
		return "success"
	}
}

func firstStatus(rec patient.Record) string {
	if len(rec.Statuses) == 0 {
		return ""
	}
	return rec.Statuses[0]
}

// RenderRow builds the display row for one record
func RenderRow(rec patient.Record) Row {
	return Row{
		ID:          rec.ID,
		Name:        rec.FullName(),
		Address:     FormatAddress(rec.Address),
		DateOfBirth: FormatDateOfBirth(rec.DateOfBirth),
		Status:      firstStatus(rec),
		StatusColor: StatusColor(rec.Statuses),
		Record:      rec,
	}
}

// Render filters, sorts and paginates the current snapshot. A page past the
// end is pulled back to the last page.
func Render(st recordstore.State, q Query) View {
	q = q.Normalize()

	filtered := FilterByName(st.Records, q.Filter)
	sorted := SortRecords(filtered, q.SortBy, q.Order)

	if lastPage := (len(sorted) - 1) / q.RowsPerPage; len(sorted) > 0 && q.Page > lastPage {
		q.Page = lastPage
	}
	if len(sorted) == 0 {
		q.Page = 0
	}

	page := Paginate(sorted, q.Page, q.RowsPerPage)
	rows := make([]Row, 0, len(page))
	for _, rec := range page {
		rows = append(rows, RenderRow(rec))
	}

	view := View{
		Rows:               rows,
		Total:              len(sorted),
		Page:               q.Page,
		RowsPerPage:        q.RowsPerPage,
		RowsPerPageOptions: append([]int(nil), RowsPerPageOptions...),
		Query:              q,
		Loading:            st.Loading,
		Status:             st.Status,
		Empty:              EmptyNone,
		Version:            st.Version,
	}
	if st.Err != nil {
		view.Error = st.Err.Message
	}

	switch {
	case st.Loading:
	case len(st.Records) == 0:
		view.Empty = EmptyNoRecords
		view.EmptyMessage = NoRecordsMessage
	case len(sorted) == 0 && q.Filter != "":
		view.Empty = EmptyNotFound
		view.EmptyMessage = NotFoundMessage(q.Filter)
	}
	return view
}
