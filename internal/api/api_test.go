package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/presenter"
	"stealthcompany.com/patientpanel/internal/recordstore"
	"stealthcompany.com/patientpanel/internal/toast"
)

func newTestServer(t *testing.T) (*httptest.Server, *presenter.Panel, *docstore.MemoryCollection) {
	t.Helper()
	coll := docstore.NewMemoryCollection("patientFormData")
	require.NoError(t, coll.Put(context.Background(), "p1", map[string]interface{}{
		"firstName":   "Ana",
		"lastName":    "Lee",
		"dateOfBirth": "1990-05-01",
		"address":     map[string]interface{}{"street": "1 Main St", "city": "Porto"},
		"statuses":    []interface{}{"Active"},
	}))

	panel := presenter.NewPanel(recordstore.New(coll), toast.NewBoard(time.Minute))
	require.NoError(t, panel.Start(context.Background()))
	t.Cleanup(panel.Stop)
	require.Eventually(t, func() bool {
		return panel.Store().State().Status == recordstore.StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	server := httptest.NewServer(NewServer(panel).SetupRoutes())
	t.Cleanup(server.Close)
	return server, panel, coll
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func waitForRecords(t *testing.T, panel *presenter.Panel, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(panel.Store().State().Records) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func newPatientBody() map[string]interface{} {
	return map[string]interface{}{
		"firstName":   "Bo",
		"lastName":    "Kim",
		"dateOfBirth": "1985-03-04",
		"address": map[string]interface{}{
			"street":  "1 Oak",
			"state":   "CA",
			"zipcode": "90001",
			"country": "USA",
		},
		"statuses": []string{"Inquiry"},
	}
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, "GET", server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ready", body["store"])
}

func TestListPatients(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedEmpty  presenter.EmptyState
		expectedRows   int
	}{
		{name: "all", query: "", expectedStatus: http.StatusOK, expectedEmpty: presenter.EmptyNone, expectedRows: 1},
		{name: "filter hit", query: "?q=ana", expectedStatus: http.StatusOK, expectedEmpty: presenter.EmptyNone, expectedRows: 1},
		{name: "filter miss", query: "?q=zed", expectedStatus: http.StatusOK, expectedEmpty: presenter.EmptyNotFound},
		{name: "bad page", query: "?page=two", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, "GET", server.URL+"/patients"+tt.query, nil)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var view presenter.View
			decode(t, resp, &view)
			assert.Equal(t, tt.expectedEmpty, view.Empty)
			assert.Len(t, view.Rows, tt.expectedRows)
		})
	}
}

func TestGetPatient(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, "GET", server.URL+"/patients/p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec map[string]interface{}
	decode(t, resp, &rec)
	assert.Equal(t, "p1", rec["id"])
	assert.Equal(t, "Ana", rec["firstName"])
	assert.Equal(t, []interface{}{}, rec["extraFields"])

	resp = do(t, "GET", server.URL+"/patients/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePatient(t *testing.T) {
	server, panel, _ := newTestServer(t)

	resp := do(t, "POST", server.URL+"/patients", newPatientBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	decode(t, resp, &created)
	assert.NotEmpty(t, created["id"])

	waitForRecords(t, panel, 2)

	resp = do(t, "GET", server.URL+"/notifications", nil)
	var notes []toast.Notification
	decode(t, resp, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "Patient record was successfully created!", notes[0].Message)
}

func TestCreatePatientRejected(t *testing.T) {
	server, _, coll := newTestServer(t)

	missing := newPatientBody()
	delete(missing, "lastName")
	resp := do(t, "POST", server.URL+"/patients", missing)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	badStatus := newPatientBody()
	badStatus["statuses"] = []string{"Dormant"}
	resp = do(t, "POST", server.URL+"/patients", badStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	req, err := http.NewRequest("POST", server.URL+"/patients", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	assert.Equal(t, 1, coll.Len())

	resp = do(t, "GET", server.URL+"/notifications", nil)
	var notes []toast.Notification
	decode(t, resp, &notes)
	require.Len(t, notes, 2, "one error toast per rejected create, none for bad JSON")
	for _, n := range notes {
		assert.Equal(t, toast.Error, n.Kind)
		assert.Equal(t, "Patient record was not successfully created. Please try again!", n.Message)
	}
}

func TestPatchPatient(t *testing.T) {
	server, panel, _ := newTestServer(t)

	body := map[string]interface{}{
		"patches": []map[string]interface{}{
			{"kind": "address", "field": "city", "value": "Lisbon"},
			{"kind": "statuses", "statuses": []string{"Churned"}},
			{"kind": "extraField", "index": 0, "label": "Insurer", "value": "Acme"},
		},
	}
	resp := do(t, "PATCH", server.URL+"/patients/p1", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		rec, _ := panel.Store().Get("p1")
		return rec.Address.City == "Lisbon"
	}, 2*time.Second, 5*time.Millisecond)

	rec, _ := panel.Store().Get("p1")
	assert.Equal(t, "1 Main St", rec.Address.Street)
	assert.Equal(t, []string{"Churned"}, rec.Statuses)
	assert.Equal(t, "Acme", rec.ExtraFields[0].Value)
}

func TestPatchPatientErrors(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name           string
		path           string
		patch          map[string]interface{}
		expectedStatus int
	}{
		{
			name:           "unknown kind",
			path:           "/patients/p1",
			patch:          map[string]interface{}{"kind": "nickname", "value": "x"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "unknown field",
			path:           "/patients/p1",
			patch:          map[string]interface{}{"kind": "scalar", "field": "id", "value": "x"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "index out of range",
			path:           "/patients/p1",
			patch:          map[string]interface{}{"kind": "extraField", "index": 3},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "missing record",
			path:           "/patients/ghost",
			patch:          map[string]interface{}{"kind": "scalar", "field": "firstName", "value": "x"},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{"patches": []interface{}{tt.patch}}
			resp := do(t, "PATCH", server.URL+tt.path, body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestReplacePatient(t *testing.T) {
	server, panel, _ := newTestServer(t)

	rec, ok := panel.Store().Get("p1")
	require.True(t, ok)
	rec.MiddleName = "Maria"
	rec.Address.Zipcode = "4000"

	resp := do(t, "PUT", server.URL+"/patients/p1", rec)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		got, _ := panel.Store().Get("p1")
		return got.MiddleName == "Maria" && got.Address.Zipcode == "4000"
	}, 2*time.Second, 5*time.Millisecond)

	resp = do(t, "PUT", server.URL+"/patients/ghost", rec)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePatient(t *testing.T) {
	server, panel, _ := newTestServer(t)

	resp := do(t, "DELETE", server.URL+"/patients/p1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	waitForRecords(t, panel, 0)

	resp = do(t, "GET", server.URL+"/patients", nil)
	var view presenter.View
	decode(t, resp, &view)
	assert.Equal(t, presenter.EmptyNoRecords, view.Empty)

	resp = do(t, "DELETE", server.URL+"/patients/p1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefetch(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, "POST", server.URL+"/patients/refetch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view presenter.View
	decode(t, resp, &view)
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, recordstore.StatusReady, view.Status)
}

func TestDismissNotification(t *testing.T) {
	server, panel, _ := newTestServer(t)
	n := panel.Board().Notify(toast.Success, toast.Updated)

	resp := do(t, "DELETE", server.URL+"/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, "DELETE", server.URL+"/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	do(t, "GET", server.URL+"/health", nil)

	resp := do(t, "GET", server.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStream(t *testing.T) {
	server, _, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/patients/stream?rowsPerPage=10"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, MessageSnapshot, first.Type)
	require.NotNil(t, first.View)
	assert.Equal(t, 1, first.View.Total)
	assert.Equal(t, 10, first.View.RowsPerPage)

	resp := do(t, "POST", server.URL+"/patients", newPatientBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	sawToast, sawTwo := false, false
	for i := 0; i < 10 && !(sawToast && sawTwo); i++ {
		msg := readMessage(t, conn)
		switch msg.Type {
		case MessageToast:
			require.NotNil(t, msg.Toast)
			assert.Equal(t, toast.Created, msg.Toast.Action)
			sawToast = true
		case MessageSnapshot:
			if msg.View.Total == 2 {
				sawTwo = true
			}
		}
	}
	assert.True(t, sawToast, "toast pushed to stream")
	assert.True(t, sawTwo, "snapshot with the new record pushed to stream")
}
