// Package seed loads patient records into a collection, either the built-in
// demo set or raw documents fetched over HTTP.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/metrics"
	"stealthcompany.com/patientpanel/internal/patient"
)

// Result summarizes one seeding run
type Result struct {
	Total  int
	Stored int
	Failed int
}

// Seeder writes patient records into a collection
type Seeder struct {
	httpClient *http.Client
	coll       docstore.Collection
}

// NewSeeder creates a new seeder
func NewSeeder(coll docstore.Collection, timeout time.Duration) *Seeder {
	return &Seeder{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		coll: coll,
	}
}

var demoNames = [][3]string{
	{"Ana", "Maria", "Lee"},
	{"Bo", "", "Kim"},
	{"Carla", "", "Diaz"},
	{"Deon", "J", "Carter"},
	{"Elif", "", "Yilmaz"},
	{"Farid", "", "Haddad"},
	{"Grace", "Ann", "Okafor"},
	{"Hiro", "", "Tanaka"},
	{"Ines", "", "Pereira"},
	{"Jonah", "", "Walsh"},
	{"Kavya", "", "Rao"},
	{"Liam", "P", "Murphy"},
}

var demoDOBs = []string{
	"06/09/1995", "01/01/2000", "09/18/1992", "01/13/1962", "05/04/1963",
	"08/30/1996", "03/06/1995", "01/29/1994", "10/18/1990", "07/19/1994",
}

var demoCities = []struct{ city, state, zip string }{
	{"Austin", "TX", "73301"},
	{"Denver", "CO", "80014"},
	{"Portland", "OR", "97035"},
	{"Madison", "WI", "53703"},
}

// DemoPatients builds n deterministic demo records. n <= 0 yields none.
func DemoPatients(n int) []patient.NewRecordInput {
	if n < 0 {
		n = 0
	}
	out := make([]patient.NewRecordInput, 0, n)
	for i := 0; i < n; i++ {
		name := demoNames[i%len(demoNames)]
		city := demoCities[i%len(demoCities)]
		dob := "01/01/1995"
		if i < len(demoDOBs) {
			dob = demoDOBs[i]
		}

		status := patient.StatusChurned
		switch {
		case i%3 != 0:
			status = patient.StatusActive
		case i%5 != 0:
			status = patient.StatusOnboarding
		}

		out = append(out, patient.NewRecordInput{
			FirstName:   name[0],
			MiddleName:  name[1],
			LastName:    name[2],
			DateOfBirth: dob,
			Address: patient.Address{
				Street:  fmt.Sprintf("%d Main St", 100+i),
				City:    city.city,
				State:   city.state,
				Zipcode: city.zip,
				Country: "USA",
			},
			Statuses:    []string{status},
			ExtraFields: []patient.ExtraField{},
		})
	}
	return out
}

// FetchDocuments downloads a JSON array of raw patient documents and
// normalizes them
func (s *Seeder) FetchDocuments(ctx context.Context, url string) ([]patient.NewRecordInput, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordDocumentOperation("seed_fetch", "error", time.Since(startTime))
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordDocumentOperation("seed_fetch", "error", time.Since(startTime))
		return nil, fmt.Errorf("seed source returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", url, err)
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed documents from %s: %w", url, err)
	}
	metrics.RecordDocumentOperation("seed_fetch", "success", time.Since(startTime))

	out := make([]patient.NewRecordInput, 0, len(raw))
	for _, doc := range raw {
		out = append(out, patient.Normalize("", doc).Fields)
	}
	return out, nil
}

// Seed inserts every record, skipping ones with statuses outside the
// vocabulary. Individual failures are counted, not fatal.
func (s *Seeder) Seed(ctx context.Context, records []patient.NewRecordInput) (Result, error) {
	res := Result{Total: len(records)}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := patient.ValidateStatuses(rec.Statuses); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping seed record")
			res.Failed++
			continue
		}

		id, err := s.coll.Insert(ctx, rec.Materialize())
		if err != nil {
			log.Error().
				Err(err).
				Int("index", i).
				Str("collection", s.coll.Name()).
				Msg("Failed to store document")
			res.Failed++
			continue
		}
		res.Stored++

		log.Debug().Str("patient_id", id).Msg("Seeded patient record")
		if (i+1)%100 == 0 {
			log.Info().
				Int("processed", i+1).
				Int("total", res.Total).
				Msg("Progress update")
		}
	}

	log.Info().
		Str("collection", s.coll.Name()).
		Int("total", res.Total).
		Int("stored", res.Stored).
		Int("failed", res.Failed).
		Msg("Completed seeding")
	return res, nil
}
