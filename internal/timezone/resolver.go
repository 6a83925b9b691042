// Package timezone resolves free-text city names to candidate IANA timezone
// identifiers using an embedded city dataset. Lookups are best-effort: an
// unknown city yields an empty candidate list, never an error.
package timezone

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

//go:embed cities.csv
var dataFS embed.FS

// Candidate is one possible timezone for a city name. Candidates keep the
// dataset's row order; callers wanting a single zone take the first.
type Candidate struct {
	City     string
	Country  string // ISO 3166-1 alpha-2
	Timezone string // IANA identifier, e.g. "Asia/Jakarta"
}

// Resolver maps normalized city names to ordered candidate lists.
type Resolver struct {
	index map[string][]Candidate
}

var (
	defaultOnce sync.Once
	defaultRes  *Resolver
	defaultErr  error
)

// Default returns the process-wide resolver backed by the embedded dataset.
func Default() (*Resolver, error) {
	defaultOnce.Do(func() {
		defaultRes, defaultErr = load()
	})
	return defaultRes, defaultErr
}

func load() (*Resolver, error) {
	f, err := dataFS.Open("cities.csv")
	if err != nil {
		return nil, fmt.Errorf("open city dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	index := make(map[string][]Candidate)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read city dataset: %w", err)
		}
		c := Candidate{City: rec[0], Country: rec[1], Timezone: rec[2]}
		key := normalize(c.City)
		index[key] = append(index[key], c)
	}
	return &Resolver{index: index}, nil
}

// Resolve returns the ordered candidates for a city name. The empty slice
// means "no match" — callers skip timezone-dependent work for that record.
func (r *Resolver) Resolve(city string) []Candidate {
	return r.index[normalize(city)]
}

// Location resolves a city to a *time.Location using the first candidate.
func (r *Resolver) Location(city string) (*time.Location, error) {
	candidates := r.Resolve(city)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no timezone match for city %q", city)
	}
	loc, err := time.LoadLocation(candidates[0].Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", candidates[0].Timezone, err)
	}
	return loc, nil
}

// normalize lowercases and collapses interior whitespace so "New  York" and
// "new york" hit the same key.
func normalize(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(city))), " ")
}
