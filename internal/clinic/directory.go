// Package clinic holds the static directory of destination clinics.
package clinic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Info describes one clinic a patient can be routed to.
type Info struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Directory is an immutable id -> Info lookup, safe for concurrent readers.
type Directory struct {
	byID    map[int]Info
	ordered []Info
}

type directoryFile struct {
	Clinics []Info `json:"clinics"`
}

// Load reads and validates the directory file at path.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clinic directory: %w", err)
	}
	defer f.Close()

	dir, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("clinic directory %s: %w", path, err)
	}
	return dir, nil
}

// Parse decodes a {"clinics": [...]} document.
func Parse(r io.Reader) (*Directory, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc directoryFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Clinics == nil {
		return nil, errors.New(`missing "clinics" array`)
	}
	return New(doc.Clinics)
}

// New builds a directory from entries, rejecting non-positive or duplicate ids
// and blank names.
func New(entries []Info) (*Directory, error) {
	d := &Directory{
		byID:    make(map[int]Info, len(entries)),
		ordered: make([]Info, 0, len(entries)),
	}
	for i, e := range entries {
		if e.ID <= 0 {
			return nil, fmt.Errorf("entry %d: id must be positive, got %d", i, e.ID)
		}
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("entry %d (id %d): name is required", i, e.ID)
		}
		if _, dup := d.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %d", i, e.ID)
		}
		d.byID[e.ID] = e
		d.ordered = append(d.ordered, e)
	}
	sort.Slice(d.ordered, func(i, j int) bool { return d.ordered[i].ID < d.ordered[j].ID })
	return d, nil
}

// Lookup returns the clinic for id. Unknown ids are not an error.
func (d *Directory) Lookup(id int) (Info, bool) {
	if d == nil {
		return Info{}, false
	}
	info, ok := d.byID[id]
	return info, ok
}

// All returns every clinic ordered by id.
func (d *Directory) All() []Info {
	if d == nil {
		return nil
	}
	out := make([]Info, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Len returns the number of clinics.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}
