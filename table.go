package pe

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// ExportTable is the decoded export table of one image. It owns all of its
// data and is not modified after DecodeExportTable returns it.
type ExportTable struct {
	moduleName    string
	timeDateStamp uint32
	majorVersion  uint16
	minorVersion  uint16
	ordinalBase   uint32

	entries   []ExportEntry
	byName    map[string]int
	byOrdinal map[uint16]int
}

func newExportTable(dir *ExportDirectory, moduleName string, entries []ExportEntry) *ExportTable {
	t := &ExportTable{
		moduleName: moduleName,
		entries:    entries,
		byName:     make(map[string]int, len(entries)),
		byOrdinal:  make(map[uint16]int, len(entries)),
	}
	if dir != nil {
		t.timeDateStamp = dir.TimeDateStamp
		t.majorVersion = dir.MajorVersion
		t.minorVersion = dir.MinorVersion
		t.ordinalBase = dir.Base
	}
	for i, e := range entries {
		if !e.ByOrdinal {
			t.byName[e.Name] = i
		}
		// several names may alias one slot; keep the first
		if _, ok := t.byOrdinal[e.Ordinal]; !ok {
			t.byOrdinal[e.Ordinal] = i
		}
	}
	return t
}

// ModuleName is the DLL name recorded in the export directory.
func (t *ExportTable) ModuleName() string { return t.moduleName }

func (t *ExportTable) TimeDateStamp() uint32 { return t.timeDateStamp }

func (t *ExportTable) Version() (major, minor uint16) { return t.majorVersion, t.minorVersion }

func (t *ExportTable) OrdinalBase() uint32 { return t.ordinalBase }

func (t *ExportTable) Len() int { return len(t.entries) }

// Entry returns the i-th entry in table order.
func (t *ExportTable) Entry(i int) ExportEntry { return t.entries[i] }

// Entries returns a copy of the entries in table order.
func (t *ExportTable) Entries() []ExportEntry {
	return slices.Clone(t.entries)
}

// Named returns the entries that have a name, in name-table order.
func (t *ExportTable) Named() []ExportEntry {
	var named []ExportEntry
	for _, e := range t.entries {
		if !e.ByOrdinal {
			named = append(named, e)
		}
	}
	return named
}

// SortedByOrdinal returns a copy of the entries ordered by ordinal. Entries
// sharing an ordinal keep table order.
func (t *ExportTable) SortedByOrdinal() []ExportEntry {
	sorted := slices.Clone(t.entries)
	slices.SortStableFunc(sorted, func(a, b ExportEntry) bool {
		return a.Ordinal < b.Ordinal
	})
	return sorted
}

func (t *ExportTable) Lookup(name string) (ExportEntry, bool) {
	i, ok := t.byName[name]
	if !ok {
		return ExportEntry{}, false
	}
	return t.entries[i], true
}

func (t *ExportTable) LookupOrdinal(ordinal uint16) (ExportEntry, bool) {
	i, ok := t.byOrdinal[ordinal]
	if !ok {
		return ExportEntry{}, false
	}
	return t.entries[i], true
}

// WriteText renders one line per entry followed by a count line:
//
//	1. Alpha (ordinal: 1, RVA: 0x00001000)
//	2. <ordinal-only> (ordinal: 2, RVA: 0x00002000)
//	3. Gamma (ordinal: 4, forwarded to: NTDLL.RtlAllocateHeap)
//	Total: 3 exports
func (t *ExportTable) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, t.String())
	return err
}

func (t *ExportTable) String() string {
	var b strings.Builder
	for i, e := range t.entries {
		name := e.Name
		if e.ByOrdinal {
			name = "<ordinal-only>"
		}
		if f, ok := e.Address.(Forwarder); ok {
			fmt.Fprintf(&b, "%d. %s (ordinal: %d, forwarded to: %s)\n", i+1, name, e.Ordinal, f.Target)
			continue
		}
		fmt.Fprintf(&b, "%d. %s (ordinal: %d, RVA: 0x%08X)\n", i+1, name, e.Ordinal, e.Address.RVA())
	}
	fmt.Fprintf(&b, "Total: %d exports\n", len(t.entries))
	return b.String()
}

type exportTableJSON struct {
	ModuleName    string        `json:"moduleName,omitempty"`
	TimeDateStamp uint32        `json:"timeDateStamp"`
	MajorVersion  uint16        `json:"majorVersion"`
	MinorVersion  uint16        `json:"minorVersion"`
	OrdinalBase   uint32        `json:"ordinalBase"`
	Exports       []ExportEntry `json:"exports"`
}

func (t *ExportTable) MarshalJSON() ([]byte, error) {
	exports := t.entries
	if exports == nil {
		exports = []ExportEntry{}
	}
	return json.Marshal(exportTableJSON{
		ModuleName:    t.moduleName,
		TimeDateStamp: t.timeDateStamp,
		MajorVersion:  t.majorVersion,
		MinorVersion:  t.minorVersion,
		OrdinalBase:   t.ordinalBase,
		Exports:       exports,
	})
}
