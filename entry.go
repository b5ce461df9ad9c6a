package pe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Address is where an export resolves to: a CodeAddress inside the image or
// a Forwarder naming a symbol in another module.
type Address interface {
	// RVA is the raw value of the export address table slot.
	RVA() uint32
	String() string

	isAddress()
}

// CodeAddress is the RVA of exported code or data.
type CodeAddress uint32

func (a CodeAddress) RVA() uint32    { return uint32(a) }
func (a CodeAddress) String() string { return fmt.Sprintf("0x%08X", uint32(a)) }
func (CodeAddress) isAddress()       {}

// Forwarder is an export implemented by another module. Target has the form
// "MODULE.Symbol" or "MODULE.#ordinal".
type Forwarder struct {
	rva    uint32
	Target string
}

func (f Forwarder) RVA() uint32    { return f.rva }
func (f Forwarder) String() string { return f.Target }
func (Forwarder) isAddress()       {}

// Module returns the part of the target before the last dot.
func (f Forwarder) Module() string {
	i := strings.LastIndexByte(f.Target, '.')
	if i == -1 {
		return ""
	}
	return f.Target[:i]
}

// Symbol returns the part of the target after the last dot.
func (f Forwarder) Symbol() string {
	return f.Target[strings.LastIndexByte(f.Target, '.')+1:]
}

// ByOrdinal reports whether the forwarded symbol is named "#N" and, if so,
// returns N.
func (f Forwarder) ByOrdinal() (uint16, bool) {
	sym := f.Symbol()
	if !strings.HasPrefix(sym, "#") {
		return 0, false
	}
	n, err := strconv.ParseUint(sym[1:], 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

type ExportEntry struct {
	// Name is empty when ByOrdinal is set.
	Name      string
	ByOrdinal bool
	Ordinal   uint16
	Address   Address
}

// IsForwarder reports whether the entry is re-exported from another module.
func (e ExportEntry) IsForwarder() bool {
	_, ok := e.Address.(Forwarder)
	return ok
}

type exportEntryJSON struct {
	Name      string `json:"name,omitempty"`
	ByOrdinal bool   `json:"byOrdinal,omitempty"`
	Ordinal   uint16 `json:"ordinal"`
	RVA       uint32 `json:"rva"`
	Forwarder string `json:"forwarder,omitempty"`
}

func (e ExportEntry) MarshalJSON() ([]byte, error) {
	v := exportEntryJSON{
		Name:      e.Name,
		ByOrdinal: e.ByOrdinal,
		Ordinal:   e.Ordinal,
	}
	switch a := e.Address.(type) {
	case Forwarder:
		v.RVA = a.RVA()
		v.Forwarder = a.Target
	case nil:
	default:
		v.RVA = a.RVA()
	}
	return json.Marshal(v)
}
