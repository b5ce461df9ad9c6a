package pe

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const (
	testLfanew        = 0x80
	testSectionRVA    = 0x5000
	testSectionOffset = 0x400
	testSizeOfHeaders = 0x400
	testAlignment     = 0x200
)

// testImage describes a synthetic DLL with a single .edata section.
type testImage struct {
	pe32        bool
	moduleName  string
	ordinalBase uint32
	functions   []uint32
	names       []string
	ordinals    []uint16

	// forwarders maps a function index to a forwarder string; the builder
	// places the string inside the export directory and points the slot at it.
	forwarders map[int]string

	// noExports leaves the export data directory empty.
	noExports bool
}

// builtImage is a built synthetic image plus the RVAs of what it contains.
type builtImage struct {
	mapped []byte // laid out by RVA
	file   []byte // laid out as on disk

	dirRVA, dirSize         uint32
	functionsRVA, namesRVA  uint32
	ordinalsRVA, stringsRVA uint32
	forwarderRVAs           map[int]uint32
}

// toOffset translates an RVA inside the export section into an offset of
// the on-disk layout.
func (b *builtImage) toOffset(rva uint32) int {
	return int(rva-testSectionRVA) + testSectionOffset
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}

func putUint32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putUint16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }

func (ti testImage) build() *builtImage {
	b := &builtImage{forwarderRVAs: map[int]uint32{}}

	// .edata contents, relative to testSectionRVA
	nFuncs, nNames := len(ti.functions), len(ti.names)
	functionsOff := ExportDirectorySize
	namesOff := functionsOff + 4*nFuncs
	ordinalsOff := namesOff + 4*nNames
	stringsOff := ordinalsOff + 2*len(ti.ordinals)

	var strs bytes.Buffer
	addString := func(s string) uint32 {
		rva := uint32(testSectionRVA + stringsOff + strs.Len())
		strs.WriteString(s)
		strs.WriteByte(0)
		return rva
	}

	var nameRVA uint32
	if ti.moduleName != "" {
		nameRVA = addString(ti.moduleName)
	}
	namePtrs := make([]uint32, nNames)
	for i, n := range ti.names {
		namePtrs[i] = addString(n)
	}
	functions := append([]uint32(nil), ti.functions...)
	forwarded := make([]int, 0, len(ti.forwarders))
	for idx := range ti.forwarders {
		forwarded = append(forwarded, idx)
	}
	sort.Ints(forwarded)
	for _, idx := range forwarded {
		rva := addString(ti.forwarders[idx])
		functions[idx] = rva
		b.forwarderRVAs[idx] = rva
	}

	edata := make([]byte, stringsOff+strs.Len())
	for i, f := range functions {
		putUint32(edata, functionsOff+4*i, f)
	}
	for i, p := range namePtrs {
		putUint32(edata, namesOff+4*i, p)
	}
	for i, o := range ti.ordinals {
		putUint16(edata, ordinalsOff+2*i, o)
	}
	copy(edata[stringsOff:], strs.Bytes())

	b.dirRVA = testSectionRVA
	b.dirSize = uint32(len(edata))
	b.functionsRVA = uint32(testSectionRVA + functionsOff)
	b.namesRVA = uint32(testSectionRVA + namesOff)
	b.ordinalsRVA = uint32(testSectionRVA + ordinalsOff)
	b.stringsRVA = uint32(testSectionRVA + stringsOff)

	dir := ImageExportDirectory{
		TimeDateStamp:         0x5F5E1000,
		MajorVersion:          1,
		MinorVersion:          2,
		Name:                  nameRVA,
		Base:                  ti.ordinalBase,
		NumberOfFunctions:     uint32(nFuncs),
		NumberOfNames:         uint32(nNames),
		AddressOfFunctions:    b.functionsRVA,
		AddressOfNames:        b.namesRVA,
		AddressOfNameOrdinals: b.ordinalsRVA,
	}
	var dirBuf bytes.Buffer
	_ = binary.Write(&dirBuf, binary.LittleEndian, &dir)
	copy(edata, dirBuf.Bytes())

	rawSize := align(len(edata), testAlignment)
	headers := ti.headers(b, len(edata), rawSize)

	b.file = make([]byte, testSectionOffset+rawSize)
	copy(b.file, headers)
	copy(b.file[testSectionOffset:], edata)

	b.mapped = make([]byte, testSectionRVA+rawSize)
	copy(b.mapped, headers)
	copy(b.mapped[testSectionRVA:], edata)
	return b
}

func (ti testImage) headers(b *builtImage, virtualSize, rawSize int) []byte {
	var buf bytes.Buffer

	dos := DOSHeader{Magic: ImageDOSSignature, AddressOfNewEXEHeader: testLfanew}
	_ = binary.Write(&buf, binary.LittleEndian, &dos)
	buf.Write(make([]byte, testLfanew-buf.Len()))

	var exportDD DataDirectory
	if !ti.noExports {
		exportDD = DataDirectory{VirtualAddress: b.dirRVA, Size: b.dirSize}
	}

	var oh any
	if ti.pe32 {
		oh32 := &OptionalHeader32{
			Magic:               ImageNtOptionalHdr32Magic,
			ImageBase:           0x10000000,
			SectionAlignment:    0x1000,
			FileAlignment:       testAlignment,
			SizeOfImage:         uint32(testSectionRVA + align(virtualSize, 0x1000)),
			SizeOfHeaders:       testSizeOfHeaders,
			NumberOfRvaAndSizes: 16,
		}
		oh32.DataDirectory[ImageDirectoryEntryExport] = exportDD
		oh = oh32
	} else {
		oh64 := &OptionalHeader64{
			Magic:               ImageNtOptionalHdr64Magic,
			ImageBase:           0x180000000,
			SectionAlignment:    0x1000,
			FileAlignment:       testAlignment,
			SizeOfImage:         uint32(testSectionRVA + align(virtualSize, 0x1000)),
			SizeOfHeaders:       testSizeOfHeaders,
			NumberOfRvaAndSizes: 16,
		}
		oh64.DataDirectory[ImageDirectoryEntryExport] = exportDD
		oh = oh64
	}

	machine := uint16(0x8664)
	if ti.pe32 {
		machine = 0x14c
	}
	fh := FileHeader{
		Machine:              machine,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      0x2022,
	}

	buf.Write([]byte{'P', 'E', 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, &fh)
	_ = binary.Write(&buf, binary.LittleEndian, oh)

	sh := SectionHeader32{
		VirtualSize:      uint32(virtualSize),
		VirtualAddress:   testSectionRVA,
		SizeOfRawData:    uint32(rawSize),
		PointerToRawData: testSectionOffset,
		Characteristics:  0x40000040,
	}
	copy(sh.Name[:], ".edata")
	_ = binary.Write(&buf, binary.LittleEndian, &sh)

	return buf.Bytes()
}

// alphaBeta is the three-slot directory with an unnamed middle export.
func alphaBeta() testImage {
	return testImage{
		moduleName:  "alphabeta.dll",
		ordinalBase: 1,
		functions:   []uint32{0x1000, 0x2000, 0x3000},
		names:       []string{"Alpha", "Beta"},
		ordinals:    []uint16{0, 2},
	}
}
