package pe

import (
	"bytes"

	"golang.org/x/exp/slices"
)

type SectionHeader32 struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type SectionHeader struct {
	Name           string
	VirtualSize    uint32
	VirtualAddress uint32
	Size           uint32
	Offset         uint32
}

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// readSections reads the section table that follows the optional header and
// returns it sorted by virtual address.
func readSections(img RawImage, dos DOSHeader, nt NtHeader) ([]SectionHeader, error) {
	offset := uint64(dos.AddressOfNewEXEHeader) + 4 + uint64(FileHeaderSize) +
		uint64(nt.FileHeader.SizeOfOptionalHeader)

	count := uint64(nt.FileHeader.NumberOfSections)
	if _, err := img.bytesAt(offset, count*uint64(SectionHeaderSize), "SectionHeaders"); err != nil {
		return nil, err
	}

	sections := make([]SectionHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		var sh SectionHeader32
		if err := img.structUnpack(&sh, offset+i*uint64(SectionHeaderSize), "SectionHeader"); err != nil {
			return nil, err
		}
		sections = append(sections, SectionHeader{
			Name:           cString(sh.Name[:]),
			VirtualSize:    sh.VirtualSize,
			VirtualAddress: sh.VirtualAddress,
			Size:           sh.SizeOfRawData,
			Offset:         sh.PointerToRawData,
		})
	}

	slices.SortFunc(sections, func(a, b SectionHeader) bool {
		return a.VirtualAddress < b.VirtualAddress
	})
	return sections, nil
}
