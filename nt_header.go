package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type NtHeader struct {
	Signature      uint32
	FileHeader     FileHeader
	OptionalHeader any // of type *OptionalHeader32 or *OptionalHeader64

	// number of data directories actually present in the optional header
	numberOfDirectories uint32
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type OptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

type OptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

// Is64 reports whether the optional header is PE32+.
func (nt *NtHeader) Is64() bool {
	_, ok := nt.OptionalHeader.(*OptionalHeader64)
	return ok
}

// DataDirectory returns directory entry idx, or false when the optional
// header does not carry that many entries.
func (nt *NtHeader) DataDirectory(idx int) (DataDirectory, bool) {
	if idx < 0 || uint32(idx) >= nt.numberOfDirectories {
		return DataDirectory{}, false
	}
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		return oh.DataDirectory[idx], true
	case *OptionalHeader64:
		return oh.DataDirectory[idx], true
	}
	return DataDirectory{}, false
}

func (nt *NtHeader) alignment() (sizeOfHeaders, fileAlignment uint32) {
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		return oh.SizeOfHeaders, oh.FileAlignment
	case *OptionalHeader64:
		return oh.SizeOfHeaders, oh.FileAlignment
	}
	return 0, 0
}

func readNTHeader(img RawImage, offset uint32) (NtHeader, error) {
	var nt NtHeader

	sig, err := img.readUint32(uint64(offset), "NtHeader.Signature")
	if err != nil {
		return nt, err
	}
	if sig != ImageNTHeaderSignature {
		return nt, notAnImage("NtHeader.Signature", uint64(offset))
	}
	nt.Signature = sig

	fhOffset := uint64(offset) + 4
	if err := img.structUnpack(&nt.FileHeader, fhOffset, "FileHeader"); err != nil {
		return nt, err
	}

	ohOffset := fhOffset + uint64(FileHeaderSize)
	nt.OptionalHeader, nt.numberOfDirectories, err = readOptionalHeader(img, ohOffset, nt.FileHeader.SizeOfOptionalHeader)
	return nt, err
}

// readOptionalHeader decodes a PE32 or PE32+ optional header. There can be
// 0 to 16 data directories, so only the fixed part has to be present; the
// directory array is zero-filled past what SizeOfOptionalHeader and
// NumberOfRvaAndSizes both allow.
func readOptionalHeader(img RawImage, offset uint64, size uint16) (any, uint32, error) {
	if size < 2 {
		return nil, 0, notAnImage("FileHeader.SizeOfOptionalHeader", offset)
	}

	magic, err := img.readUint16(offset, "OptionalHeader.Magic")
	if err != nil {
		return nil, 0, err
	}

	var (
		oh     any
		dirs   *[16]DataDirectory
		count  *uint32
		fullSz int
		minSz  int
	)
	switch magic {
	case ImageNtOptionalHdr32Magic:
		oh32 := new(OptionalHeader32)
		oh, dirs, count = oh32, &oh32.DataDirectory, &oh32.NumberOfRvaAndSizes
		fullSz = binary.Size(oh32)
		minSz = fullSz - binary.Size(oh32.DataDirectory)
	case ImageNtOptionalHdr64Magic:
		oh64 := new(OptionalHeader64)
		oh, dirs, count = oh64, &oh64.DataDirectory, &oh64.NumberOfRvaAndSizes
		fullSz = binary.Size(oh64)
		minSz = fullSz - binary.Size(oh64.DataDirectory)
	default:
		return nil, 0, notAnImage("OptionalHeader.Magic", offset)
	}

	if int(size) < minSz {
		return nil, 0, notAnImage("FileHeader.SizeOfOptionalHeader", offset)
	}

	declared := int(size)
	if declared > fullSz {
		declared = fullSz
	}
	raw, err := img.bytesAt(offset, uint64(declared), "OptionalHeader")
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, fullSz)
	copy(buf, raw)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, oh); err != nil {
		return nil, 0, errors.WithMessage(err, "failure to read optional header")
	}

	n := uint32(declared-minSz) / uint32(DataDirectorySize)
	if *count < n {
		n = *count
	}
	for i := n; i < uint32(len(dirs)); i++ {
		dirs[i] = DataDirectory{}
	}
	return oh, n, nil
}
