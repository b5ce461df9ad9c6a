package pe

type DOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

func readDOSHeader(img RawImage) (DOSHeader, error) {
	var dh DOSHeader

	// Check the signature before anything else so that short non-PE input
	// is reported as such rather than as truncated.
	magic, err := img.readUint16(0, "DOSHeader.Magic")
	if err != nil {
		return dh, err
	}
	if magic != ImageDOSSignature && magic != ImageDOSZMSignature {
		return dh, notAnImage("DOSHeader.Magic", 0)
	}

	if err := img.structUnpack(&dh, 0, "DOSHeader"); err != nil {
		return dh, err
	}

	if dh.AddressOfNewEXEHeader < 4 {
		return dh, notAnImage("DOSHeader.AddressOfNewEXEHeader", dosLfanewOffset)
	}
	return dh, nil
}
