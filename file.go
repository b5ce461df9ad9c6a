package pe

// Headers is the decoded header block of an image: DOS header, NT headers and,
// for ModeFile images, the section table.
type Headers struct {
	DOSHeader
	NtHeader
	Sections []SectionHeader
}

// ReadHeaders validates the DOS and NT signatures and decodes the headers
// needed to find and translate the data directories.
func ReadHeaders(img RawImage) (*Headers, error) {
	dos, err := readDOSHeader(img)
	if err != nil {
		return nil, err
	}

	nt, err := readNTHeader(img, dos.AddressOfNewEXEHeader)
	if err != nil {
		return nil, err
	}

	h := &Headers{DOSHeader: dos, NtHeader: nt}
	if img.Mode == ModeFile {
		if h.Sections, err = readSections(img, dos, nt); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// rvaResolver maps an RVA to an offset into the image's byte view.
type rvaResolver struct {
	mode Mode
	base uint64

	// ModeFile only
	sizeOfHeaders uint32
	fileAlignment uint32
	sections      []SectionHeader
}

func newRVAResolver(img RawImage, h *Headers) *rvaResolver {
	r := &rvaResolver{mode: img.Mode, base: img.Base}
	if h != nil {
		r.sizeOfHeaders, r.fileAlignment = h.alignment()
		r.sections = h.Sections
	}
	return r
}

func (r *rvaResolver) offset(rva uint32) (uint64, bool) {
	switch r.mode {
	case ModeMapped:
		return uint64(rva), true
	case ModeLoaded:
		addr := r.base + uint64(rva)
		if addr < r.base {
			return 0, false
		}
		return addr - r.base, true
	case ModeFile:
		return r.fileOffset(rva)
	}
	return 0, false
}

func (r *rvaResolver) fileOffset(rva uint32) (uint64, bool) {
	for _, s := range r.sections {
		size := s.VirtualSize
		if s.Size > size {
			size = s.Size
		}
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= size {
			continue
		}
		delta := rva - s.VirtualAddress
		// the tail of a section past its raw data only exists in memory
		if delta >= s.Size {
			return 0, false
		}
		return uint64(r.adjustFileAlignment(s.Offset)) + uint64(delta), true
	}

	if len(r.sections) == 0 || rva < r.sizeOfHeaders {
		return uint64(rva), true
	}
	return 0, false
}

func (r *rvaResolver) adjustFileAlignment(pointer uint32) uint32 {
	if r.fileAlignment < fileAlignmentHardcodedValue {
		return pointer
	}
	return (pointer / fileAlignmentHardcodedValue) * fileAlignmentHardcodedValue
}
