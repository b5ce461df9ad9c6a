package pe

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how RVAs are turned into offsets into RawImage.Data.
type Mode int

const (
	// ModeMapped is a view whose first byte is RVA 0, e.g. a disk-mapped
	// image: offset = rva.
	ModeMapped Mode = iota
	// ModeLoaded is a module loaded into a process at Base: the RVA becomes
	// the address Base+rva, and the offset is that address minus Base.
	ModeLoaded
	// ModeFile is the raw on-disk layout: RVAs go through the section table.
	ModeFile
)

func (m Mode) String() string {
	switch m {
	case ModeMapped:
		return "mapped"
	case ModeLoaded:
		return "loaded"
	case ModeFile:
		return "file"
	}
	return "unknown"
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "mapped":
		return ModeMapped, nil
	case "loaded":
		return ModeLoaded, nil
	case "file":
		return ModeFile, nil
	}
	return 0, errors.Errorf("unknown image mode %q", s)
}

// RawImage is a borrowed, read-only view of a PE image. Nothing in this
// package writes to Data or keeps a reference to it after a call returns.
type RawImage struct {
	Base uint64
	Data []byte
	Mode Mode
}

func NewMappedImage(data []byte) RawImage {
	return RawImage{Data: data, Mode: ModeMapped}
}

func NewLoadedImage(base uint64, data []byte) RawImage {
	return RawImage{Base: base, Data: data, Mode: ModeLoaded}
}

func NewFileImage(data []byte) RawImage {
	return RawImage{Data: data, Mode: ModeFile}
}

// Size returns the length of the view in bytes.
func (img RawImage) Size() uint64 {
	return uint64(len(img.Data))
}

func (img RawImage) bytesAt(offset, length uint64, field string) ([]byte, error) {
	end := offset + length

	// Integer overflow
	if end < offset {
		return nil, truncated(field, offset)
	}
	if end > img.Size() {
		return nil, truncated(field, offset)
	}
	return img.Data[offset:end], nil
}

func (img RawImage) readUint16(offset uint64, field string) (uint16, error) {
	data, err := img.bytesAt(offset, 2, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (img RawImage) readUint32(offset uint64, field string) (uint32, error) {
	data, err := img.bytesAt(offset, 4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// structUnpack decodes a fixed-size little-endian structure at offset.
func (img RawImage) structUnpack(iface any, offset uint64, field string) error {
	size := binary.Size(iface)
	if size < 0 {
		return errors.Errorf("cannot unpack %T", iface)
	}
	data, err := img.bytesAt(offset, uint64(size), field)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, iface)
}

// cStringAt reads a NUL-terminated string. A string that runs to the end of
// the view without a terminator is truncated.
func (img RawImage) cStringAt(offset uint64, field string) (string, error) {
	if offset >= img.Size() {
		return "", truncated(field, offset)
	}
	data := img.Data[offset:]
	end := bytes.IndexByte(data, 0)
	if end == -1 {
		return "", truncated(field, offset)
	}
	return string(data[:end]), nil
}
