package pe

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// ImageExportDirectory is the on-disk IMAGE_EXPORT_DIRECTORY record.
type ImageExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// ExportDirectory is a located export directory together with the data
// directory range it was found through.
type ExportDirectory struct {
	ImageExportDirectory

	// DirectoryRVA and DirectorySize come from the optional header's export
	// data directory. Address-table values inside this range are forwarders.
	DirectoryRVA  uint32
	DirectorySize uint32

	resolver *rvaResolver
}

// LocateExportDirectory finds and decodes the export directory of img.
// A valid image without exports yields ErrNoExports.
func LocateExportDirectory(img RawImage) (*ExportDirectory, error) {
	h, err := ReadHeaders(img)
	if err != nil {
		return nil, err
	}

	dd, ok := h.DataDirectory(ImageDirectoryEntryExport)
	if !ok || dd.VirtualAddress == 0 || dd.Size == 0 {
		return nil, &DecodeError{Err: ErrNoExports, Field: "DataDirectory[EXPORT]"}
	}

	resolver := newRVAResolver(img, h)
	offset, ok := resolver.offset(dd.VirtualAddress)
	if !ok {
		return nil, truncated("ExportDirectory", uint64(dd.VirtualAddress))
	}

	dir := &ExportDirectory{
		DirectoryRVA:  dd.VirtualAddress,
		DirectorySize: dd.Size,
		resolver:      resolver,
	}
	if err := img.structUnpack(&dir.ImageExportDirectory, offset, "ExportDirectory"); err != nil {
		return nil, err
	}
	return dir, nil
}

// DecodeExportTable walks the three arrays referenced by dir and builds the
// export table. Named exports come first in name-table order, followed by
// ordinal-only exports in ascending ordinal order. Either the whole table is
// returned or the first violation found, never both.
func DecodeExportTable(img RawImage, dir *ExportDirectory) (*ExportTable, error) {
	if dir == nil {
		return nil, errors.New("nil export directory")
	}

	resolver := dir.resolver
	if resolver == nil || resolver.mode != img.Mode || resolver.base != img.Base {
		var h *Headers
		if img.Mode == ModeFile {
			var err error
			if h, err = ReadHeaders(img); err != nil {
				return nil, err
			}
		}
		resolver = newRVAResolver(img, h)
	}
	d := &exportDecoder{img: img, dir: dir, resolver: resolver}

	// All three arrays are bounds-checked before iterating, so the counts
	// read from the image can never drive a walk past the buffer.
	functions, err := d.uint32Array(dir.AddressOfFunctions, dir.NumberOfFunctions, "AddressOfFunctions")
	if err != nil {
		return nil, err
	}
	namePointers, err := d.uint32Array(dir.AddressOfNames, dir.NumberOfNames, "AddressOfNames")
	if err != nil {
		return nil, err
	}
	ordinals, ordinalsOffset, err := d.uint16Array(dir.AddressOfNameOrdinals, dir.NumberOfNames, "AddressOfNameOrdinals")
	if err != nil {
		return nil, err
	}

	moduleName, err := d.moduleName()
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, 0, len(namePointers))
	seen := make(map[string]struct{}, len(namePointers))
	covered := make([]bool, len(functions))

	for i, nameRVA := range namePointers {
		field := fmt.Sprintf("AddressOfNames[%d]", i)
		nameOffset, ok := d.resolver.offset(nameRVA)
		if !ok {
			return nil, truncated(field, uint64(nameRVA))
		}
		name, err := img.cStringAt(nameOffset, field)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, &DecodeError{Err: ErrDuplicateName, Field: field, Offset: nameOffset, Name: name}
		}
		seen[name] = struct{}{}

		index := uint32(ordinals[i])
		if index >= dir.NumberOfFunctions {
			return nil, &DecodeError{
				Err:    ErrOrdinalOutOfRange,
				Field:  fmt.Sprintf("AddressOfNameOrdinals[%d]", i),
				Offset: ordinalsOffset + uint64(i)*2,
				Index:  index,
			}
		}
		ordinal, err := d.ordinal(index)
		if err != nil {
			return nil, err
		}
		addr, err := d.classify(functions[index], index)
		if err != nil {
			return nil, err
		}

		covered[index] = true
		entries = append(entries, ExportEntry{
			Name:    name,
			Ordinal: ordinal,
			Address: addr,
		})
	}

	for index, rva := range functions {
		// zero slots are gaps in the ordinal range
		if covered[index] || rva == 0 {
			continue
		}
		ordinal, err := d.ordinal(uint32(index))
		if err != nil {
			return nil, err
		}
		addr, err := d.classify(rva, uint32(index))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ExportEntry{
			ByOrdinal: true,
			Ordinal:   ordinal,
			Address:   addr,
		})
	}

	return newExportTable(dir, moduleName, entries), nil
}

// ParseExports locates and decodes the export table of img. An image without
// an export directory yields an empty table.
func ParseExports(img RawImage) (*ExportTable, error) {
	dir, err := LocateExportDirectory(img)
	if errors.Is(err, ErrNoExports) {
		return newExportTable(nil, "", nil), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeExportTable(img, dir)
}

type exportDecoder struct {
	img      RawImage
	dir      *ExportDirectory
	resolver *rvaResolver
}

func (d *exportDecoder) array(rva, count, elemSize uint32, field string) ([]byte, uint64, error) {
	if count == 0 {
		return nil, 0, nil
	}
	offset, ok := d.resolver.offset(rva)
	if !ok {
		return nil, 0, truncated(field, uint64(rva))
	}
	data, err := d.img.bytesAt(offset, uint64(count)*uint64(elemSize), field)
	if err != nil {
		return nil, 0, err
	}
	return data, offset, nil
}

func (d *exportDecoder) uint32Array(rva, count uint32, field string) ([]uint32, error) {
	data, _, err := d.array(rva, count, 4, field)
	if err != nil {
		return nil, err
	}
	values := make([]uint32, count)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return values, nil
}

func (d *exportDecoder) uint16Array(rva, count uint32, field string) ([]uint16, uint64, error) {
	data, offset, err := d.array(rva, count, 2, field)
	if err != nil {
		return nil, 0, err
	}
	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return values, offset, nil
}

func (d *exportDecoder) ordinal(index uint32) (uint16, error) {
	ordinal := uint64(d.dir.Base) + uint64(index)
	if ordinal > maxOrdinal {
		return 0, &DecodeError{Err: ErrOrdinalOutOfRange, Field: "ExportDirectory.Base", Index: index}
	}
	return uint16(ordinal), nil
}

// classify turns an address-table value into a code address or, when it
// points back into the export directory, a forwarder.
func (d *exportDecoder) classify(rva, index uint32) (Address, error) {
	if !d.dir.isForwarder(rva) {
		return CodeAddress(rva), nil
	}
	field := fmt.Sprintf("AddressOfFunctions[%d]", index)
	offset, ok := d.resolver.offset(rva)
	if !ok {
		return nil, truncated(field, uint64(rva))
	}
	target, err := d.img.cStringAt(offset, field)
	if err != nil {
		return nil, err
	}
	return Forwarder{rva: rva, Target: target}, nil
}

func (d *exportDecoder) moduleName() (string, error) {
	if d.dir.Name == 0 {
		return "", nil
	}
	offset, ok := d.resolver.offset(d.dir.Name)
	if !ok {
		return "", truncated("ExportDirectory.Name", uint64(d.dir.Name))
	}
	return d.img.cStringAt(offset, "ExportDirectory.Name")
}

func (dir *ExportDirectory) isForwarder(rva uint32) bool {
	return dir.DirectorySize != 0 && rva >= dir.DirectoryRVA && rva-dir.DirectoryRVA < dir.DirectorySize
}
