package pe

const (
	ImageDOSSignature   = 0x5A4D // MZ
	ImageDOSZMSignature = 0x4D5A // ZM
)

const ImageNTHeaderSignature = 0x00004550

const (
	ImageNtOptionalHdr32Magic = 0x10b
	ImageNtOptionalHdr64Magic = 0x20b
)

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport        = 0
	ImageDirectoryEntryImport        = 1
	ImageDirectoryEntryResource      = 2
	ImageDirectoryEntryException     = 3
	ImageDirectoryEntrySecurity      = 4
	ImageDirectoryEntryBaseReLoc     = 5
	ImageDirectoryEntryDebug         = 6
	ImageDirectoryEntryArchitecture  = 7
	ImageDirectoryEntryGlobalPtr     = 8
	ImageDirectoryEntryTls           = 9
	ImageDirectoryEntryLoadConfig    = 10
	ImageDirectoryEntryBoundImport   = 11
	ImageDirectoryEntryIat           = 12
	ImageDirectoryEntryDelayImport   = 13
	ImageDirectoryEntryComDescriptor = 14
)

const maxOrdinal = 0xFFFF

var (
	DOSHeaderSize       = 64
	FileHeaderSize      = 20
	SectionHeaderSize   = 40
	ExportDirectorySize = 40
	DataDirectorySize   = 8
)

// offset of e_lfanew inside the DOS header
const dosLfanewOffset = 0x3C

// the loader rounds PointerToRawData down to this when FileAlignment is at
// least as large
const fileAlignmentHardcodedValue = 0x200
