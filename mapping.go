package pe

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// MappedFile is a read-only memory mapping of a PE file.
// Call Close when the image is no longer needed.
type MappedFile struct {
	f    *os.File
	m    mmap.MMap
	mode Mode
}

// OpenMapped maps filename into memory. mode is ModeFile for ordinary files
// on disk or ModeMapped for files that already hold an image laid out by
// RVA, such as a memory dump.
func OpenMapped(filename string, mode Mode) (*MappedFile, error) {
	if mode == ModeLoaded {
		return nil, errors.Errorf("cannot map %s in %s mode", filename, mode)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	mf := &MappedFile{f: f, mode: mode}
	// mmap refuses empty files; an empty view decodes as truncated anyway
	if stat.Size() == 0 {
		return mf, nil
	}

	mf.m, err = mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mapping %s", filename)
	}
	return mf, nil
}

// Image returns a view of the mapping. It is only valid until Close.
func (mf *MappedFile) Image() RawImage {
	return RawImage{Data: mf.m, Mode: mf.mode}
}

func (mf *MappedFile) Close() error {
	var err error
	if mf.m != nil {
		err = mf.m.Unmap()
		mf.m = nil
	}
	if mf.f != nil {
		if cerr := mf.f.Close(); err == nil {
			err = cerr
		}
		mf.f = nil
	}
	return err
}
