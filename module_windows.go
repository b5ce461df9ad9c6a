//go:build windows

package pe

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// LoadedModule is a DLL loaded into the current process. References are not
// resolved and DllMain is not run. Call Close to unload it.
type LoadedModule struct {
	h    windows.Handle
	base uintptr
	data []byte
}

// LoadModule loads filename with LoadLibraryEx and exposes its mapped image.
func LoadModule(filename string) (*LoadedModule, error) {
	h, err := windows.LoadLibraryEx(filename, 0, windows.DONT_RESOLVE_DLL_REFERENCES)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", filename)
	}

	var modInfo windows.ModuleInfo
	if err := windows.GetModuleInformation(
		windows.CurrentProcess(),
		h,
		&modInfo,
		uint32(unsafe.Sizeof(modInfo)),
	); err != nil {
		windows.FreeLibrary(h)
		return nil, errors.Wrap(err, "querying module handle")
	}

	base := modInfo.BaseOfDll
	return &LoadedModule{
		h:    h,
		base: base,
		data: unsafe.Slice((*byte)(unsafe.Pointer(base)), modInfo.SizeOfImage),
	}, nil
}

// Image returns a view of the module's memory. It is only valid until Close.
func (m *LoadedModule) Image() RawImage {
	return NewLoadedImage(uint64(m.base), m.data)
}

func (m *LoadedModule) Close() error {
	if m.h == 0 {
		return nil
	}
	m.data = nil
	err := windows.FreeLibrary(m.h)
	m.h = 0
	return err
}
