//go:build !windows

package pe

// LoadedModule is only available on windows.
type LoadedModule struct{}

func LoadModule(filename string) (*LoadedModule, error) {
	return nil, ErrUnsupportedPlatform
}

func (m *LoadedModule) Image() RawImage { return RawImage{Mode: ModeLoaded} }

func (m *LoadedModule) Close() error { return nil }
