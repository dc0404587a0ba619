//go:build !windows

package msi

type unsupportedOpener struct{}

// NewOpener returns an opener that always fails off Windows.
func NewOpener() DatabaseOpener {
	return unsupportedOpener{}
}

func (unsupportedOpener) Open(string) (Database, error) {
	return nil, ErrUnsupported
}
