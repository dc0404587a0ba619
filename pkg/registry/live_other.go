//go:build !windows

package registry

// Live stands in for the machine registry on platforms that have none.
type Live struct{}

// NewLive returns a registry whose every key is ErrUnsupported.
func NewLive() Registry {
	return Live{}
}

// OpenKey always fails with ErrUnsupported.
func (Live) OpenKey(Hive, string) (Key, error) {
	return nil, ErrUnsupported
}
