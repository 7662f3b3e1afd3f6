//go:build !linux

package gpio

// Open returns ErrNotSupported on non-linux platforms. Use the Simulator.
func Open(cfg Config) (*Pins, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return nil, ErrNotSupported
}
