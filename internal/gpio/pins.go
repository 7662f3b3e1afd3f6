package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/elliotnash/piopener/internal/door"
)

// Config holds the line assignment for one door.
type Config struct {
	Chip          string
	CloseLimitPin int
	OpenLimitPin  int
	CouplerPin    int

	// LimitActiveLow reports a low line as an asserted switch.
	LimitActiveLow bool

	// CouplerActiveLow drives the relay by pulling the line low. Only used
	// here to request the coupler at its inactive level; the controller
	// applies the polarity for every later write.
	CouplerActiveLow bool

	// LimitDebounce enables kernel debouncing on the limit inputs when
	// non-zero.
	LimitDebounce time.Duration
}

func (c Config) validate() error {
	pins := []int{c.CloseLimitPin, c.OpenLimitPin, c.CouplerPin}
	for i, p := range pins {
		if p < 0 {
			return fmt.Errorf("gpio: negative pin %d", p)
		}
		for _, q := range pins[i+1:] {
			if p == q {
				return fmt.Errorf("%w: %d", ErrDuplicatePin, p)
			}
		}
	}
	return nil
}

// Pins is the set of capabilities the controller needs.
type Pins struct {
	CloseLimit door.Input
	OpenLimit  door.Input
	Coupler    door.Output

	closers []func() error
}

// Close releases the underlying lines.
func (p *Pins) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
