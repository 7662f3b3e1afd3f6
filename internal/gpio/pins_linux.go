//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "piopener"

// Open requests the three door lines from the configured chip.
//
// Parameters:
//   - cfg: chip name, line offsets and polarity
//
// Returns:
//   - *Pins: limit inputs and coupler output; call Close to release them
//   - error: if any line cannot be requested
func Open(cfg Config) (*Pins, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	inputOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer),
	}
	if cfg.LimitActiveLow {
		inputOpts = append(inputOpts, gpiocdev.AsActiveLow)
	}
	if cfg.LimitDebounce > 0 {
		inputOpts = append(inputOpts, gpiocdev.WithDebounce(cfg.LimitDebounce))
	}

	pins := &Pins{}

	closeLine, err := gpiocdev.RequestLine(cfg.Chip, cfg.CloseLimitPin, inputOpts...)
	if err != nil {
		return nil, fmt.Errorf("requesting close limit line %d: %w", cfg.CloseLimitPin, err)
	}
	pins.closers = append(pins.closers, closeLine.Close)

	openLine, err := gpiocdev.RequestLine(cfg.Chip, cfg.OpenLimitPin, inputOpts...)
	if err != nil {
		_ = pins.Close()
		return nil, fmt.Errorf("requesting open limit line %d: %w", cfg.OpenLimitPin, err)
	}
	pins.closers = append(pins.closers, openLine.Close)

	inactive := 0
	if cfg.CouplerActiveLow {
		inactive = 1
	}
	couplerLine, err := gpiocdev.RequestLine(cfg.Chip, cfg.CouplerPin,
		gpiocdev.AsOutput(inactive),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		_ = pins.Close()
		return nil, fmt.Errorf("requesting coupler line %d: %w", cfg.CouplerPin, err)
	}
	pins.closers = append(pins.closers, couplerLine.Close)

	pins.CloseLimit = &lineInput{line: closeLine}
	pins.OpenLimit = &lineInput{line: openLine}
	pins.Coupler = &lineOutput{line: couplerLine}
	return pins, nil
}

// lineInput reads a limit switch. Polarity is handled by the line request.
type lineInput struct {
	line *gpiocdev.Line
}

func (in *lineInput) Asserted() (bool, error) {
	v, err := in.line.Value()
	if err != nil {
		return false, fmt.Errorf("reading line %d: %w", in.line.Offset(), err)
	}
	return v == 1, nil
}

type lineOutput struct {
	line *gpiocdev.Line
}

func (out *lineOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := out.line.SetValue(v); err != nil {
		return fmt.Errorf("writing line %d: %w", out.line.Offset(), err)
	}
	return nil
}
