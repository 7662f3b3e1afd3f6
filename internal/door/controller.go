package door

import (
	"context"
	"fmt"
	"time"
)

// Input is a limit switch. Asserted reports whether the switch is pressed,
// with any line polarity already applied.
type Input interface {
	Asserted() (bool, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Config holds the loop's timing and polarity. It is fixed for the
// controller's lifetime.
type Config struct {
	// PollInterval is the tick period.
	PollInterval time.Duration

	// ExpectedShutTime is the time for a full traverse.
	ExpectedShutTime time.Duration

	// Cooldown is the limit switch noise window.
	Cooldown time.Duration

	// PulseTicks is the press width in ticks.
	PulseTicks int

	// RestTicks is the rest width between reversing presses, in ticks.
	RestTicks int

	// ActiveLow inverts the coupler output.
	ActiveLow bool
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.ExpectedShutTime <= 0:
		return fmt.Errorf("%w: expected shut time must be positive", ErrInvalidConfig)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	case c.PulseTicks < 1:
		return fmt.Errorf("%w: pulse width must be at least one tick", ErrInvalidConfig)
	case c.RestTicks < 1:
		return fmt.Errorf("%w: rest width must be at least one tick", ErrInvalidConfig)
	}
	return nil
}

// Options configures a Controller.
type Options struct {
	Config Config

	CloseLimit Input
	OpenLimit  Input
	Coupler    Output

	// Logger is optional.
	Logger Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// OnApplied is called on the loop goroutine after each command is
	// planned. It must not block.
	OnApplied func(Applied)
}

// Applied describes a command the loop has taken from the mailbox.
type Applied struct {
	Command Command
	Presses int
	State   State
	At      time.Time
}

// Controller is the control loop. It is the only owner of the door state,
// the direction bookkeeping and the pulse queue.
//
// Submit, State and Subscribe are safe for concurrent use. Step and Run must
// be called from a single goroutine.
type Controller struct {
	cfg    Config
	timing Timing
	widths Widths

	closeLimit Input
	openLimit  Input
	driver     *Driver

	mailbox   Mailbox
	publisher *Publisher

	logger    Logger
	now       func() time.Time
	onApplied func(Applied)

	// Loop state, owned by the goroutine calling Step.
	state        State
	track        Tracking
	lastEstimate time.Time
}

// New creates a Controller and seeds its state from one read of the limit
// switches.
//
// Parameters:
//   - opts: timing, pins and optional logger and clock
//
// Returns:
//   - *Controller: ready to Run
//   - error: ErrMissingPin or ErrInvalidConfig
func New(opts Options) (*Controller, error) {
	if opts.CloseLimit == nil || opts.OpenLimit == nil || opts.Coupler == nil {
		return nil, ErrMissingPin
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        opts.Config,
		timing:     Timing{ExpectedShutTime: opts.Config.ExpectedShutTime, Cooldown: opts.Config.Cooldown},
		widths:     Widths{Pulse: opts.Config.PulseTicks, Rest: opts.Config.RestTicks},
		closeLimit: opts.CloseLimit,
		openLimit:  opts.OpenLimit,
		driver:     NewDriver(opts.Coupler, opts.Config.ActiveLow),
		logger:     opts.Logger,
		now:        opts.Now,
		onApplied:  opts.OnApplied,
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	limits, err := c.readLimits()
	if err != nil {
		c.logger.Warn("initial limit switch read failed", "error", err)
	}
	c.state, c.track = initialState(limits)
	c.lastEstimate = c.now()
	c.publisher = NewPublisher(c.state)

	c.logger.Info("door controller initialised",
		"status", c.state.Status,
		"position", c.state.Position,
	)
	return c, nil
}

// initialState derives the startup state from the first reading.
func initialState(limits Limits) (State, Tracking) {
	switch {
	case limits.Close && !limits.Open:
		return State{Status: StatusClosed, Setpoint: SetpointClosed, Position: 0}, Tracking{Direction: DirectionDown}
	case limits.Open && !limits.Close:
		return State{Status: StatusOpen, Setpoint: SetpointOpen, Position: 1}, Tracking{Direction: DirectionUp}
	default:
		return State{Status: StatusAjar, Setpoint: SetpointAjar, Position: 0.5}, Tracking{}
	}
}

// Submit normalises cmd and deposits it in the mailbox. An unconsumed
// earlier command is discarded.
func (c *Controller) Submit(cmd Command) error {
	cmd, err := ParseCommand(string(cmd))
	if err != nil {
		return err
	}
	if c.mailbox.Put(cmd) {
		c.logger.Debug("pending command superseded", "command", cmd)
	}
	return nil
}

// State returns the most recently published state.
func (c *Controller) State() State {
	return c.publisher.Current()
}

// Subscribe returns a feed of published states, starting with the current one.
func (c *Controller) Subscribe() *Subscription {
	return c.publisher.Subscribe()
}

// Step runs one tick at time now and returns the resulting state.
//
// I/O failures are logged and skipped for this tick only.
func (c *Controller) Step(now time.Time) State {
	if limits, err := c.readLimits(); err != nil {
		c.logger.Debug("limit switch read failed", "error", err)
	} else {
		c.state, c.track = Estimate(limits, c.state, c.track, now.Sub(c.lastEstimate), now, c.timing)
		c.lastEstimate = now
	}

	if cmd, ok := c.mailbox.Take(); ok {
		c.apply(cmd, now)
	}

	if err := c.driver.Tick(); err != nil {
		c.logger.Debug("coupler write failed", "error", err)
	}

	prev := c.publisher.Current()
	if c.publisher.Publish(c.state) && (prev.Status != c.state.Status || prev.Setpoint != c.state.Setpoint) {
		c.logger.Info("door state changed",
			"status", c.state.Status,
			"setpoint", c.state.Setpoint,
			"position", c.state.Position,
		)
	}
	return c.state
}

func (c *Controller) apply(cmd Command, now time.Time) {
	plan, err := PlanCommand(cmd, c.state, c.track, c.widths, now)
	if err != nil {
		c.logger.Warn("command rejected", "command", cmd, "error", err)
		return
	}

	c.state = plan.State
	c.track = plan.Tracking
	c.driver.Enqueue(plan.Events...)

	c.logger.Info("command planned",
		"command", cmd,
		"presses", plan.Presses,
		"direction", c.track.Direction.String(),
	)

	if c.onApplied != nil {
		c.onApplied(Applied{Command: cmd, Presses: plan.Presses, State: plan.State, At: now})
	}
}

// Run ticks every PollInterval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Step(c.now())
		}
	}
}

func (c *Controller) readLimits() (Limits, error) {
	closed, err := c.closeLimit.Asserted()
	if err != nil {
		return Limits{}, fmt.Errorf("reading close limit: %w", err)
	}
	open, err := c.openLimit.Asserted()
	if err != nil {
		return Limits{}, fmt.Errorf("reading open limit: %w", err)
	}
	return Limits{Close: closed, Open: open}, nil
}
