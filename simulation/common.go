package simulation

import (
	"errors"
)

var ErrInvalidSpeedLevel = errors.New("speed level is not defined in the speed table")
var ErrInvalidSpeedTable = errors.New("speed table multipliers must start at 1 and be strictly increasing")
var ErrInvalidRateLimit = errors.New("rate limit ceilings must be positive")
var ErrNilSender = errors.New("nil sender supplied")

// ErrTransientDelivery marks a delivery failure that may succeed on retry,
// for example a temporarily unreachable collaborator. Senders wrap it with
// fmt.Errorf("...: %w", ErrTransientDelivery) so the dispatcher can classify
// the failure with errors.Is.
var ErrTransientDelivery = errors.New("transient delivery failure")

// ErrTerminalDelivery marks a delivery failure that will never succeed,
// for example a permanent rejection by the collaborator. The dispatcher
// drops such items immediately without retrying.
var ErrTerminalDelivery = errors.New("terminal delivery failure")

// SimDayInt is a type alias for int, representing a simulated day of the business week (1..7).
type SimDayInt = int

// SimHourInt is a type alias for int, representing a simulated hour of the day (0..23).
type SimHourInt = int
