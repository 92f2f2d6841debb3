package scenario

// rates.go - All configurable parameters for scenario generation.
// Centralized tables for easy experimentation and tuning.

import (
	"github.com/Hburdack/happy-button-sub001/simulation"
)

// Theme selects the traffic profile of a simulated business day.
// Five weekday themes cycle over the 7-day business week, so the weekend
// days 6 and 7 reuse the Monday and Tuesday profiles.
type Theme int

const (
	SteadyStart   Theme = iota // Monday: the week ramps up.
	OrderSurge                 // Tuesday: peak customer-order intake.
	InvoiceRun                 // Wednesday: billing day, invoice traffic dominates.
	SupportWave                // Thursday: complaint and support backlog surfaces.
	WeekClearance              // Friday: low-priority cleanup before the weekend.
)

// ThemeForDay maps a simulated day (1..7) to its cycling weekday theme.
func ThemeForDay(simDay simulation.SimDayInt) Theme {
	return Theme((simDay - 1) % 5)
}

// String returns the lowercase name used in logs and event categories.
func (t Theme) String() string {
	switch t {
	case SteadyStart:
		return "steady-start"
	case OrderSurge:
		return "order-surge"
	case InvoiceRun:
		return "invoice-run"
	case SupportWave:
		return "support-wave"
	case WeekClearance:
		return "week-clearance"
	default:
		return "unknown"
	}
}

const (
	// CategoryCustomerOrder covers inbound order mails.
	CategoryCustomerOrder = "customer-order"

	// CategoryInvoice covers billing and payment mails.
	CategoryInvoice = "invoice"

	// CategorySupport covers complaints and support requests.
	CategorySupport = "support"

	// CategoryNewsletter covers outbound bulk mailings.
	CategoryNewsletter = "newsletter"

	// CategoryInternalOps covers internal coordination traffic.
	CategoryInternalOps = "internal-ops"
)

// themeCategory is the dominant event category of each theme.
var themeCategory = map[Theme]string{
	SteadyStart:   CategoryInternalOps,
	OrderSurge:    CategoryCustomerOrder,
	InvoiceRun:    CategoryInvoice,
	SupportWave:   CategorySupport,
	WeekClearance: CategoryNewsletter,
}

// baseRates holds the target event volume per priority tier for one
// simulated hour at multiplier 1.0, indexed by theme.
var baseRates = map[Theme]map[simulation.Priority]float64{
	SteadyStart: {
		simulation.PriorityCritical: 0.6,
		simulation.PriorityHigh:     2.0,
		simulation.PriorityNormal:   8.0,
		simulation.PriorityLow:      4.0,
	},
	OrderSurge: {
		simulation.PriorityCritical: 1.2,
		simulation.PriorityHigh:     4.5,
		simulation.PriorityNormal:   12.0,
		simulation.PriorityLow:      3.0,
	},
	InvoiceRun: {
		simulation.PriorityCritical: 0.8,
		simulation.PriorityHigh:     3.0,
		simulation.PriorityNormal:   10.0,
		simulation.PriorityLow:      5.0,
	},
	SupportWave: {
		simulation.PriorityCritical: 2.0,
		simulation.PriorityHigh:     5.0,
		simulation.PriorityNormal:   9.0,
		simulation.PriorityLow:      3.0,
	},
	WeekClearance: {
		simulation.PriorityCritical: 0.5,
		simulation.PriorityHigh:     1.5,
		simulation.PriorityNormal:   6.0,
		simulation.PriorityLow:      7.0,
	},
}

// hourMultipliers scales the base rate by hour of day: a morning peak
// around 09-11, an afternoon peak around 14-16, a lighter evening band,
// and a night trough.
var hourMultipliers = [24]float64{
	0.2, 0.2, 0.2, 0.2, 0.2, 0.2, // 00-05 night trough
	0.6, 0.7, 0.9, // 06-08 ramp-up
	1.5, 1.5, 1.4, // 09-11 morning peak
	1.0, 1.0, // 12-13 lunch plateau
	1.3, 1.3, 1.2, // 14-16 afternoon peak
	1.1, 1.0, 0.9, // 17-19 evening band
	0.5, 0.4, 0.3, 0.2, // 20-23 wind-down
}

const (
	// JitterMin and JitterMax bound the uniform per-tick volume jitter.
	JitterMin = 0.7
	JitterMax = 1.3

	// IssueResolutionChance is the probability that one active issue
	// resolves on its own during a recovery hour.
	IssueResolutionChance = 0.25
)

// recoveryHours are the hours at which active issues get a chance to
// resolve without an explicit call.
var recoveryHours = map[simulation.SimHourInt]bool{8: true, 13: true, 18: true}

// issueRule fires a new Issue with the given probability when the
// generator ticks at exactly (day, hour).
type issueRule struct {
	day         simulation.SimDayInt
	hour        simulation.SimHourInt
	probability float64
	category    string
	severity    simulation.IssueSeverity
}

var issueRules = []issueRule{
	{day: 1, hour: 9, probability: 0.15, category: CategoryInternalOps, severity: simulation.SeverityMinor},
	{day: 2, hour: 10, probability: 0.20, category: CategoryCustomerOrder, severity: simulation.SeverityMajor},
	{day: 3, hour: 14, probability: 0.15, category: CategoryInvoice, severity: simulation.SeverityMajor},
	{day: 4, hour: 11, probability: 0.25, category: CategorySupport, severity: simulation.SeverityCriticalIncident},
	{day: 5, hour: 16, probability: 0.10, category: CategoryNewsletter, severity: simulation.SeverityMinor},
}
