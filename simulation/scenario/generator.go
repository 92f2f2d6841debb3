// Package scenario deterministically derives business events from the
// simulated calendar position and manages injected issues.
//
// Volume scales with a base-rate table indexed by day-of-week theme and an
// hour-of-day multiplier; the actual count per tick is
// round(base × hourMultiplier × jitter) with jitter drawn uniformly from
// [JitterMin, JitterMax]. The random source is seedable so tests can
// reproduce a full tick sequence exactly.
package scenario

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// Generator produces event descriptors for one simulated hour at a time.
//
// It is stateful across calls: the random source advances with every tick
// and issues persist until resolved or Reset. Safe for concurrent use,
// though in production only the orchestrator's drive loop calls it.
//
// Active issues are kept in creation order so that the seeded random draws
// are consumed in a reproducible order.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	issues []simulation.Issue
}

// NewGenerator creates a Generator seeded for reproducible output.
// Two generators built from the same seed produce identical tick
// sequences when driven with identical inputs.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // simulation variability, not cryptography
	}
}

// Tick generates the event descriptors for one simulated hour: at most one
// descriptor per priority tier, each carrying the tier's target count.
// It also fires the issue rules for this calendar position and gives
// active issues a resolution chance during recovery hours.
func (g *Generator) Tick(simDay simulation.SimDayInt, simHour simulation.SimHourInt, occurredAt time.Time) (simulation.EventDescriptors, error) {
	if simDay < 1 || simDay > 7 {
		return nil, simulation.ErrSimDayOutOfRange
	}

	if simHour < 0 || simHour > 23 {
		return nil, simulation.ErrSimHourOutOfRange
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.fireIssueRules(simDay, simHour)
	g.resolveRecoveringIssues(simHour)

	theme := ThemeForDay(simDay)
	category := themeCategory[theme]
	hourMult := hourMultipliers[simHour]

	var descriptors simulation.EventDescriptors

	for _, tier := range []simulation.Priority{
		simulation.PriorityLow,
		simulation.PriorityNormal,
		simulation.PriorityHigh,
		simulation.PriorityCritical,
	} {
		jitter := JitterMin + g.rng.Float64()*(JitterMax-JitterMin)
		count := int(math.Round(baseRates[theme][tier] * hourMult * jitter))

		if count <= 0 {
			continue
		}

		descriptor, err := simulation.BuildEventDescriptor(
			g.boostedPriority(tier, category),
			category,
			count,
			simDay,
			simHour,
			occurredAt,
		)
		if err != nil {
			return nil, err
		}

		descriptors = append(descriptors, descriptor)
	}

	return descriptors, nil
}

// ActiveIssues returns a copy of all currently active issues in creation order.
func (g *Generator) ActiveIssues() []simulation.Issue {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]simulation.Issue(nil), g.issues...)
}

// ActiveIssueCount returns the number of currently active issues.
func (g *Generator) ActiveIssueCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.issues)
}

// ResolveIssue marks the issue with the given ID as resolved and removes it
// from the active set. The resolved issue is returned with its status
// updated; the second return is false if no such active issue exists.
func (g *Generator) ResolveIssue(id uuid.UUID) (simulation.Issue, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, issue := range g.issues {
		if issue.ID == id {
			issue.Status = simulation.IssueResolved
			g.issues = append(g.issues[:i], g.issues[i+1:]...)

			return issue, true
		}
	}

	return simulation.Issue{}, false
}

// InjectIssue registers an externally created issue, mainly used by tests
// to place the generator in a known state.
func (g *Generator) InjectIssue(issue simulation.Issue) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.issues = append(g.issues, issue)
}

// Reset clears all active issues. The random source is deliberately left
// untouched so production runs keep advancing through the seed sequence
// across cycle resets.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.issues = nil
}

// fireIssueRules must be called with the mutex held.
func (g *Generator) fireIssueRules(simDay simulation.SimDayInt, simHour simulation.SimHourInt) {
	for _, rule := range issueRules {
		if rule.day != simDay || rule.hour != simHour {
			continue
		}

		if g.rng.Float64() < rule.probability {
			g.issues = append(g.issues, simulation.NewIssue(rule.category, rule.severity, simDay, simHour))
		}
	}
}

// resolveRecoveringIssues must be called with the mutex held.
func (g *Generator) resolveRecoveringIssues(simHour simulation.SimHourInt) {
	if !recoveryHours[simHour] {
		return
	}

	remaining := g.issues[:0]
	for _, issue := range g.issues {
		if g.rng.Float64() < IssueResolutionChance {
			continue
		}

		remaining = append(remaining, issue)
	}

	g.issues = remaining
}

// boostedPriority raises the tier by the boost of every active issue that
// affects the category: an issue boosts its own category, and a critical
// incident boosts all categories. The result is capped at critical.
// Must be called with the mutex held.
func (g *Generator) boostedPriority(tier simulation.Priority, category string) simulation.Priority {
	boosted := tier

	for _, issue := range g.issues {
		if issue.Category == category || issue.Severity == simulation.SeverityCriticalIncident {
			boosted += simulation.Priority(issue.PriorityBoost)
		}
	}

	if boosted > simulation.PriorityCritical {
		boosted = simulation.PriorityCritical
	}

	return boosted
}
