package cgmes

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gridflow/models"
)

// Rule names as they appear in violation reports.
const (
	RuleRegulatingControl      = "machine-regulating-control"
	RuleVoltageRegulationRange = "machine-voltage-regulation-range"
	RuleGeneratingUnitLink     = "machine-generating-unit-link"
	RuleReactiveSymmetry       = "machine-reactive-symmetry"
	RuleSlackReference         = "slack-reference"
	RuleWindingCount           = "transformer-winding-count"
	RuleWindingBaseVoltage     = "transformer-base-voltage"
	RuleWindingVoltageOrder    = "transformer-voltage-order"
	RuleLineTerminals          = "line-terminals"
	RuleTerminalNode           = "terminal-topological-node"
	RuleLimitSetMembers        = "limit-set-members"
)

// Tolerances carries the numeric thresholds the rules need.
type Tolerances struct {
	// ReactiveSymmetry is the allowed relative asymmetry |maxQ+minQ| over
	// the larger magnitude before a machine's reactive limits are flagged.
	ReactiveSymmetry float64
}

// Ruleset is the consistency rule collection with its configured thresholds.
// Rules never short-circuit each other; each yields zero or more violations.
type Ruleset struct {
	Tolerances Tolerances
}

// DefaultRules returns the full rule set.
func DefaultRules(tol Tolerances) Ruleset {
	return Ruleset{Tolerances: tol}
}

// Evaluate runs every rule over the full network. Assets are visited in
// declaration order and each asset's violations stay contiguous, so the
// report reads top to bottom like the source file. The result is stable:
// identical input yields an identical ordered list.
func Evaluate(net *models.Network, rules Ruleset) []models.RuleViolation {
	var out []models.RuleViolation
	for _, m := range net.Machines {
		out = append(out, rules.checkMachine(m)...)
	}
	out = append(out, checkSlackReference(net)...)
	for _, t := range net.Transformers {
		out = append(out, checkTransformer(t)...)
	}
	for _, l := range net.Lines {
		out = append(out, checkLine(l)...)
	}
	for _, t := range net.Terminals {
		out = append(out, checkTerminal(t)...)
	}
	for _, s := range net.LimitSets {
		out = append(out, checkLimitSet(s)...)
	}
	return out
}

// SlackMachines returns the machines holding reference priority 1, in
// declaration order.
func SlackMachines(net *models.Network) []models.Machine {
	var out []models.Machine
	for _, m := range net.Machines {
		if m.ReferencePriority != nil && *m.ReferencePriority == 1 {
			out = append(out, m)
		}
	}
	return out
}

// MachineByName finds a synchronous machine by its IdentifiedObject name.
func MachineByName(net *models.Network, name string) (*models.Machine, bool) {
	for i := range net.Machines {
		if net.Machines[i].Name == name {
			return &net.Machines[i], true
		}
	}
	return nil, false
}

func machineLabel(m models.Machine) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

func (r Ruleset) checkMachine(m models.Machine) []models.RuleViolation {
	var out []models.RuleViolation
	if m.RegulatingControlRef == "" {
		out = append(out, models.RuleViolation{
			Rule:        RuleRegulatingControl,
			Asset:       machineLabel(m),
			Description: "generator without regulating control",
		})
	}
	if m.VoltageRegulationRange != nil && *m.VoltageRegulationRange == 0 {
		out = append(out, models.RuleViolation{
			Rule:        RuleVoltageRegulationRange,
			Asset:       machineLabel(m),
			Description: "generator has zero voltage regulation range",
		})
	}
	if m.GeneratingUnitRef == "" {
		out = append(out, models.RuleViolation{
			Rule:        RuleGeneratingUnitLink,
			Asset:       machineLabel(m),
			Description: "generator without GeneratingUnit link",
		})
	}
	out = append(out, r.checkReactiveSymmetry(m)...)
	return out
}

// checkReactiveSymmetry flags a machine whose reactive limits are not
// symmetric around zero within the relative tolerance. Missing limits are a
// violation, not an error, so the report stays complete on malformed input.
func (r Ruleset) checkReactiveSymmetry(m models.Machine) []models.RuleViolation {
	if m.MinQ == nil || m.MaxQ == nil {
		return []models.RuleViolation{{
			Rule:        RuleReactiveSymmetry,
			Asset:       machineLabel(m),
			Description: "generator reactive limits missing or non-numeric",
		}}
	}
	denom := math.Max(math.Abs(*m.MaxQ), math.Abs(*m.MinQ))
	if denom == 0 {
		return nil
	}
	tolerance := r.Tolerances.ReactiveSymmetry
	if asym := math.Abs(*m.MaxQ + *m.MinQ); asym/denom > tolerance {
		return []models.RuleViolation{{
			Rule:  RuleReactiveSymmetry,
			Asset: machineLabel(m),
			Description: fmt.Sprintf(
				"reactive limits not symmetric: minQ=%g maxQ=%g (asymmetry %.1f%% above %.1f%% tolerance)",
				*m.MinQ, *m.MaxQ, asym/denom*100, tolerance*100),
		}}
	}
	return nil
}

// checkSlackReference requires exactly one machine with reference priority
// 1. Zero or multiple slack candidates produce exactly one violation.
func checkSlackReference(net *models.Network) []models.RuleViolation {
	slack := SlackMachines(net)
	switch len(slack) {
	case 1:
		return nil
	case 0:
		return []models.RuleViolation{{
			Rule:        RuleSlackReference,
			Asset:       "network",
			Description: "no generator holds reference priority 1 (slack missing)",
		}}
	default:
		names := make([]string, len(slack))
		for i, m := range slack {
			names[i] = machineLabel(m)
		}
		return []models.RuleViolation{{
			Rule:        RuleSlackReference,
			Asset:       "network",
			Description: fmt.Sprintf("%d generators hold reference priority 1: %s", len(slack), strings.Join(names, ", ")),
		}}
	}
}

func checkTransformer(t models.Transformer) []models.RuleViolation {
	var out []models.RuleViolation
	if len(t.Ends) < 2 {
		out = append(out, models.RuleViolation{
			Rule:        RuleWindingCount,
			Asset:       t.ID,
			Description: "transformer with less than two windings",
		})
	}
	for _, end := range t.Ends {
		if end.BaseVoltageRef == "" || end.NominalVoltage == nil {
			out = append(out, models.RuleViolation{
				Rule:        RuleWindingBaseVoltage,
				Asset:       t.ID,
				Description: "transformer winding without resolvable BaseVoltage",
			})
		}
	}
	out = append(out, checkWindingVoltageOrder(t)...)
	return out
}

// checkWindingVoltageOrder requires nominal voltage to strictly decrease
// from the primary winding (endNumber 1) onwards.
func checkWindingVoltageOrder(t models.Transformer) []models.RuleViolation {
	type winding struct {
		number  int
		voltage float64
	}
	var windings []winding
	incomplete := false
	for _, end := range t.Ends {
		if end.EndNumber == nil {
			incomplete = true
			continue
		}
		if end.NominalVoltage == nil {
			// Reported by the base-voltage rule; ordering is undecidable.
			incomplete = true
			continue
		}
		windings = append(windings, winding{number: *end.EndNumber, voltage: *end.NominalVoltage})
	}
	if incomplete && len(t.Ends) >= 2 {
		return []models.RuleViolation{{
			Rule:        RuleWindingVoltageOrder,
			Asset:       t.ID,
			Description: "winding order not verifiable: missing end number or voltage",
		}}
	}
	if len(windings) < 2 {
		return nil
	}
	sort.Slice(windings, func(i, j int) bool { return windings[i].number < windings[j].number })
	for i := 1; i < len(windings); i++ {
		if windings[i].voltage >= windings[i-1].voltage {
			return []models.RuleViolation{{
				Rule:  RuleWindingVoltageOrder,
				Asset: t.ID,
				Description: fmt.Sprintf(
					"winding voltage not strictly decreasing: end %d at %gkV, end %d at %gkV",
					windings[i-1].number, windings[i-1].voltage,
					windings[i].number, windings[i].voltage),
			}}
		}
	}
	return nil
}

func checkLine(l models.LineSegment) []models.RuleViolation {
	if len(l.Terminals) == 0 {
		return []models.RuleViolation{{
			Rule:        RuleLineTerminals,
			Asset:       l.ID,
			Description: "line without terminals",
		}}
	}
	return nil
}

func checkTerminal(t models.GridTerminal) []models.RuleViolation {
	if t.TopologicalNodeRef == "" {
		return []models.RuleViolation{{
			Rule:        RuleTerminalNode,
			Asset:       t.ID,
			Description: "terminal without TopologicalNode",
		}}
	}
	return nil
}

func checkLimitSet(s models.LimitSet) []models.RuleViolation {
	if len(s.LimitRefs) == 0 {
		return []models.RuleViolation{{
			Rule:        RuleLimitSetMembers,
			Asset:       s.ID,
			Description: "OperationalLimitSet without limits",
		}}
	}
	return nil
}
