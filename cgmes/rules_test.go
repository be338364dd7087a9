package cgmes

import (
	"reflect"
	"strings"
	"testing"

	"gridflow/models"
)

func defaultRuleset() Ruleset {
	return DefaultRules(Tolerances{ReactiveSymmetry: 0.05})
}

func TestEvaluateFixtureViolations(t *testing.T) {
	net := parseFixture(t).Network()
	violations := Evaluate(net, defaultRuleset())

	want := []struct {
		rule  string
		asset string
	}{
		{RuleRegulatingControl, "Gen-B"},
		{RuleVoltageRegulationRange, "Gen-B"},
		{RuleGeneratingUnitLink, "Gen-B"},
		{RuleReactiveSymmetry, "Gen-B"},
		{RuleLineTerminals, "L2"},
		{RuleTerminalNode, "TL2"},
		{RuleLimitSetMembers, "OLS2"},
	}

	if len(violations) != len(want) {
		t.Fatalf("expected %d violations, got %d: %+v", len(want), len(violations), violations)
	}
	for i, w := range want {
		if violations[i].Rule != w.rule || violations[i].Asset != w.asset {
			t.Errorf("violation %d: expected %s on %s, got %s on %s",
				i, w.rule, w.asset, violations[i].Rule, violations[i].Asset)
		}
	}
}

// A broken asset's violations must stay contiguous: the report follows asset
// declaration order, not rule order.
func TestEvaluateAssetDeclarationOrder(t *testing.T) {
	broken := func(name string) models.Machine {
		return models.Machine{
			Name: name,
			MinQ: floatPtr(-10),
			MaxQ: floatPtr(10),
		}
	}
	net := &models.Network{
		Machines: []models.Machine{
			broken("M1"),
			{Name: "Slack", RegulatingControlRef: "#RC", GeneratingUnitRef: "#GU",
				ReferencePriority: intPtr(1), MinQ: floatPtr(-5), MaxQ: floatPtr(5)},
			broken("M2"),
		},
	}

	violations := Evaluate(net, defaultRuleset())

	// M1 and M2 each miss the regulating control and the unit link.
	if len(violations) != 4 {
		t.Fatalf("expected 4 violations, got %d: %+v", len(violations), violations)
	}
	wantAssets := []string{"M1", "M1", "M2", "M2"}
	for i, asset := range wantAssets {
		if violations[i].Asset != asset {
			t.Fatalf("violation %d on %s, want %s: report is not in asset declaration order (%+v)",
				i, violations[i].Asset, asset, violations)
		}
	}
	wantRules := []string{RuleRegulatingControl, RuleGeneratingUnitLink}
	for i, rule := range wantRules {
		if violations[i].Rule != rule || violations[i+2].Rule != rule {
			t.Errorf("unexpected rule order: %+v", violations)
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	net := parseFixture(t).Network()
	rules := defaultRuleset()

	first := Evaluate(net, rules)
	second := Evaluate(net, rules)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("violation list not stable across runs")
	}
}

func machineNet(machines ...models.Machine) *models.Network {
	return &models.Network{Machines: machines}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestSlackRule(t *testing.T) {
	rc := "#RC"
	gu := "#GU"
	base := func(name string, prio *int) models.Machine {
		return models.Machine{
			Name:                 name,
			RegulatingControlRef: rc,
			GeneratingUnitRef:    gu,
			ReferencePriority:    prio,
			MinQ:                 floatPtr(-10),
			MaxQ:                 floatPtr(10),
		}
	}

	// Exactly one slack: no violations.
	v := checkSlackReference(machineNet(base("A", intPtr(1)), base("B", nil)))
	if len(v) != 0 {
		t.Errorf("one slack: expected 0 violations, got %d", len(v))
	}

	// No slack: exactly one violation.
	v = checkSlackReference(machineNet(base("A", nil), base("B", intPtr(2))))
	if len(v) != 1 {
		t.Errorf("no slack: expected 1 violation, got %d", len(v))
	}

	// Two slacks: exactly one violation naming both.
	v = checkSlackReference(machineNet(base("A", intPtr(1)), base("B", intPtr(1))))
	if len(v) != 1 {
		t.Fatalf("two slacks: expected 1 violation, got %d", len(v))
	}
	if !strings.Contains(v[0].Description, "A") || !strings.Contains(v[0].Description, "B") {
		t.Errorf("violation should name both machines: %s", v[0].Description)
	}
}

func TestReactiveSymmetryRule(t *testing.T) {
	r := defaultRuleset()

	// Symmetric within tolerance.
	v := r.checkReactiveSymmetry(models.Machine{Name: "A", MinQ: floatPtr(-100), MaxQ: floatPtr(102)})
	if len(v) != 0 {
		t.Errorf("2%% asymmetry within 5%% tolerance flagged: %v", v)
	}

	// Outside tolerance.
	v = r.checkReactiveSymmetry(models.Machine{Name: "B", MinQ: floatPtr(-30), MaxQ: floatPtr(80)})
	if len(v) != 1 {
		t.Errorf("asymmetric limits not flagged")
	}

	// Missing limits are a violation, not an error.
	v = r.checkReactiveSymmetry(models.Machine{Name: "C"})
	if len(v) != 1 {
		t.Errorf("missing limits not flagged")
	}

	// Zero on both sides counts as symmetric.
	v = r.checkReactiveSymmetry(models.Machine{Name: "D", MinQ: floatPtr(0), MaxQ: floatPtr(0)})
	if len(v) != 0 {
		t.Errorf("zero limits flagged: %v", v)
	}
}

func transformer(ends ...models.TransformerEnd) models.Transformer {
	return models.Transformer{ID: "T", Ends: ends}
}

func TestWindingVoltageOrderRule(t *testing.T) {
	// 110kV primary to 10kV secondary: fine.
	v := checkWindingVoltageOrder(transformer(
		models.TransformerEnd{EndNumber: intPtr(1), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
		models.TransformerEnd{EndNumber: intPtr(2), BaseVoltageRef: "BV2", NominalVoltage: floatPtr(10)},
	))
	if len(v) != 0 {
		t.Errorf("decreasing voltages flagged: %v", v)
	}

	// Inverted: exactly one violation.
	v = checkWindingVoltageOrder(transformer(
		models.TransformerEnd{EndNumber: intPtr(1), BaseVoltageRef: "BV2", NominalVoltage: floatPtr(10)},
		models.TransformerEnd{EndNumber: intPtr(2), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
	))
	if len(v) != 1 {
		t.Fatalf("inverted voltages: expected 1 violation, got %d", len(v))
	}

	// Document order must not matter, only end numbers.
	v = checkWindingVoltageOrder(transformer(
		models.TransformerEnd{EndNumber: intPtr(2), BaseVoltageRef: "BV2", NominalVoltage: floatPtr(10)},
		models.TransformerEnd{EndNumber: intPtr(1), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
	))
	if len(v) != 0 {
		t.Errorf("end-number ordering not honored: %v", v)
	}

	// Equal voltages are not strictly decreasing.
	v = checkWindingVoltageOrder(transformer(
		models.TransformerEnd{EndNumber: intPtr(1), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
		models.TransformerEnd{EndNumber: intPtr(2), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
	))
	if len(v) != 1 {
		t.Errorf("equal voltages: expected 1 violation, got %d", len(v))
	}

	// Missing end number makes the order unverifiable.
	v = checkWindingVoltageOrder(transformer(
		models.TransformerEnd{BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
		models.TransformerEnd{EndNumber: intPtr(2), BaseVoltageRef: "BV2", NominalVoltage: floatPtr(10)},
	))
	if len(v) != 1 {
		t.Errorf("unverifiable order: expected 1 violation, got %d", len(v))
	}
}

func TestWindingCountRule(t *testing.T) {
	v := checkTransformer(transformer(
		models.TransformerEnd{EndNumber: intPtr(1), BaseVoltageRef: "BV1", NominalVoltage: floatPtr(110)},
	))
	if len(v) != 1 || v[0].Rule != RuleWindingCount {
		t.Errorf("single winding: expected 1 winding-count violation, got %+v", v)
	}
}

func TestSlackMachinesFixture(t *testing.T) {
	net := parseFixture(t).Network()
	slack := SlackMachines(net)
	if len(slack) != 1 || slack[0].Name != "Gen-A" {
		t.Errorf("unexpected slack machines: %+v", slack)
	}
}
