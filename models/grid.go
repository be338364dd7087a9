package models

import "time"

// Finding records an attribute that could not be extracted as expected
// (missing element, non-numeric text). Findings ride on the asset so a
// partially malformed file still yields a complete collection.
type Finding struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// GeneratingUnit is a cim:GeneratingUnit with its maximum operating power.
type GeneratingUnit struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MaxOperatingP *float64 `json:"max_operating_p_mw,omitempty"`
	Findings      []Finding `json:"findings,omitempty"`
}

// Machine is a cim:SynchronousMachine and the attributes the rules inspect.
type Machine struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	MachineType            string    `json:"machine_type,omitempty"`
	VoltageRegulationRange *float64  `json:"voltage_regulation_range,omitempty"`
	RegulatingControlRef   string    `json:"regulating_control_ref,omitempty"`
	GeneratingUnitRef      string    `json:"generating_unit_ref,omitempty"`
	ReferencePriority      *int      `json:"reference_priority,omitempty"`
	MinQ                   *float64  `json:"min_q_mvar,omitempty"`
	MaxQ                   *float64  `json:"max_q_mvar,omitempty"`
	Findings               []Finding `json:"findings,omitempty"`
}

// TransformerEnd is one winding of a power transformer. NominalVoltage is
// resolved through the referenced BaseVoltage.
type TransformerEnd struct {
	ID             string   `json:"id"`
	EndNumber      *int     `json:"end_number,omitempty"`
	BaseVoltageRef string   `json:"base_voltage_ref,omitempty"`
	NominalVoltage *float64 `json:"nominal_voltage_kv,omitempty"`
}

// Transformer is a cim:PowerTransformer with its windings in document order.
type Transformer struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Ends     []TransformerEnd `json:"ends"`
	Findings []Finding        `json:"findings,omitempty"`
}

// OperationalLimit is a resolved limit attached to a line terminal.
type OperationalLimit struct {
	Kind  string   `json:"kind,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// LineSegment is a cim:ACLineSegment with its terminals and limits.
type LineSegment struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Terminals []string           `json:"terminals"`
	Limits    []OperationalLimit `json:"limits,omitempty"`
	Findings  []Finding          `json:"findings,omitempty"`
}

// GridTerminal is a cim:Terminal connection point.
type GridTerminal struct {
	ID                     string `json:"id"`
	ConductingEquipmentRef string `json:"conducting_equipment_ref,omitempty"`
	TopologicalNodeRef     string `json:"topological_node_ref,omitempty"`
}

// LimitSet is a cim:OperationalLimitSet with the limits it references.
type LimitSet struct {
	ID          string   `json:"id"`
	TerminalRef string   `json:"terminal_ref,omitempty"`
	LimitRefs   []string `json:"limit_refs,omitempty"`
}

// Network is the asset collection extracted from one EQ-profile document.
// Slices preserve declaration order in the source file.
type Network struct {
	GeneratingUnits []GeneratingUnit `json:"generating_units"`
	Machines        []Machine        `json:"machines"`
	Transformers    []Transformer    `json:"transformers"`
	Lines           []LineSegment    `json:"lines"`
	Terminals       []GridTerminal   `json:"terminals"`
	LimitSets       []LimitSet       `json:"limit_sets"`
}

// RuleViolation is one finding of a consistency rule. Violations are data,
// not errors; they are collected and reported, never returned as an error.
type RuleViolation struct {
	Rule        string `json:"rule"`
	Asset       string `json:"asset"`
	Description string `json:"description"`
}

// ModelReport is the violation report for one model assessment run.
type ModelReport struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	ModelPath   string          `json:"model_path"`
	Violations  []RuleViolation `json:"violations"`
}
