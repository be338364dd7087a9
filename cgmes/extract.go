package cgmes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"gridflow/models"
)

// Asset element queries, evaluated in document order.
var (
	qGeneratingUnits = mustPath("//cim:GeneratingUnit")
	qMachines        = mustPath("//cim:SynchronousMachine")
	qTransformers    = mustPath("//cim:PowerTransformer")
	qTransformerEnds = mustPath("//cim:PowerTransformerEnd")
	qBaseVoltages    = mustPath("//cim:BaseVoltage")
	qLines           = mustPath("//cim:ACLineSegment")
	qTerminals       = mustPath("//cim:Terminal")
	qLimitSets       = mustPath("//cim:OperationalLimitSet")
	qLimits          = mustPath("//cim:OperationalLimit")
	qLimitTypes      = mustPath("//cim:OperationalLimitType")
)

// Attribute queries, relative to their asset element.
var (
	qName            = mustPath("cim:IdentifiedObject.name")
	qMaxOperatingP   = mustPath("cim:GeneratingUnit.maxOperatingP")
	qVoltageRegRange = mustPath("cim:SynchronousMachine.voltageRegulationRange")
	qMachineType     = mustPath("cim:SynchronousMachine.type")
	qRefPriority     = mustPath("cim:SynchronousMachine.referencePriority")
	qMinQ            = mustPath("cim:SynchronousMachine.minQ")
	qMaxQ            = mustPath("cim:SynchronousMachine.maxQ")
	qRegControl      = mustPath("cim:RegulatingCondEq.RegulatingControl")
	qGenUnitRef      = mustPath("cim:RotatingMachine.GeneratingUnit")
	qEndTransformer  = mustPath("cim:PowerTransformerEnd.PowerTransformer")
	qEndNumber       = mustPath("cim:PowerTransformerEnd.endNumber")
	qEndBaseVoltage  = mustPath("cim:TransformerEnd.BaseVoltage")
	qNominalVoltage  = mustPath("cim:BaseVoltage.nominalVoltage")
	qTermEquipment   = mustPath("cim:Terminal.ConductingEquipment")
	qTermTopoNode    = mustPath("cim:Terminal.TopologicalNode")
	qSetTerminal     = mustPath("cim:OperationalLimitSet.Terminal")
	qSetLimits       = mustPath("cim:OperationalLimitSet.OperationalLimit")
	qLimitValue      = mustPath("cim:OperationalLimit.value")
	qLimitTypeRef    = mustPath("cim:OperationalLimit.OperationalLimitType")
	qLimitKind       = mustPath("cim:OperationalLimitType.kind")
)

// Network extracts the full asset collection from the document. Slices keep
// declaration order. Missing or non-numeric attributes become findings on
// the owning asset so a partially malformed file still yields a complete
// collection.
func (d *Document) Network() *models.Network {
	net := &models.Network{}

	nominalByBaseVoltage := d.baseVoltages()
	limitByID := d.operationalLimits()

	for _, n := range d.selectAll(qGeneratingUnits) {
		unit := models.GeneratingUnit{
			ID:   rdfID(n),
			Name: childText(n, qName),
		}
		unit.MaxOperatingP = floatField(n, qMaxOperatingP, "maxOperatingP", &unit.Findings)
		net.GeneratingUnits = append(net.GeneratingUnits, unit)
	}

	for _, n := range d.selectAll(qMachines) {
		m := models.Machine{
			ID:                   rdfID(n),
			Name:                 childText(n, qName),
			MachineType:          childResource(n, qMachineType),
			RegulatingControlRef: childResource(n, qRegControl),
			GeneratingUnitRef:    childResource(n, qGenUnitRef),
		}
		m.VoltageRegulationRange = floatField(n, qVoltageRegRange, "voltageRegulationRange", &m.Findings)
		m.MinQ = floatField(n, qMinQ, "minQ", &m.Findings)
		m.MaxQ = floatField(n, qMaxQ, "maxQ", &m.Findings)
		m.ReferencePriority = intField(n, qRefPriority, "referencePriority", &m.Findings)
		net.Machines = append(net.Machines, m)
	}

	endsByTransformer := make(map[string][]models.TransformerEnd)
	findingsByTransformer := make(map[string][]models.Finding)
	for _, n := range d.selectAll(qTransformerEnds) {
		ref := stripRef(childResource(n, qEndTransformer))
		if ref == "" {
			continue
		}
		end := models.TransformerEnd{
			ID:             rdfID(n),
			BaseVoltageRef: stripRef(childResource(n, qEndBaseVoltage)),
		}
		var endFindings []models.Finding
		end.EndNumber = intField(n, qEndNumber, "endNumber", &endFindings)
		if end.BaseVoltageRef != "" {
			if kv, ok := nominalByBaseVoltage[end.BaseVoltageRef]; ok {
				v := kv
				end.NominalVoltage = &v
			} else {
				endFindings = append(endFindings, models.Finding{
					Field:  "BaseVoltage",
					Detail: fmt.Sprintf("reference %s resolves to no BaseVoltage", end.BaseVoltageRef),
				})
			}
		}
		endsByTransformer[ref] = append(endsByTransformer[ref], end)
		findingsByTransformer[ref] = append(findingsByTransformer[ref], endFindings...)
	}

	for _, n := range d.selectAll(qTransformers) {
		id := rdfID(n)
		net.Transformers = append(net.Transformers, models.Transformer{
			ID:       id,
			Name:     childText(n, qName),
			Ends:     endsByTransformer[id],
			Findings: findingsByTransformer[id],
		})
	}

	for _, n := range d.selectAll(qTerminals) {
		net.Terminals = append(net.Terminals, models.GridTerminal{
			ID:                     rdfID(n),
			ConductingEquipmentRef: stripRef(childResource(n, qTermEquipment)),
			TopologicalNodeRef:     stripRef(childResource(n, qTermTopoNode)),
		})
	}

	for _, n := range d.selectAll(qLimitSets) {
		set := models.LimitSet{
			ID:          rdfID(n),
			TerminalRef: stripRef(childResource(n, qSetTerminal)),
		}
		for _, ref := range selectAllNodes(n, qSetLimits) {
			if r := rdfResource(ref); r != "" {
				set.LimitRefs = append(set.LimitRefs, stripRef(r))
			}
		}
		net.LimitSets = append(net.LimitSets, set)
	}

	terminalsByEquipment := make(map[string][]string)
	for _, t := range net.Terminals {
		if t.ConductingEquipmentRef != "" {
			terminalsByEquipment[t.ConductingEquipmentRef] = append(terminalsByEquipment[t.ConductingEquipmentRef], t.ID)
		}
	}
	setsByTerminal := make(map[string][]models.LimitSet)
	for _, s := range net.LimitSets {
		if s.TerminalRef != "" {
			setsByTerminal[s.TerminalRef] = append(setsByTerminal[s.TerminalRef], s)
		}
	}

	for _, n := range d.selectAll(qLines) {
		id := rdfID(n)
		line := models.LineSegment{
			ID:        id,
			Name:      childText(n, qName),
			Terminals: terminalsByEquipment[id],
		}
		for _, termID := range line.Terminals {
			for _, set := range setsByTerminal[termID] {
				for _, limitRef := range set.LimitRefs {
					if limit, ok := limitByID[limitRef]; ok {
						line.Limits = append(line.Limits, limit)
					} else {
						line.Findings = append(line.Findings, models.Finding{
							Field:  "OperationalLimit",
							Detail: fmt.Sprintf("reference %s resolves to no OperationalLimit", limitRef),
						})
					}
				}
			}
		}
		net.Lines = append(net.Lines, line)
	}

	return net
}

// baseVoltages maps BaseVoltage ids to their nominal voltage in kV.
func (d *Document) baseVoltages() map[string]float64 {
	out := make(map[string]float64)
	for _, n := range d.selectAll(qBaseVoltages) {
		id := rdfID(n)
		if id == "" {
			continue
		}
		raw := childText(n, qNominalVoltage)
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out[id] = v
		}
	}
	return out
}

// operationalLimits maps limit ids to resolved limits, with the limit kind
// looked up through the referenced OperationalLimitType.
func (d *Document) operationalLimits() map[string]models.OperationalLimit {
	kindByType := make(map[string]string)
	for _, n := range d.selectAll(qLimitTypes) {
		if id := rdfID(n); id != "" {
			kindByType[id] = childText(n, qLimitKind)
		}
	}

	out := make(map[string]models.OperationalLimit)
	for _, n := range d.selectAll(qLimits) {
		id := rdfID(n)
		if id == "" {
			continue
		}
		limit := models.OperationalLimit{
			Kind: kindByType[stripRef(childResource(n, qLimitTypeRef))],
		}
		if raw := childText(n, qLimitValue); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				limit.Value = &v
			}
		}
		out[id] = limit
	}
	return out
}

func selectAllNodes(n *xmlquery.Node, expr *xpath.Expr) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(n, expr)
}

// floatField extracts a numeric child element. A present but non-numeric
// value is recorded as a finding; absence yields nil without a finding so
// rules can decide whether the attribute was expected.
func floatField(n *xmlquery.Node, expr *xpath.Expr, field string, findings *[]models.Finding) *float64 {
	c := selectFirst(n, expr)
	if c == nil {
		return nil
	}
	raw := strings.TrimSpace(c.InnerText())
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*findings = append(*findings, models.Finding{
			Field:  field,
			Detail: fmt.Sprintf("non-numeric value '%s'", raw),
		})
		return nil
	}
	return &v
}

func intField(n *xmlquery.Node, expr *xpath.Expr, field string, findings *[]models.Finding) *int {
	c := selectFirst(n, expr)
	if c == nil {
		return nil
	}
	raw := strings.TrimSpace(c.InnerText())
	v, err := strconv.Atoi(raw)
	if err != nil {
		*findings = append(*findings, models.Finding{
			Field:  field,
			Detail: fmt.Sprintf("non-integer value '%s'", raw),
		})
		return nil
	}
	return &v
}
