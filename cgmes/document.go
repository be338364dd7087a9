package cgmes

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"gridflow/logger"
)

// Namespaces of the CIM100 equipment profile.
const (
	cimNamespace = "http://iec.ch/TC57/CIM100#"
	rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

var namespaces = map[string]string{
	"cim": cimNamespace,
	"rdf": rdfNamespace,
}

// Document wraps a parsed EQ-profile tree and owns all XPath navigation
// over it. The tree is read-only once parsed.
type Document struct {
	root *xmlquery.Node
	log  *logger.Log
}

// Load reads and parses a CGMES model file.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}
	return doc, nil
}

// Parse builds a Document from an XML stream.
func Parse(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse model document: %w", err)
	}
	return &Document{root: root, log: logger.GetLogger()}, nil
}

// mustPath compiles a fixed namespace-qualified XPath expression. All
// expressions are package constants, so a compile failure is a programming
// error.
func mustPath(expr string) *xpath.Expr {
	e, err := xpath.CompileWithNS(expr, namespaces)
	if err != nil {
		panic(fmt.Sprintf("invalid xpath %q: %v", expr, err))
	}
	return e
}

func (d *Document) selectAll(expr *xpath.Expr) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(d.root, expr)
}

func selectFirst(n *xmlquery.Node, expr *xpath.Expr) *xmlquery.Node {
	return xmlquery.QuerySelector(n, expr)
}

// rdfID returns the rdf:ID (or rdf:about) identifier of an element.
func rdfID(n *xmlquery.Node) string {
	for _, a := range n.Attr {
		if a.Name.Local == "ID" {
			return a.Value
		}
	}
	for _, a := range n.Attr {
		if a.Name.Local == "about" {
			return strings.TrimPrefix(a.Value, "#")
		}
	}
	return ""
}

// rdfResource returns the rdf:resource reference of an element, or "".
func rdfResource(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local == "resource" {
			return a.Value
		}
	}
	return ""
}

// stripRef turns an intra-document reference "#id" into "id".
func stripRef(ref string) string {
	return strings.TrimPrefix(ref, "#")
}

func childText(n *xmlquery.Node, expr *xpath.Expr) string {
	c := selectFirst(n, expr)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.InnerText())
}

func childResource(n *xmlquery.Node, expr *xpath.Expr) string {
	return rdfResource(selectFirst(n, expr))
}

var qAnyLimitElement = xpath.MustCompile("//*[contains(local-name(), 'Limit')]")

// LimitElementNames returns the sorted unique local names of all elements
// whose name contains "Limit". Handy for surveying which limit profiles a
// model actually carries.
func (d *Document) LimitElementNames() []string {
	seen := make(map[string]struct{})
	for _, n := range xmlquery.QuerySelectorAll(d.root, qAnyLimitElement) {
		seen[n.Data] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
