// Package coresvc carries cross-cutting service metadata and observation
// hooks shared by every domain service, independent of their individual
// business logic.
package coresvc

// Layer describes the architectural slice a service belongs to.
type Layer string

const (
	LayerIngress Layer = "ingress"
	LayerEngine  Layer = "engine"
	LayerLedger  Layer = "ledger"
	LayerChain   Layer = "chain"
)

// Descriptor advertises a service's placement and capabilities for
// operational introspection; it never changes runtime behavior.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
