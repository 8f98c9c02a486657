package value

// Protocol is a conformance contract (spec §9: "not an inheritance axis"):
// a name plus required method and property names. InheritedProtocols lists
// the protocols this one extends, as declared; nothing flattens them
// transitively or checks conformance against them.
type Protocol struct {
	hdr                  Header
	Name                 string
	RequiredMethods      []string
	RequiredProperties   []string
	InheritedProtocols   []string
}

func NewProtocol(name string) *Protocol {
	return &Protocol{hdr: NewHeader(VarProtocol, 64), Name: name}
}

func (p *Protocol) Header() *Header { return &p.hdr }
