package value

// Module wraps a module's own global table (the original's
// ObjectType::Module); the VM's member access reads F.bar from it. Nothing
// in the compiler or VM constructs one: `import Foo` merges symbols into the
// current assembly's global space, and `import Foo as F` binds F to the
// module's name as a string.
type Module struct {
	hdr     Header
	Name    string
	Globals map[string]Value
}

func NewModule(name string) *Module {
	return &Module{hdr: NewHeader(VarModule, 64), Name: name, Globals: make(map[string]Value)}
}

func (m *Module) Header() *Header { return &m.hdr }
