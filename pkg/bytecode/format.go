// This file implements the on-disk assembly format from spec §6.4:
//
//	Magic 'SSAS' | verMajor u16 | verMinor u16 | body
//
// The body is: the primary chunk (code bytes, line vector, scalar constants
// vector, string table, function table with recursively nested chunks,
// protocol table); then the manifest name and build id, the type/method/
// field/property definition tables, the global constant pool, and the
// specialization-signature blob.
//
// Deserialization validates the magic and major version; a minor version
// newer than this build knows about is refused rather than silently
// truncated.
package bytecode

import (
	"encoding/binary"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var magicBytes = [4]byte{'S', 'S', 'A', 'S'}

const supportedMajor uint16 = 1
const supportedMinor uint16 = 2

// Encode serializes an assembly to w in the §6.4 binary format.
func Encode(asm *Assembly, w io.Writer) error {
	if _, err := w.Write(magicBytes[:]); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := writeU16(w, asm.Manifest.Major); err != nil {
		return errors.Wrap(err, "write major version")
	}
	if err := writeU16(w, asm.Manifest.Minor); err != nil {
		return errors.Wrap(err, "write minor version")
	}
	if err := writeChunk(w, asm.Main); err != nil {
		return errors.Wrap(err, "write primary chunk")
	}
	if err := writeManifest(w, asm.Manifest); err != nil {
		return errors.Wrap(err, "write manifest")
	}
	if err := writeTypeTable(w, asm.Types); err != nil {
		return errors.Wrap(err, "write type table")
	}
	if err := writeBodyTable(w, asm.Bodies); err != nil {
		return errors.Wrap(err, "write body table")
	}
	if err := writeConstantSlice(w, asm.GlobalConstants); err != nil {
		return errors.Wrap(err, "write global constants")
	}
	if err := writeStringSlice(w, asm.SpecializationSignatures); err != nil {
		return errors.Wrap(err, "write signature blob")
	}
	return nil
}

// Decode reads an assembly previously written by Encode.
func Decode(r io.Reader) (*Assembly, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if magic != magicBytes {
		return nil, errors.Errorf("bad magic: %q (expected %q)", magic, magicBytes)
	}
	major, err := readU16(r)
	if err != nil {
		return nil, errors.Wrap(err, "read major version")
	}
	if major != supportedMajor {
		return nil, errors.Errorf("unsupported major version: %d (expected %d)", major, supportedMajor)
	}
	minor, err := readU16(r)
	if err != nil {
		return nil, errors.Wrap(err, "read minor version")
	}
	if minor > supportedMinor {
		return nil, errors.Errorf("unsupported minor version: %d (newer than this build's %d)", minor, supportedMinor)
	}

	asm := &Assembly{}
	asm.Main, err = readChunk(r)
	if err != nil {
		return nil, errors.Wrap(err, "read primary chunk")
	}
	asm.Manifest, err = readManifest(r)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	asm.Manifest.Major, asm.Manifest.Minor = major, minor

	asm.Types, err = readTypeTable(r)
	if err != nil {
		return nil, errors.Wrap(err, "read type table")
	}
	asm.Bodies, err = readBodyTable(r)
	if err != nil {
		return nil, errors.Wrap(err, "read body table")
	}
	asm.GlobalConstants, err = readConstantSlice(r)
	if err != nil {
		return nil, errors.Wrap(err, "read global constants")
	}
	asm.SpecializationSignatures, err = readStringSlice(r)
	if err != nil {
		return nil, errors.Wrap(err, "read signature blob")
	}
	return asm, nil
}

// --- primitive helpers -----------------------------------------------------

func writeU16(w io.Writer, v uint16) error { return binary.Write(w, binary.BigEndian, v) }
func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.BigEndian, v) }
func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringSlice(w io.Writer, ss []string) error {
	if err := writeU32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		var err error
		if out[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- constants ---------------------------------------------------------

func writeConstant(w io.Writer, c Constant) error {
	if _, err := w.Write([]byte{byte(c.Kind)}); err != nil {
		return err
	}
	switch c.Kind {
	case ConstInt:
		return binary.Write(w, binary.BigEndian, c.I)
	case ConstFloat:
		return binary.Write(w, binary.BigEndian, c.F)
	case ConstBool:
		return writeBool(w, c.B)
	case ConstNil:
		return nil
	default:
		return errors.Errorf("object-typed constant is not representable in the pool: kind %d", c.Kind)
	}
}

func readConstant(r io.Reader) (Constant, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return Constant{}, err
	}
	kind := ConstKind(kindByte[0])
	switch kind {
	case ConstInt:
		var i int64
		if err := binary.Read(r, binary.BigEndian, &i); err != nil {
			return Constant{}, err
		}
		return IntConstant(i), nil
	case ConstFloat:
		var f float64
		if err := binary.Read(r, binary.BigEndian, &f); err != nil {
			return Constant{}, err
		}
		return FloatConstant(f), nil
	case ConstBool:
		b, err := readBool(r)
		if err != nil {
			return Constant{}, err
		}
		return BoolConstant(b), nil
	case ConstNil:
		return NilConstant(), nil
	default:
		return Constant{}, errors.Errorf("unknown constant kind: %d", kind)
	}
}

func writeConstantSlice(w io.Writer, cs []Constant) error {
	if err := writeU32(w, uint32(len(cs))); err != nil {
		return err
	}
	for _, c := range cs {
		if err := writeConstant(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readConstantSlice(r io.Reader) ([]Constant, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Constant, n)
	for i := range out {
		var err error
		if out[i], err = readConstant(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- chunk / prototype / protocol ---------------------------------------

func writeChunk(w io.Writer, c *Chunk) error {
	if err := writeU32(w, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(c.Lines))); err != nil {
		return err
	}
	for _, ln := range c.Lines {
		if err := writeU32(w, ln); err != nil {
			return err
		}
	}
	if err := writeConstantSlice(w, c.Constants); err != nil {
		return err
	}
	if err := writeStringSlice(w, c.Strings); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(c.Functions))); err != nil {
		return err
	}
	for _, fn := range c.Functions {
		if err := writeFunctionPrototype(w, fn); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(c.Protocols))); err != nil {
		return err
	}
	for _, p := range c.Protocols {
		if err := writeProtocol(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readChunk(r io.Reader) (*Chunk, error) {
	c := NewChunk()
	codeLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, c.Code); err != nil {
		return nil, err
	}
	lineLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Lines = make([]uint32, lineLen)
	for i := range c.Lines {
		if c.Lines[i], err = readU32(r); err != nil {
			return nil, err
		}
	}
	if c.Constants, err = readConstantSlice(r); err != nil {
		return nil, err
	}
	if c.Strings, err = readStringSlice(r); err != nil {
		return nil, err
	}
	for i, s := range c.Strings {
		c.stringIndex[s] = i
	}
	fnCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Functions = make([]*FunctionPrototype, fnCount)
	for i := range c.Functions {
		if c.Functions[i], err = readFunctionPrototype(r); err != nil {
			return nil, err
		}
	}
	protoCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Protocols = make([]*Protocol, protoCount)
	for i := range c.Protocols {
		if c.Protocols[i], err = readProtocol(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func writeParamDefault(w io.Writer, d ParamDefault) error {
	if err := writeBool(w, d.HasDefault); err != nil {
		return err
	}
	if !d.HasDefault {
		return nil
	}
	if err := writeString(w, d.Symbolic); err != nil {
		return err
	}
	if d.Symbolic != "" {
		return nil
	}
	return writeConstant(w, d.Value)
}

func readParamDefault(r io.Reader) (ParamDefault, error) {
	has, err := readBool(r)
	if err != nil || !has {
		return ParamDefault{}, err
	}
	sym, err := readString(r)
	if err != nil {
		return ParamDefault{}, err
	}
	if sym != "" {
		return ParamDefault{HasDefault: true, Symbolic: sym}, nil
	}
	val, err := readConstant(r)
	if err != nil {
		return ParamDefault{}, err
	}
	return ParamDefault{HasDefault: true, Value: val}, nil
}

func writeFunctionPrototype(w io.Writer, fn *FunctionPrototype) error {
	if err := writeString(w, fn.Name); err != nil {
		return err
	}
	if err := writeStringSlice(w, fn.Params); err != nil {
		return err
	}
	if err := writeStringSlice(w, fn.Labels); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(fn.Defaults))); err != nil {
		return err
	}
	for _, d := range fn.Defaults {
		if err := writeParamDefault(w, d); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(fn.Upvalues))); err != nil {
		return err
	}
	for _, u := range fn.Upvalues {
		if err := writeU16(w, u.Index); err != nil {
			return err
		}
		if err := writeBool(w, u.IsLocal); err != nil {
			return err
		}
	}
	if err := writeBool(w, fn.IsInitializer); err != nil {
		return err
	}
	if err := writeBool(w, fn.IsOverride); err != nil {
		return err
	}
	if err := writeBool(w, fn.IsMutating); err != nil {
		return err
	}
	if err := writeU32(w, uint32(fn.Arity)); err != nil {
		return err
	}
	return writeChunk(w, fn.Chunk)
}

func readFunctionPrototype(r io.Reader) (*FunctionPrototype, error) {
	fn := &FunctionPrototype{}
	var err error
	if fn.Name, err = readString(r); err != nil {
		return nil, err
	}
	if fn.Params, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if fn.Labels, err = readStringSlice(r); err != nil {
		return nil, err
	}
	defCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Defaults = make([]ParamDefault, defCount)
	for i := range fn.Defaults {
		if fn.Defaults[i], err = readParamDefault(r); err != nil {
			return nil, err
		}
	}
	upCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Upvalues = make([]UpvalueDescriptor, upCount)
	for i := range fn.Upvalues {
		if fn.Upvalues[i].Index, err = readU16(r); err != nil {
			return nil, err
		}
		if fn.Upvalues[i].IsLocal, err = readBool(r); err != nil {
			return nil, err
		}
	}
	if fn.IsInitializer, err = readBool(r); err != nil {
		return nil, err
	}
	if fn.IsOverride, err = readBool(r); err != nil {
		return nil, err
	}
	if fn.IsMutating, err = readBool(r); err != nil {
		return nil, err
	}
	arity, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Arity = int(arity)
	if fn.Chunk, err = readChunk(r); err != nil {
		return nil, err
	}
	return fn, nil
}

func writeProtocol(w io.Writer, p *Protocol) error {
	if err := writeString(w, p.Name); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(p.MethodRequirements))); err != nil {
		return err
	}
	for _, m := range p.MethodRequirements {
		if err := writeString(w, m.Name); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(p.PropertyRequirements))); err != nil {
		return err
	}
	for _, pr := range p.PropertyRequirements {
		if err := writeString(w, pr.Name); err != nil {
			return err
		}
	}
	return writeStringSlice(w, p.InheritedProtocols)
}

func readProtocol(r io.Reader) (*Protocol, error) {
	p := &Protocol{}
	var err error
	if p.Name, err = readString(r); err != nil {
		return nil, err
	}
	mCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	p.MethodRequirements = make([]ProtocolMethodReq, mCount)
	for i := range p.MethodRequirements {
		if p.MethodRequirements[i].Name, err = readString(r); err != nil {
			return nil, err
		}
	}
	pCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	p.PropertyRequirements = make([]ProtocolPropertyReq, pCount)
	for i := range p.PropertyRequirements {
		if p.PropertyRequirements[i].Name, err = readString(r); err != nil {
			return nil, err
		}
	}
	if p.InheritedProtocols, err = readStringSlice(r); err != nil {
		return nil, err
	}
	return p, nil
}

// --- manifest, type table, body table ------------------------------------

func writeManifest(w io.Writer, m Manifest) error {
	if err := writeString(w, m.Name); err != nil {
		return err
	}
	idBytes, err := m.BuildID.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(idBytes)
	return err
}

func readManifest(r io.Reader) (Manifest, error) {
	name, err := readString(r)
	if err != nil {
		return Manifest{}, err
	}
	var idBytes [16]byte
	if _, err := io.ReadFull(r, idBytes[:]); err != nil {
		return Manifest{}, err
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{Name: name, BuildID: id}, nil
}

func writePropertyDescriptor(w io.Writer, p PropertyDescriptor) error {
	if err := writeString(w, p.Name); err != nil {
		return err
	}
	if err := writeBool(w, p.IsLet); err != nil {
		return err
	}
	if err := writeBool(w, p.IsLazy); err != nil {
		return err
	}
	if err := writeU32(w, uint32(p.DefaultBodyIdx+1)); err != nil { // +1 so -1 ("none") round-trips
		return err
	}
	if err := writeBool(w, p.HasWillSet); err != nil {
		return err
	}
	if err := writeU32(w, uint32(p.WillSetBodyIdx+1)); err != nil {
		return err
	}
	if err := writeBool(w, p.HasDidSet); err != nil {
		return err
	}
	return writeU32(w, uint32(p.DidSetBodyIdx+1))
}

func readPropertyDescriptor(r io.Reader) (PropertyDescriptor, error) {
	var p PropertyDescriptor
	var err error
	if p.Name, err = readString(r); err != nil {
		return p, err
	}
	if p.IsLet, err = readBool(r); err != nil {
		return p, err
	}
	if p.IsLazy, err = readBool(r); err != nil {
		return p, err
	}
	v, err := readU32(r)
	if err != nil {
		return p, err
	}
	p.DefaultBodyIdx = int(v) - 1
	if p.HasWillSet, err = readBool(r); err != nil {
		return p, err
	}
	if v, err = readU32(r); err != nil {
		return p, err
	}
	p.WillSetBodyIdx = int(v) - 1
	if p.HasDidSet, err = readBool(r); err != nil {
		return p, err
	}
	if v, err = readU32(r); err != nil {
		return p, err
	}
	p.DidSetBodyIdx = int(v) - 1
	return p, nil
}

func writeMethodDescriptor(w io.Writer, m MethodDescriptor) error {
	if err := writeString(w, m.Name); err != nil {
		return err
	}
	if err := writeU32(w, uint32(m.BodyIdx)); err != nil {
		return err
	}
	if err := writeBool(w, m.IsStatic); err != nil {
		return err
	}
	if err := writeBool(w, m.IsMutating); err != nil {
		return err
	}
	if err := writeBool(w, m.IsOverride); err != nil {
		return err
	}
	return writeString(w, m.ParamSig)
}

func readMethodDescriptor(r io.Reader) (MethodDescriptor, error) {
	var m MethodDescriptor
	var err error
	if m.Name, err = readString(r); err != nil {
		return m, err
	}
	v, err := readU32(r)
	if err != nil {
		return m, err
	}
	m.BodyIdx = int(v)
	if m.IsStatic, err = readBool(r); err != nil {
		return m, err
	}
	if m.IsMutating, err = readBool(r); err != nil {
		return m, err
	}
	if m.IsOverride, err = readBool(r); err != nil {
		return m, err
	}
	if m.ParamSig, err = readString(r); err != nil {
		return m, err
	}
	return m, nil
}

func writeTypeDefinition(w io.Writer, t *TypeDefinition) error {
	if err := writeString(w, t.Name); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(t.Kind)}); err != nil {
		return err
	}
	if err := writeString(w, t.SuperClass); err != nil {
		return err
	}
	if err := writeStringSlice(w, t.Conformances); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(t.Properties))); err != nil {
		return err
	}
	for _, p := range t.Properties {
		if err := writePropertyDescriptor(w, p); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(t.ComputedProperties))); err != nil {
		return err
	}
	for _, cp := range t.ComputedProperties {
		if err := writeString(w, cp.Name); err != nil {
			return err
		}
		if err := writeU32(w, uint32(cp.GetterBodyIdx)); err != nil {
			return err
		}
		if err := writeBool(w, cp.HasSetter); err != nil {
			return err
		}
		if err := writeU32(w, uint32(cp.SetterBodyIdx)); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(t.Methods))); err != nil {
		return err
	}
	for _, m := range t.Methods {
		if err := writeMethodDescriptor(w, m); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(t.StaticMethods))); err != nil {
		return err
	}
	for _, m := range t.StaticMethods {
		if err := writeMethodDescriptor(w, m); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(t.StaticProperties))); err != nil {
		return err
	}
	for _, p := range t.StaticProperties {
		if err := writePropertyDescriptor(w, p); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(t.Cases))); err != nil {
		return err
	}
	for _, c := range t.Cases {
		if err := writeString(w, c.Name); err != nil {
			return err
		}
		if err := writeBool(w, c.HasRawValue); err != nil {
			return err
		}
		if c.HasRawValue {
			if err := writeConstant(w, c.RawValue); err != nil {
				return err
			}
		}
		if err := writeStringSlice(w, c.AssociatedLabels); err != nil {
			return err
		}
	}
	if err := writeBool(w, t.HasDeinit); err != nil {
		return err
	}
	return writeU32(w, uint32(t.DeinitBodyIdx+1))
}

func readTypeDefinition(r io.Reader) (*TypeDefinition, error) {
	t := &TypeDefinition{}
	var err error
	if t.Name, err = readString(r); err != nil {
		return nil, err
	}
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}
	t.Kind = TypeKind(kindByte[0])
	if t.SuperClass, err = readString(r); err != nil {
		return nil, err
	}
	if t.Conformances, err = readStringSlice(r); err != nil {
		return nil, err
	}
	propCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.Properties = make([]PropertyDescriptor, propCount)
	for i := range t.Properties {
		if t.Properties[i], err = readPropertyDescriptor(r); err != nil {
			return nil, err
		}
	}
	cpCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.ComputedProperties = make([]ComputedPropertyDescriptor, cpCount)
	for i := range t.ComputedProperties {
		cp := &t.ComputedProperties[i]
		if cp.Name, err = readString(r); err != nil {
			return nil, err
		}
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		cp.GetterBodyIdx = int(v)
		if cp.HasSetter, err = readBool(r); err != nil {
			return nil, err
		}
		if v, err = readU32(r); err != nil {
			return nil, err
		}
		cp.SetterBodyIdx = int(v)
	}
	methCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.Methods = make([]MethodDescriptor, methCount)
	for i := range t.Methods {
		if t.Methods[i], err = readMethodDescriptor(r); err != nil {
			return nil, err
		}
	}
	staticMethCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.StaticMethods = make([]MethodDescriptor, staticMethCount)
	for i := range t.StaticMethods {
		if t.StaticMethods[i], err = readMethodDescriptor(r); err != nil {
			return nil, err
		}
	}
	staticPropCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.StaticProperties = make([]PropertyDescriptor, staticPropCount)
	for i := range t.StaticProperties {
		if t.StaticProperties[i], err = readPropertyDescriptor(r); err != nil {
			return nil, err
		}
	}
	caseCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.Cases = make([]EnumCaseDefinition, caseCount)
	for i := range t.Cases {
		c := &t.Cases[i]
		if c.Name, err = readString(r); err != nil {
			return nil, err
		}
		if c.HasRawValue, err = readBool(r); err != nil {
			return nil, err
		}
		if c.HasRawValue {
			if c.RawValue, err = readConstant(r); err != nil {
				return nil, err
			}
		}
		if c.AssociatedLabels, err = readStringSlice(r); err != nil {
			return nil, err
		}
	}
	if t.HasDeinit, err = readBool(r); err != nil {
		return nil, err
	}
	v, err := readU32(r)
	if err != nil {
		return nil, err
	}
	t.DeinitBodyIdx = int(v) - 1
	return t, nil
}

func writeTypeTable(w io.Writer, types []*TypeDefinition) error {
	if err := writeU32(w, uint32(len(types))); err != nil {
		return err
	}
	for _, t := range types {
		if err := writeTypeDefinition(w, t); err != nil {
			return err
		}
	}
	return nil
}

func readTypeTable(r io.Reader) ([]*TypeDefinition, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]*TypeDefinition, n)
	for i := range out {
		if out[i], err = readTypeDefinition(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeBodyTable(w io.Writer, bodies []*MethodBody) error {
	if err := writeU32(w, uint32(len(bodies))); err != nil {
		return err
	}
	for _, b := range bodies {
		if err := writeFunctionPrototype(w, b.Proto); err != nil {
			return err
		}
		if err := writeU32(w, uint32(b.MaxStackDepth)); err != nil {
			return err
		}
	}
	return nil
}

func readBodyTable(r io.Reader) ([]*MethodBody, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]*MethodBody, n)
	for i := range out {
		proto, err := readFunctionPrototype(r)
		if err != nil {
			return nil, err
		}
		depth, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = &MethodBody{Proto: proto, MaxStackDepth: int(depth)}
	}
	return out, nil
}
