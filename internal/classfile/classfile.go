package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every parse failure so callers can decide to
// skip the class and keep scanning.
var ErrMalformed = errors.New("malformed class file")

const magic = 0xCAFEBABE

// Method access flags we care about.
const (
	accStatic   = 0x0008
	accNative   = 0x0100
	accAbstract = 0x0400
)

// ClassFile is the decoded intermediate form of one compiled class: just
// enough structure for call-site scanning, nothing more.
type ClassFile struct {
	Name       string // fully qualified, dotted
	SourceFile string // "" when the attribute is absent
	Methods    []Method
}

// Method is one decoded method body.
type Method struct {
	Name         string
	Descriptor   string
	Static       bool
	HasCode      bool // abstract and native methods have none
	Instructions []Instruction
	HandlerPCs   []int // exception handler entry points within the code

	lines []lineEntry // sorted by StartPC
}

type lineEntry struct {
	StartPC int
	Line    int
}

// Signature renders the enclosing-method signature used in finding locations,
// e.g. "<com.example.Crypto: byte[] digest(java.lang.String)>".
func (m *Method) Signature(className string) string {
	return "<" + className + ": " + SubSignature(m.Name, m.Descriptor) + ">"
}

// LineForPC returns the source line covering pc, or -1 when the method has
// no line-number table or pc precedes its first entry.
func (m *Method) LineForPC(pc int) int {
	line := -1
	for _, e := range m.lines {
		if e.StartPC > pc {
			break
		}
		line = e.Line
	}
	return line
}

// reader is a bounds-checked big-endian cursor over the raw class bytes.
// Reads past the end set the failed flag and return zero values, so parse
// code can run a section and check once.
type reader struct {
	data []byte
	pos  int
	err  bool
}

func (r *reader) failed() bool { return r.err }

func (r *reader) u1() byte {
	if r.pos+1 > len(r.data) {
		r.err = true
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) u2() uint16 {
	if r.pos+2 > len(r.data) {
		r.err = true
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if r.pos+4 > len(r.data) {
		r.err = true
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if n < 0 || r.pos+n > len(r.data) {
		r.err = true
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int) {
	if n < 0 || r.pos+n > len(r.data) {
		r.err = true
		return
	}
	r.pos += n
}

// Parse decodes a class file into its intermediate form.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}

	if r.u4() != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	r.skip(4) // minor, major

	cpCount := int(r.u2())
	if r.failed() || cpCount < 1 {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	pool, err := readConstPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	r.skip(2) // access_flags
	thisClass := int(r.u2())
	r.skip(2) // super_class
	ifaceCount := int(r.u2())
	r.skip(2 * ifaceCount)
	if r.failed() {
		return nil, fmt.Errorf("%w: truncated class header", ErrMalformed)
	}

	internalName, err := pool.className(thisClass)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cf := &ClassFile{Name: dotted(internalName)}

	// Fields: we only need to step over them.
	fieldCount := int(r.u2())
	for i := 0; i < fieldCount; i++ {
		r.skip(6) // access, name, descriptor
		if err := skipAttributes(r); err != nil {
			return nil, err
		}
	}

	methodCount := int(r.u2())
	if r.failed() {
		return nil, fmt.Errorf("%w: truncated fields", ErrMalformed)
	}
	for i := 0; i < methodCount; i++ {
		m, err := readMethod(r, pool)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}

	// Class attributes: only SourceFile matters.
	attrCount := int(r.u2())
	for i := 0; i < attrCount && !r.failed(); i++ {
		name, body, err := readAttribute(r, pool)
		if err != nil {
			return nil, err
		}
		if name == "SourceFile" && len(body) >= 2 {
			idx := int(binary.BigEndian.Uint16(body))
			if s, err := pool.utf8(idx); err == nil {
				cf.SourceFile = s
			}
		}
	}

	return cf, nil
}

func readMethod(r *reader, pool *constPool) (Method, error) {
	access := int(r.u2())
	nameIdx := int(r.u2())
	descIdx := int(r.u2())
	if r.failed() {
		return Method{}, fmt.Errorf("%w: truncated method header", ErrMalformed)
	}

	name, err := pool.utf8(nameIdx)
	if err != nil {
		return Method{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	desc, err := pool.utf8(descIdx)
	if err != nil {
		return Method{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := Method{
		Name:       name,
		Descriptor: desc,
		Static:     access&accStatic != 0,
	}

	attrCount := int(r.u2())
	for i := 0; i < attrCount; i++ {
		attrName, body, err := readAttribute(r, pool)
		if err != nil {
			return Method{}, err
		}
		if attrName != "Code" {
			continue
		}
		if access&(accAbstract|accNative) != 0 {
			continue
		}
		if err := readCode(&m, body, pool); err != nil {
			return Method{}, err
		}
	}
	return m, nil
}

// readCode decodes a Code attribute body into the method's instruction
// stream, handler entry points and line-number table.
func readCode(m *Method, body []byte, pool *constPool) error {
	r := &reader{data: body}
	r.skip(4) // max_stack, max_locals
	codeLen := int(r.u4())
	code := r.bytes(codeLen)
	if r.failed() {
		return fmt.Errorf("%w: truncated Code attribute", ErrMalformed)
	}

	instrs, err := decode(code, pool)
	if err != nil {
		return err
	}
	m.Instructions = instrs
	m.HasCode = true

	excCount := int(r.u2())
	for i := 0; i < excCount; i++ {
		r.skip(4) // start_pc, end_pc
		handler := int(r.u2())
		r.skip(2) // catch_type
		m.HandlerPCs = append(m.HandlerPCs, handler)
	}

	attrCount := int(r.u2())
	for i := 0; i < attrCount && !r.failed(); i++ {
		name, sub, err := readAttribute(r, pool)
		if err != nil {
			return err
		}
		if name != "LineNumberTable" {
			continue
		}
		sr := &reader{data: sub}
		entries := int(sr.u2())
		for j := 0; j < entries && !sr.failed(); j++ {
			start := int(sr.u2())
			line := int(sr.u2())
			m.lines = append(m.lines, lineEntry{StartPC: start, Line: line})
		}
	}
	if r.failed() {
		return fmt.Errorf("%w: truncated Code attribute", ErrMalformed)
	}
	return nil
}

func readAttribute(r *reader, pool *constPool) (string, []byte, error) {
	nameIdx := int(r.u2())
	length := int(r.u4())
	body := r.bytes(length)
	if r.failed() {
		return "", nil, fmt.Errorf("%w: truncated attribute", ErrMalformed)
	}
	name, err := pool.utf8(nameIdx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return name, body, nil
}

func skipAttributes(r *reader) error {
	count := int(r.u2())
	for i := 0; i < count; i++ {
		r.skip(2)
		length := int(r.u4())
		r.skip(length)
	}
	if r.failed() {
		return fmt.Errorf("%w: truncated attributes", ErrMalformed)
	}
	return nil
}

// dotted converts an internal slash-separated class name to dotted form.
func dotted(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
