// Package classtest assembles minimal class files for tests: a constant
// pool builder plus just enough structure to wrap method bytecode in a
// valid Code attribute.
package classtest

import (
	"bytes"
	"encoding/binary"
)

const (
	tagUtf8        = 1
	tagClass       = 7
	tagString      = 8
	tagMethodRef   = 10
	tagNameAndType = 12
)

// LineEntry is one LineNumberTable row.
type LineEntry struct {
	StartPC int
	Line    int
}

// MethodDef is one method to emit.
type MethodDef struct {
	Name       string
	Descriptor string
	Static     bool
	Abstract   bool // emitted without a Code attribute
	Code       []byte
	Lines      []LineEntry
}

// Builder accumulates constant pool entries and methods, then serializes a
// class file.
type Builder struct {
	className  string // internal form, e.g. "com/example/Foo"
	sourceFile string
	methods    []MethodDef

	entries []cpEntry
	utf8s   map[string]uint16
	classes map[string]uint16
	strings map[string]uint16
}

type cpEntry struct {
	tag    byte
	i1, i2 uint16
	utf8   string
}

// New starts a class named in internal (slash) form.
func New(className string) *Builder {
	return &Builder{
		className: className,
		utf8s:     map[string]uint16{},
		classes:   map[string]uint16{},
		strings:   map[string]uint16{},
	}
}

func (b *Builder) add(e cpEntry) uint16 {
	b.entries = append(b.entries, e)
	return uint16(len(b.entries)) // pool indexes start at 1
}

// Utf8 interns a modified-UTF8 constant and returns its pool index.
func (b *Builder) Utf8(s string) uint16 {
	if i, ok := b.utf8s[s]; ok {
		return i
	}
	i := b.add(cpEntry{tag: tagUtf8, utf8: s})
	b.utf8s[s] = i
	return i
}

// Class interns a Class constant for an internal name.
func (b *Builder) Class(internal string) uint16 {
	if i, ok := b.classes[internal]; ok {
		return i
	}
	name := b.Utf8(internal)
	i := b.add(cpEntry{tag: tagClass, i1: name})
	b.classes[internal] = i
	return i
}

// String interns a String constant and returns its pool index, usable as an
// ldc operand.
func (b *Builder) String(s string) uint16 {
	if i, ok := b.strings[s]; ok {
		return i
	}
	u := b.Utf8(s)
	i := b.add(cpEntry{tag: tagString, i1: u})
	b.strings[s] = i
	return i
}

// MethodRef interns a Methodref constant for class.name with the given
// descriptor, usable as an invoke operand.
func (b *Builder) MethodRef(class, name, desc string) uint16 {
	c := b.Class(class)
	nt := b.add(cpEntry{tag: tagNameAndType, i1: b.Utf8(name), i2: b.Utf8(desc)})
	return b.add(cpEntry{tag: tagMethodRef, i1: c, i2: nt})
}

// SourceFile sets the SourceFile class attribute.
func (b *Builder) SourceFile(name string) *Builder {
	b.sourceFile = name
	return b
}

// Method appends a method definition.
func (b *Builder) Method(m MethodDef) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// Build serializes the class file.
func (b *Builder) Build() []byte {
	// Intern everything the body will reference before counting the pool.
	thisClass := b.Class(b.className)
	superClass := b.Class("java/lang/Object")
	codeAttr := b.Utf8("Code")
	var lineAttr uint16
	for _, m := range b.methods {
		b.Utf8(m.Name)
		b.Utf8(m.Descriptor)
		if len(m.Lines) > 0 {
			lineAttr = b.Utf8("LineNumberTable")
		}
	}
	var srcAttr, srcName uint16
	if b.sourceFile != "" {
		srcAttr = b.Utf8("SourceFile")
		srcName = b.Utf8(b.sourceFile)
	}

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }

	w(uint32(0xCAFEBABE))
	w(uint16(0))  // minor
	w(uint16(52)) // major: Java 8

	w(uint16(len(b.entries) + 1))
	for _, e := range b.entries {
		w(e.tag)
		switch e.tag {
		case tagUtf8:
			w(uint16(len(e.utf8)))
			buf.WriteString(e.utf8)
		case tagClass, tagString:
			w(e.i1)
		case tagMethodRef, tagNameAndType:
			w(e.i1)
			w(e.i2)
		}
	}

	w(uint16(0x0021)) // public super
	w(thisClass)
	w(superClass)
	w(uint16(0)) // interfaces
	w(uint16(0)) // fields

	w(uint16(len(b.methods)))
	for _, m := range b.methods {
		access := uint16(0x0001)
		if m.Static {
			access |= 0x0008
		}
		if m.Abstract {
			access |= 0x0400
		}
		w(access)
		w(b.utf8s[m.Name])
		w(b.utf8s[m.Descriptor])
		if m.Abstract {
			w(uint16(0))
			continue
		}
		w(uint16(1)) // one attribute: Code

		var code bytes.Buffer
		cw := func(v any) { _ = binary.Write(&code, binary.BigEndian, v) }
		cw(uint16(16)) // max_stack
		cw(uint16(16)) // max_locals
		cw(uint32(len(m.Code)))
		code.Write(m.Code)
		cw(uint16(0)) // exception table
		if len(m.Lines) > 0 {
			cw(uint16(1)) // one sub-attribute
			cw(lineAttr)
			cw(uint32(2 + 4*len(m.Lines)))
			cw(uint16(len(m.Lines)))
			for _, e := range m.Lines {
				cw(uint16(e.StartPC))
				cw(uint16(e.Line))
			}
		} else {
			cw(uint16(0))
		}

		w(codeAttr)
		w(uint32(code.Len()))
		buf.Write(code.Bytes())
	}

	if b.sourceFile != "" {
		w(uint16(1))
		w(srcAttr)
		w(uint32(2))
		w(srcName)
	} else {
		w(uint16(0))
	}

	return buf.Bytes()
}
