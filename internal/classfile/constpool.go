package classfile

import "fmt"

// Constant pool tags from the class file format.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldRef           = 9
	tagMethodRef          = 10
	tagInterfaceMethodRef = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// cpEntry is one constant pool slot. Long and double constants occupy two
// slots; the second slot has tag 0 and is never referenced.
type cpEntry struct {
	tag  int
	i1   int    // first index operand (class index, name index, string index, ...)
	i2   int    // second index operand (name-and-type index, descriptor index, ...)
	utf8 string // tagUtf8 only
}

type constPool struct {
	entries []cpEntry // index 0 unused, as in the file format
}

func (p *constPool) at(i int) (cpEntry, error) {
	if i <= 0 || i >= len(p.entries) {
		return cpEntry{}, fmt.Errorf("constant pool index %d out of range (pool size %d)", i, len(p.entries))
	}
	return p.entries[i], nil
}

func (p *constPool) utf8(i int) (string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", err
	}
	if e.tag != tagUtf8 {
		return "", fmt.Errorf("constant pool index %d: want Utf8, got tag %d", i, e.tag)
	}
	return e.utf8, nil
}

// className resolves a Class entry to its internal (slash-separated) name.
func (p *constPool) className(i int) (string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", err
	}
	if e.tag != tagClass {
		return "", fmt.Errorf("constant pool index %d: want Class, got tag %d", i, e.tag)
	}
	return p.utf8(e.i1)
}

// stringConst resolves a String entry to its literal value.
func (p *constPool) stringConst(i int) (string, bool) {
	e, err := p.at(i)
	if err != nil || e.tag != tagString {
		return "", false
	}
	s, err := p.utf8(e.i1)
	if err != nil {
		return "", false
	}
	return s, true
}

// methodRef resolves a Methodref or InterfaceMethodref entry to
// (internal class name, method name, descriptor).
func (p *constPool) methodRef(i int) (string, string, string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", "", "", err
	}
	if e.tag != tagMethodRef && e.tag != tagInterfaceMethodRef {
		return "", "", "", fmt.Errorf("constant pool index %d: want Methodref, got tag %d", i, e.tag)
	}
	class, err := p.className(e.i1)
	if err != nil {
		return "", "", "", err
	}
	name, desc, err := p.nameAndType(e.i2)
	if err != nil {
		return "", "", "", err
	}
	return class, name, desc, nil
}

// callSiteRef resolves an InvokeDynamic entry to (method name, descriptor).
// Indy call sites have no declaring class.
func (p *constPool) callSiteRef(i int) (string, string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", "", err
	}
	if e.tag != tagInvokeDynamic && e.tag != tagDynamic {
		return "", "", fmt.Errorf("constant pool index %d: want InvokeDynamic, got tag %d", i, e.tag)
	}
	return p.nameAndType(e.i2)
}

func (p *constPool) nameAndType(i int) (string, string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", "", err
	}
	if e.tag != tagNameAndType {
		return "", "", fmt.Errorf("constant pool index %d: want NameAndType, got tag %d", i, e.tag)
	}
	name, err := p.utf8(e.i1)
	if err != nil {
		return "", "", err
	}
	desc, err := p.utf8(e.i2)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// readConstPool parses cp_count-1 entries. r is positioned right after the
// cp_count field.
func readConstPool(r *reader, count int) (*constPool, error) {
	pool := &constPool{entries: make([]cpEntry, count)}
	for i := 1; i < count; i++ {
		tag := int(r.u1())
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			length := int(r.u2())
			e.utf8 = string(r.bytes(length))
		case tagInteger, tagFloat:
			r.skip(4)
		case tagLong, tagDouble:
			r.skip(8)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.i1 = int(r.u2())
		case tagFieldRef, tagMethodRef, tagInterfaceMethodRef, tagNameAndType,
			tagDynamic, tagInvokeDynamic:
			e.i1 = int(r.u2())
			e.i2 = int(r.u2())
		case tagMethodHandle:
			r.skip(1)
			e.i1 = int(r.u2())
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if r.failed() {
			return nil, fmt.Errorf("truncated constant pool at index %d", i)
		}
		pool.entries[i] = e
		if tag == tagLong || tag == tagDouble {
			i++ // second slot stays zeroed
		}
	}
	return pool, nil
}
