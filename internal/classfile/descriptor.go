package classfile

import (
	"fmt"
	"strings"
)

var primNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// ArgTypes parses a method descriptor and returns the parameter types in
// human-readable dotted form.
func ArgTypes(desc string) ([]string, error) {
	if len(desc) < 2 || desc[0] != '(' {
		return nil, fmt.Errorf("invalid method descriptor %q", desc)
	}
	var types []string
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, n, err := fieldType(desc[i:])
		if err != nil {
			return nil, fmt.Errorf("invalid method descriptor %q: %v", desc, err)
		}
		types = append(types, t)
		i += n
	}
	if i >= len(desc) || desc[i] != ')' {
		return nil, fmt.Errorf("invalid method descriptor %q: unterminated parameter list", desc)
	}
	return types, nil
}

// ArgCount returns the number of declared parameters, receiver excluded.
func ArgCount(desc string) (int, error) {
	types, err := ArgTypes(desc)
	if err != nil {
		return 0, err
	}
	return len(types), nil
}

// ReturnType returns the descriptor's return type in dotted form, or
// "void". Malformed descriptors yield "?".
func ReturnType(desc string) string {
	i := strings.IndexByte(desc, ')')
	if i < 0 || i+1 >= len(desc) {
		return "?"
	}
	t, _, err := fieldType(desc[i+1:])
	if err != nil {
		return "?"
	}
	return t
}

// SubSignature renders a method's canonical sub-signature:
// "returnType name(paramType,paramType)".
func SubSignature(name, desc string) string {
	args, err := ArgTypes(desc)
	if err != nil {
		return ReturnType(desc) + " " + name + "(?)"
	}
	return ReturnType(desc) + " " + name + "(" + strings.Join(args, ",") + ")"
}

// fieldType decodes one field type at the front of s and returns its dotted
// rendering and encoded length.
func fieldType(s string) (string, int, error) {
	if len(s) == 0 {
		return "", 0, fmt.Errorf("empty type")
	}
	switch c := s[0]; c {
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated class type")
		}
		return dotted(s[1:end]), end + 1, nil
	case '[':
		elem, n, err := fieldType(s[1:])
		if err != nil {
			return "", 0, err
		}
		return elem + "[]", n + 1, nil
	default:
		name, ok := primNames[c]
		if !ok {
			return "", 0, fmt.Errorf("unknown type tag %q", c)
		}
		return name, 1, nil
	}
}
