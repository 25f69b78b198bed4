package savedvars

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Encode renders globals as a SavedVariables chunk in the layout the game
// client writes: one assignment per global, sorted keys, tab indentation and
// a trailing comma after every field
func Encode(globals map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	for _, name := range sortedKeys(globals) {
		if !isIdentifier(name) {
			return nil, fmt.Errorf("global %q is not a valid identifier", name)
		}
		buf.WriteString(name)
		buf.WriteString(" = ")
		if err := encodeValue(&buf, globals[name], 0); err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, depth int) error {
	if depth >= MaxDepth {
		return ErrTooDeep
	}

	switch t := v.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		writeString(buf, t)
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		return writeNumber(buf, t)
	case map[string]any:
		return encodeMap(buf, t, depth)
	case []any:
		return encodeList(buf, t, depth)
	default:
		return encodeReflect(buf, v, depth)
	}
	return nil
}

// encodeReflect covers named map and slice types such as profile.Raw
func encodeReflect(buf *bytes.Buffer, v any, depth int) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeMap(buf, m, depth)
	case reflect.Slice:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encodeList(buf, items, depth)
	case reflect.Float32:
		return writeNumber(buf, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func encodeMap(buf *bytes.Buffer, m map[string]any, depth int) error {
	buf.WriteString("{\n")
	for _, k := range sortedTableKeys(m) {
		if m[k] == nil {
			continue
		}
		indent(buf, depth+1)
		buf.WriteByte('[')
		if key, marked := strings.CutPrefix(k, StringKeyMark); marked {
			writeString(buf, key)
		} else if n, ok := integerKey(k); ok {
			buf.WriteString(strconv.Itoa(n))
		} else {
			writeString(buf, k)
		}
		buf.WriteString("] = ")
		if err := encodeValue(buf, m[k], depth+1); err != nil {
			return err
		}
		buf.WriteString(",\n")
	}
	indent(buf, depth)
	buf.WriteByte('}')
	return nil
}

func encodeList(buf *bytes.Buffer, items []any, depth int) error {
	buf.WriteString("{\n")
	for i, item := range items {
		indent(buf, depth+1)
		if err := encodeValue(buf, item, depth+1); err != nil {
			return err
		}
		fmt.Fprintf(buf, ", -- [%d]\n", i+1)
	}
	indent(buf, depth)
	buf.WriteByte('}')
	return nil
}

func writeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(buf, `\%03d`, c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}

func indent(buf *bytes.Buffer, depth int) {
	buf.WriteString(strings.Repeat("\t", depth))
}

// integerKey reports whether an unmarked map key came from a Lua number key
func integerKey(k string) (int, bool) {
	n, err := strconv.Atoi(k)
	if err != nil || strconv.Itoa(n) != k {
		return 0, false
	}
	return n, true
}

// sortedTableKeys puts numeric keys first in numeric order, then strings
func sortedTableKeys(m map[string]any) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool {
		ni, iok := integerKey(keys[i])
		nj, jok := integerKey(keys[j])
		switch {
		case iok && jok:
			return ni < nj
		case iok != jok:
			return iok
		}
		return false
	})
	return keys
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
