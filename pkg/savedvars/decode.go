// Package savedvars reads and writes the addon's SavedVariables files.
//
// A SavedVariables file is a Lua chunk made of global assignments. It is
// executed in an interpreter with no libraries loaded, so the only thing the
// chunk can do is build tables, and the resulting globals are converted to
// plain Go values: string, bool, int, float64, []any and map[string]any
package savedvars

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"
)

// MaxDepth bounds table nesting during conversion
const MaxDepth = 64

// StringKeyMark prefixes a decoded string key that would read back as a Lua
// number key, like ["123"], and any string key already starting with the
// mark. Encode strips one mark and writes the key as a string
const StringKeyMark = "'"

var (
	ErrTooDeep         = errors.New("table nesting too deep")
	ErrGlobalNotFound  = errors.New("global not found")
	ErrUnsupportedType = errors.New("unsupported value type")
)

// DecodeFile executes the file at path and returns all globals it defines
func DecodeFile(path string) (map[string]any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved variables: %w", err)
	}
	return Decode(src, filepath.Base(path))
}

// Decode executes src and returns all globals it defines. name is only used
// in error messages
func Decode(src []byte, name string) (map[string]any, error) {
	state := lua.NewState()

	if err := lua.LoadBuffer(state, string(src), "@"+name, "t"); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	state.PushGlobalTable()
	defer state.Pop(1)

	v, err := toValue(state, -1, 0)
	if err != nil {
		return nil, err
	}
	globals, ok := v.(map[string]any)
	if !ok {
		// a chunk that only assigns 1..n globals still decodes as a list
		globals = map[string]any{}
		for i, item := range v.([]any) {
			globals[strconv.Itoa(i+1)] = item
		}
	}
	return globals, nil
}

// Global returns one table global from a decoded file
func Global(globals map[string]any, name string) (map[string]any, error) {
	v, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGlobalNotFound, name)
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		out := make(map[string]any, len(t))
		for i, item := range t {
			out[strconv.Itoa(i+1)] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is a %T, not a table: %w", name, v, ErrUnsupportedType)
}

type entry struct {
	key   any
	value any
}

func toValue(state *lua.State, index, depth int) (any, error) {
	switch state.TypeOf(index) {
	case lua.TypeNil:
		return nil, nil
	case lua.TypeBoolean:
		return state.ToBoolean(index), nil
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		return number(n), nil
	case lua.TypeString:
		s, _ := state.ToString(index)
		return s, nil
	case lua.TypeTable:
		return toTable(state, index, depth)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, lua.TypeNameOf(state, index))
}

func toTable(state *lua.State, index, depth int) (any, error) {
	if depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	index = state.AbsIndex(index)

	var entries []entry
	state.PushNil()
	for state.Next(index) {
		// key at -2, value at -1; the key type is checked before any
		// conversion so Next keeps seeing the original key
		var key any
		switch state.TypeOf(-2) {
		case lua.TypeString:
			s, _ := state.ToString(-2)
			key = stringKey(s)
		case lua.TypeNumber:
			n, _ := state.ToNumber(-2)
			key = number(n)
		case lua.TypeBoolean:
			key = strconv.FormatBool(state.ToBoolean(-2))
		default:
			state.Pop(1)
			continue
		}

		switch state.TypeOf(-1) {
		case lua.TypeFunction, lua.TypeUserData, lua.TypeLightUserData, lua.TypeThread:
			state.Pop(1)
			continue
		}

		value, err := toValue(state, -1, depth+1)
		if err != nil {
			state.Pop(2)
			return nil, err
		}
		state.Pop(1)
		entries = append(entries, entry{key: key, value: value})
	}

	if list, ok := asSequence(entries); ok {
		return list, nil
	}

	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[keyString(e.key)] = e.value
	}
	return out, nil
}

// asSequence reports whether entries hold exactly the keys 1..n. Empty
// tables are not sequences
func asSequence(entries []entry) ([]any, bool) {
	if len(entries) == 0 {
		return nil, false
	}
	list := make([]any, len(entries))
	seen := make([]bool, len(entries))
	for _, e := range entries {
		i, ok := e.key.(int)
		if !ok || i < 1 || i > len(entries) || seen[i-1] {
			return nil, false
		}
		seen[i-1] = true
		list[i-1] = e.value
	}
	return list, true
}

func stringKey(s string) string {
	if _, ok := integerKey(s); ok || strings.HasPrefix(s, StringKeyMark) {
		return StringKeyMark + s
	}
	return s
}

func keyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprint(k)
}

// number keeps integral values as int so they survive a JSON round trip
// unchanged
func number(n float64) any {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int(n)
	}
	return n
}

// sortedKeys returns the keys of m in a stable order
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
