package profile

// field describes how one source key maps onto a member of S. The same
// descriptor drives both directions so a key can't be mapped in only one
type field[S any] interface {
	decode(raw Raw, s *S)
	encode(s *S, out Raw)
}

func decodeFields[S any](raw Raw, fields []field[S]) S {
	var s S
	for _, f := range fields {
		f.decode(raw, &s)
	}
	return s
}

func encodeFields[S any](s *S, fields []field[S]) Raw {
	out := Raw{}
	for _, f := range fields {
		f.encode(s, out)
	}
	return out
}

// optString is emitted only when set
type optString[S any] struct {
	key string
	at  func(*S) **string
}

func (f optString[S]) decode(raw Raw, s *S) {
	if v, ok := asString(raw[f.key]); ok {
		*f.at(s) = &v
	}
}

func (f optString[S]) encode(s *S, out Raw) {
	if p := *f.at(s); p != nil {
		out[f.key] = *p
	}
}

// reqString decodes to "" when missing and is always emitted
type reqString[S any] struct {
	key string
	at  func(*S) *string
}

func (f reqString[S]) decode(raw Raw, s *S) {
	v, _ := asString(raw[f.key])
	*f.at(s) = v
}

func (f reqString[S]) encode(s *S, out Raw) {
	out[f.key] = *f.at(s)
}

// optInt keeps an explicit 0 distinct from a missing key
type optInt[S any] struct {
	key string
	at  func(*S) **int
}

func (f optInt[S]) decode(raw Raw, s *S) {
	if v, ok := asInt(raw[f.key]); ok {
		*f.at(s) = &v
	}
}

func (f optInt[S]) encode(s *S, out Raw) {
	if p := *f.at(s); p != nil {
		out[f.key] = *p
	}
}

// defInt falls back to def when the key is missing or zero
type defInt[S any] struct {
	key string
	def int
	at  func(*S) *int
}

func (f defInt[S]) decode(raw Raw, s *S) {
	v, ok := asInt(raw[f.key])
	if !ok || v == 0 {
		v = f.def
	}
	*f.at(s) = v
}

func (f defInt[S]) encode(s *S, out Raw) {
	out[f.key] = *f.at(s)
}

type reqFloat[S any] struct {
	key string
	at  func(*S) *float64
}

func (f reqFloat[S]) decode(raw Raw, s *S) {
	v, _ := asFloat(raw[f.key])
	*f.at(s) = v
}

func (f reqFloat[S]) encode(s *S, out Raw) {
	out[f.key] = *f.at(s)
}

// object maps a nested table; it is built only when the source holds a table
// under key, so an absent section never turns into an empty one
type object[S, T any] struct {
	key    string
	at     func(*S) **T
	fields []field[T]
}

func (f object[S, T]) decode(raw Raw, s *S) {
	if m, ok := asMap(raw[f.key]); ok {
		v := decodeFields(m, f.fields)
		*f.at(s) = &v
	}
}

func (f object[S, T]) encode(s *S, out Raw) {
	if p := *f.at(s); p != nil {
		out[f.key] = encodeFields(p, f.fields)
	}
}

// list is always materialized on decode, and omitted on encode when empty
type list[S, T any] struct {
	key    string
	at     func(*S) *[]T
	fields []field[T]
}

func (f list[S, T]) decode(raw Raw, s *S) {
	items, _ := asList(raw[f.key])
	*f.at(s) = decodeItems(items, f.fields)
}

func (f list[S, T]) encode(s *S, out Raw) {
	if items := *f.at(s); len(items) > 0 {
		out[f.key] = encodeItems(items, f.fields)
	}
}

// optList stays nil unless the source holds an array, and is emitted whenever non-nil
type optList[S, T any] struct {
	key    string
	at     func(*S) *[]T
	fields []field[T]
}

func (f optList[S, T]) decode(raw Raw, s *S) {
	if items, ok := asList(raw[f.key]); ok {
		*f.at(s) = decodeItems(items, f.fields)
	}
}

func (f optList[S, T]) encode(s *S, out Raw) {
	if items := *f.at(s); items != nil {
		out[f.key] = encodeItems(items, f.fields)
	}
}

func decodeItems[T any](items []any, fields []field[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		m, _ := asMap(item)
		out = append(out, decodeFields(m, fields))
	}
	return out
}

func encodeItems[T any](items []T, fields []field[T]) []any {
	out := make([]any, 0, len(items))
	for i := range items {
		out = append(out, encodeFields(&items[i], fields))
	}
	return out
}

// coords reads the RC tuple positionally. Short arrays leave the trailing
// members at their zero value
type coords[S any] struct {
	key string
	at  func(*S) **ResidenceCoords
}

func (f coords[S]) decode(raw Raw, s *S) {
	items, ok := asList(raw[f.key])
	if !ok {
		return
	}
	var rc ResidenceCoords
	if len(items) > 0 {
		rc.MapID, _ = asInt(items[0])
	}
	if len(items) > 1 {
		rc.X, _ = asFloat(items[1])
	}
	if len(items) > 2 {
		rc.Y, _ = asFloat(items[2])
	}
	if len(items) > 3 {
		rc.ZoneName, _ = asString(items[3])
	}
	*f.at(s) = &rc
}

func (f coords[S]) encode(s *S, out Raw) {
	if rc := *f.at(s); rc != nil {
		out[f.key] = []any{rc.MapID, rc.X, rc.Y, rc.ZoneName}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asMap(v any) (Raw, bool) {
	switch m := v.(type) {
	case Raw:
		return m, m != nil
	case map[string]any:
		return Raw(m), m != nil
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	items, ok := v.([]any)
	return items, ok && items != nil
}
