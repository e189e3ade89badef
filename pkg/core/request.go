package core

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Params is an insertion-ordered set of query parameters. The order in which keys are first
// set is the order in which they are encoded; setting an existing key replaces its value in place.
// A nil *Params behaves as an empty set.
type Params struct {
	keys   []string
	values map[string]any
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Set stores value under key and returns p for chaining.
func (p *Params) Set(key string, value any) *Params {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of keys, including keys whose value is absent.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Clone returns an independent copy of p.
func (p *Params) Clone() *Params {
	c := NewParams()
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Compact returns a copy of p without the keys whose value is absent: nil, a nil pointer,
// or a nil slice. Relative order of the remaining keys is preserved.
func (p *Params) Compact() *Params {
	c := NewParams()
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		v := p.values[k]
		if IsAbsent(v) {
			continue
		}
		c.Set(k, v)
	}
	return c
}

// Encode joins the parameters as key=value pairs separated by '&' without escaping.
// This is the exact form covered by a request signature. An empty set encodes to "".
func (p *Params) Encode() string {
	return p.encode(func(s string) string { return s })
}

// EncodeEscaped is Encode with keys and values query-escaped, preserving order.
func (p *Params) EncodeEscaped() string {
	return p.encode(url.QueryEscape)
}

func (p *Params) encode(escape func(string) string) string {
	if p.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escape(k))
		sb.WriteByte('=')
		sb.WriteString(escape(FormatValue(p.values[k])))
	}
	return sb.String()
}

// IsAbsent reports whether v should be treated as a missing parameter.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// FormatValue renders a parameter value the way the exchange expects it on the query string.
// Booleans are lowercase, floats use the shortest exact representation and string slices are
// comma separated.
func FormatValue(v any) string {
	if IsAbsent(v) {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ",")
	case fmt.Stringer:
		return val.String()
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		return FormatValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// Request describes a single REST call.
type Request struct {
	Method string  `json:"method"`
	Path   string  `json:"path"`
	Params *Params `json:"-"`
	// Signed requests carry recvWindow, timestamp and signature and the API key header.
	Signed bool `json:"signed"`
	// Weight is the number of rate limit tokens the call consumes.
	Weight int `json:"weight"`
}

// NewRequest creates an unsigned request with weight 1 and empty params.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Params: NewParams(),
		Weight: 1,
	}
}

// SetParam sets a single query parameter.
func (r *Request) SetParam(key string, value any) *Request {
	if r.Params == nil {
		r.Params = NewParams()
	}
	r.Params.Set(key, value)
	return r
}

// SetParams replaces the parameter set. The request keeps a reference to params.
func (r *Request) SetParams(params *Params) *Request {
	r.Params = params
	return r
}

func (r *Request) SetSigned(signed bool) *Request {
	r.Signed = signed
	return r
}

func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}
