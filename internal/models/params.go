// Package models defines the data structures shared by the slidered packages.
// JSON field names are the wire format of the HTTP API and the UI protocol.
package models

// Parameter bounds of the range control every parameter is edited with.
const (
	ParamMin = 1
	ParamMax = 100
)

// Params is the editable state of one document: an ordered mapping from
// parameter name to numeric value. Iteration order is first-insertion order.
// The zero value is not usable; call NewParams.
type Params struct {
	keys   []string
	values map[string]float64
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]float64)}
}

// Set writes value under key, appending key if it is not present yet.
func (p *Params) Set(key string, value float64) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (float64, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the parameter names in iteration order.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int { return len(p.keys) }

// Each calls fn for every pair in iteration order.
func (p *Params) Each(fn func(key string, value float64)) {
	for _, k := range p.keys {
		fn(k, p.values[k])
	}
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	cp := &Params{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]float64, len(p.values)),
	}
	copy(cp.keys, p.keys)
	for k, v := range p.values {
		cp.values[k] = v
	}
	return cp
}

// Equal reports whether p and o hold the same keys with the same values.
// Order is not compared.
func (p *Params) Equal(o *Params) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.values) != len(o.values) {
		return false
	}
	for k, v := range p.values {
		ov, ok := o.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
