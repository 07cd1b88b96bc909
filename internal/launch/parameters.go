package launch

import (
	"fmt"
	"strings"

	"xnatflow/internal/services"
)

// Parameter is one named launcher parameter with ordered values.
type Parameter struct {
	Name   string
	Values []string
}

// Parameters preserves the order names were first given in.
type Parameters []Parameter

// Get returns every value for name.
func (p Parameters) Get(name string) []string {
	for _, param := range p {
		if param.Name == name {
			return param.Values
		}
	}
	return nil
}

// First returns the first value for name.
func (p Parameters) First(name string) (string, bool) {
	values := p.Get(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Add appends values under name, creating the entry if needed.
func (p Parameters) Add(name string, values ...string) Parameters {
	for i := range p {
		if p[i].Name == name {
			p[i].Values = append(p[i].Values, values...)
			return p
		}
	}
	return append(p, Parameter{Name: name, Values: append([]string(nil), values...)})
}

// ParseParameterFlags reads launcher-style "name=v1,v2" flags. A repeated name
// accumulates values in order.
func ParseParameterFlags(flags []string) (Parameters, error) {
	var params Parameters
	for _, raw := range flags {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, services.Wrap(services.ErrValidation, "launch", "parameters",
				fmt.Sprintf("invalid parameter %q (want name=value[,value...])", raw), nil)
		}
		var values []string
		if value != "" {
			values = strings.Split(value, ",")
		}
		params = params.Add(name, values...)
	}
	return params, nil
}
