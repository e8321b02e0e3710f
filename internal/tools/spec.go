package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hypertrader/pkg/errors"
)

// ParamType is the JSON-schema type of a tool parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// ParamSpec describes one tool parameter
type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
	Enum        []string
}

// Spec is the declarative description of a tool shown to the model.
// Specs are immutable once registered.
type Spec struct {
	Name        string
	Description string
	Params      []ParamSpec
	// Trading marks tools that can place real orders
	Trading bool
}

// Param returns the parameter by name
func (s Spec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// JSONSchema renders the parameter list as a JSON-schema object, preserving order
// in the "required" list.
func (s Spec) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Params))
	required := make([]string, 0, len(s.Params))

	for _, p := range s.Params {
		prop := map[string]interface{}{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = append([]string(nil), p.Enum...)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Validate checks args against the spec and normalizes JSON numbers: integer
// params decoded as float64 become int. Unknown arguments are ignored.
func (s Spec) Validate(args Args) (Args, error) {
	out := make(Args, len(args))
	for k, v := range args {
		out[k] = v
	}

	var errs errors.MultiError
	for _, p := range s.Params {
		v, present := out[p.Name]
		if !present || v == nil {
			if p.Required {
				errs.Add(errors.NewValidationError(p.Name, "is required", nil))
			}
			delete(out, p.Name)
			continue
		}

		nv, err := coerce(p, v)
		if err != nil {
			errs.Add(err)
			continue
		}
		out[p.Name] = nv
	}

	if err := errs.ToError(); err != nil {
		return nil, errors.Wrapf(err, "%s", s.Name)
	}
	return out, nil
}

func coerce(p ParamSpec, v interface{}) (interface{}, error) {
	switch p.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return nil, errors.NewValidationError(p.Name, "must be a string", v)
		}
		if p.Required && strings.TrimSpace(str) == "" {
			return nil, errors.NewValidationError(p.Name, "must not be empty", v)
		}
		if len(p.Enum) > 0 && !containsFold(p.Enum, str) {
			return nil, errors.NewValidationError(p.Name, fmt.Sprintf("must be one of %v", p.Enum), v)
		}
		return str, nil

	case TypeNumber:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.NewValidationError(p.Name, "must be a number", v)
		}
		// Decimal text keeps its exact value for money arguments
		switch n := v.(type) {
		case decimal.Decimal:
			return n, nil
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
				return d, nil
			}
		}
		return f, nil

	case TypeInteger:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return nil, errors.NewValidationError(p.Name, "must be an integer", v)
		}
		return int(f), nil

	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, errors.NewValidationError(p.Name, "must be a boolean", v)
			}
			return parsed, nil
		default:
			return nil, errors.NewValidationError(p.Name, "must be a boolean", v)
		}

	case TypeObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return nil, errors.NewValidationError(p.Name, "must be an object", v)
		}
		return v, nil

	case TypeArray:
		if _, ok := v.([]interface{}); !ok {
			return nil, errors.NewValidationError(p.Name, "must be an array", v)
		}
		return v, nil
	}

	return v, nil
}

// toFloat accepts JSON numbers and numeric strings, which some models emit
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case decimal.Decimal:
		return n.InexactFloat64(), true
	default:
		return 0, false
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// SpecBuilder assembles a Spec with a fluent API
type SpecBuilder struct {
	spec Spec
}

// NewSpec starts a spec
func NewSpec(name, description string) *SpecBuilder {
	return &SpecBuilder{spec: Spec{Name: name, Description: description}}
}

// Required adds a required parameter
func (b *SpecBuilder) Required(name string, typ ParamType, description string) *SpecBuilder {
	b.spec.Params = append(b.spec.Params, ParamSpec{Name: name, Type: typ, Required: true, Description: description})
	return b
}

// Optional adds an optional parameter
func (b *SpecBuilder) Optional(name string, typ ParamType, description string) *SpecBuilder {
	b.spec.Params = append(b.spec.Params, ParamSpec{Name: name, Type: typ, Description: description})
	return b
}

// Enum restricts the last added parameter to the given values
func (b *SpecBuilder) Enum(values ...string) *SpecBuilder {
	if n := len(b.spec.Params); n > 0 {
		b.spec.Params[n-1].Enum = values
	}
	return b
}

// Trading marks the tool as able to place real orders
func (b *SpecBuilder) Trading() *SpecBuilder {
	b.spec.Trading = true
	return b
}

// Build returns a copy of the spec so later builder calls cannot mutate it
func (b *SpecBuilder) Build() Spec {
	s := b.spec
	s.Params = make([]ParamSpec, len(b.spec.Params))
	for i, p := range b.spec.Params {
		p.Enum = append([]string(nil), p.Enum...)
		s.Params[i] = p
	}
	return s
}
