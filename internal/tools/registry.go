package tools

import "hypertrader/pkg/errors"

// Registry stores tools by name in registration order.
// It is populated once at startup and is read-only afterwards, so it can be shared
// by concurrent sessions without locking.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Registering an existing name fails with *DuplicateToolError.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.Wrap(errors.ErrInvalidInput, "tool is nil")
	}

	name := t.Spec().Name
	if name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "tool name is empty")
	}
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}

	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers a tool and panics on error. Used by startup wiring.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name, failing with *UnknownToolError.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Specs returns all tool specs in registration order.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Definition is a provider-neutral function declaration offered to the model
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Definitions renders every spec as a JSON-schema function declaration, in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, spec := range r.Specs() {
		defs = append(defs, Definition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.JSONSchema(),
		})
	}
	return defs
}
