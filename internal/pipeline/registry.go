package pipeline

import (
	"context"
	"fmt"
	"sort"

	"arkline/internal/records"
)

// Handler performs the domain work of one step. Handlers report recoverable
// domain failures by setting the step to error with a readable log message
// and returning nil; a returned error means something unexpected broke and
// is handled at the dispatch boundary.
type Handler interface {
	Execute(ctx context.Context, record *records.Record, step *records.Step) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, record *records.Record, step *records.Step) error

func (f HandlerFunc) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	return f(ctx, record, step)
}

// Registry maps step types to their handlers. It is built explicitly at
// process start and injected into the dispatcher; manual steps have no
// handler by design.
type Registry struct {
	handlers map[records.StepType]Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[records.StepType]Handler)}
}

// Register binds a handler to a step type. Binding the same type twice or
// binding an unknown type is a programming error surfaced at startup.
func (r *Registry) Register(stepType records.StepType, handler Handler) error {
	if _, ok := records.ParseStepType(string(stepType)); !ok {
		return fmt.Errorf("unknown step type %q", stepType)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for step type %q", stepType)
	}
	if _, exists := r.handlers[stepType]; exists {
		return fmt.Errorf("handler already registered for step type %q", stepType)
	}
	r.handlers[stepType] = handler
	return nil
}

// Resolve returns the handler bound to a step type.
func (r *Registry) Resolve(stepType records.StepType) (Handler, bool) {
	handler, ok := r.handlers[stepType]
	return handler, ok
}

// Types returns the registered step types in stable order.
func (r *Registry) Types() []records.StepType {
	types := make([]records.StepType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
