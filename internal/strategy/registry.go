package strategy

import (
	"Confluence/internal/domain/service"
)

// Registry holds the evaluators that participate in a decision cycle.
type Registry struct {
	evaluators []service.Evaluator
}

// NewRegistry builds a registry from explicit evaluators.
func NewRegistry(evaluators ...service.Evaluator) *Registry {
	return &Registry{evaluators: evaluators}
}

// DefaultRegistry wires the built-in strategy families over a shared sizer.
func DefaultRegistry(sizer *KellySizer) *Registry {
	return NewRegistry(
		NewSqueezeEvaluator(sizer),
		NewORBEvaluator(sizer),
		NewMeanReversionEvaluator(sizer),
		NewGapEvaluator(sizer),
		NewOvernightEvaluator(sizer),
	)
}

// Evaluators returns the registered evaluators in registration order.
func (r *Registry) Evaluators() []service.Evaluator {
	return r.evaluators
}

// Names returns the registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.evaluators))
	for _, ev := range r.evaluators {
		names = append(names, ev.Name())
	}
	return names
}
