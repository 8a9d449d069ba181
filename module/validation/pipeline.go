package validation

// Validator checks a single item. Implementations hold read-only references
// to consensus rules and chain state and keep no per-item state.
type Validator[T any] interface {
	Validate(item T) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[T any] func(item T) error

func (f ValidatorFunc[T]) Validate(item T) error {
	return f(item)
}

// Pipeline runs validators in insertion order and stops at the first failure.
// An empty pipeline accepts every item.
type Pipeline[T any] struct {
	validators []Validator[T]
}

var _ Validator[int] = (*Pipeline[int])(nil)

// NewPipeline returns a pipeline of the given validators.
func NewPipeline[T any](validators ...Validator[T]) *Pipeline[T] {
	p := &Pipeline[T]{}
	for _, v := range validators {
		p.Push(v)
	}
	return p
}

// Push appends a validator and returns the pipeline for chaining.
func (p *Pipeline[T]) Push(v Validator[T]) *Pipeline[T] {
	p.validators = append(p.validators, v)
	return p
}

// Len returns the number of validators.
func (p *Pipeline[T]) Len() int {
	return len(p.validators)
}

// Validate returns the error of the first failing validator. Validators
// after it are not invoked.
func (p *Pipeline[T]) Validate(item T) error {
	for _, v := range p.validators {
		err := v.Validate(item)
		if err != nil {
			return err
		}
	}
	return nil
}
