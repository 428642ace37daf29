package pipeline

import (
	"fmt"
	"sync"

	"github.com/voidshard/harvester/pkg/errors"
)

// Registry holds the stages (by data type) and pipelines (by name) a worker can run.
type Registry struct {
	lock      sync.RWMutex
	stages    map[string]Stage
	pipelines map[string]*Pipeline
}

func NewRegistry() *Registry {
	return &Registry{
		stages:    map[string]Stage{},
		pipelines: map[string]*Pipeline{},
	}
}

// RegisterStage makes a stage available under its data type.
func (r *Registry) RegisterStage(s Stage) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if s.DataType() == "" {
		return fmt.Errorf("%w stage %s has no data type", errors.ErrInvalidArg, s.Name())
	}
	if _, ok := r.stages[s.DataType()]; ok {
		return fmt.Errorf("%w stage for data type %s already registered", errors.ErrInvalidArg, s.DataType())
	}
	r.stages[s.DataType()] = s
	return nil
}

// Stage returns the stage registered for the data type.
func (r *Registry) Stage(dataType string) (Stage, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.stages[dataType]
	if !ok {
		return nil, fmt.Errorf("%w no stage for data type %s", errors.ErrNotFound, dataType)
	}
	return s, nil
}

// RegisterPipeline makes a pipeline available under its name.
func (r *Registry) RegisterPipeline(p *Pipeline) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if p.Name == "" || len(p.Stages) == 0 {
		return fmt.Errorf("%w pipeline requires a name and at least one stage", errors.ErrInvalidArg)
	}
	if _, ok := r.pipelines[p.Name]; ok {
		return fmt.Errorf("%w pipeline %s already registered", errors.ErrInvalidArg, p.Name)
	}
	names := map[string]bool{}
	for _, s := range p.Stages {
		if names[s.Name()] {
			return fmt.Errorf("%w pipeline %s has duplicate stage %s", errors.ErrInvalidArg, p.Name, s.Name())
		}
		names[s.Name()] = true
	}
	r.pipelines[p.Name] = p
	return nil
}

// Compose registers a pipeline made of the stages registered for the given data types, in order.
func (r *Registry) Compose(name string, dataTypes ...string) (*Pipeline, error) {
	p := &Pipeline{Name: name}
	for _, dt := range dataTypes {
		s, err := r.Stage(dt)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, s)
	}
	return p, r.RegisterPipeline(p)
}

// Pipeline returns the pipeline registered under name.
func (r *Registry) Pipeline(name string) (*Pipeline, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w %s", errors.ErrNoPipeline, name)
	}
	return p, nil
}

// Pipelines returns the names of all registered pipelines.
func (r *Registry) Pipelines() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		out = append(out, name)
	}
	return out
}
