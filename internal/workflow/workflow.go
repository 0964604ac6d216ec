// Package workflow implements Chimera's DAG workflow orchestrator: a
// minimal wave-based scheduler for the four-step deployment workflow
// (build, sync, session, execute), with cycle detection and typed
// failure propagation.
package workflow

import (
	"context"
	"fmt"
	"sync"
)

// StepFunc executes one workflow step. It receives the shared
// configuration context and a read-only snapshot of results completed
// so far (the step's own dependencies are guaranteed present).
type StepFunc func(ctx context.Context, env map[string]interface{}, completed map[string]interface{}) (interface{}, error)

// Step is one node of the dependency graph.
type Step struct {
	Name       string
	Execute    StepFunc
	DependsOn  []string
	IsCritical bool
}

// Workflow is an unordered collection of steps forming a dependency DAG.
type Workflow struct {
	Steps []Step
}

// CircularDependencyError reports a cycle detected during the
// pre-flight acyclic check.
type CircularDependencyError struct {
	StepName string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("workflow: circular dependency detected at step %q", e.StepName)
}

// UnsatisfiedDependenciesError reports that a wave came up empty while
// steps remained pending — unreachable after a successful cycle check,
// but kept as a safety net.
type UnsatisfiedDependenciesError struct {
	Pending []string
}

func (e *UnsatisfiedDependenciesError) Error() string {
	return fmt.Sprintf("workflow: unsatisfied dependencies, pending steps: %v", e.Pending)
}

// CriticalStepFailedError reports that a critical step's execute
// function returned an error, aborting the workflow.
type CriticalStepFailedError struct {
	StepName string
	Cause    error
}

func (e *CriticalStepFailedError) Error() string {
	return fmt.Sprintf("workflow: critical step %q failed: %v", e.StepName, e.Cause)
}

func (e *CriticalStepFailedError) Unwrap() error {
	return e.Cause
}

// checkAcyclic runs a DFS with an explicit recursion-stack set; any
// back-edge into a step still on the stack is reported as a cycle.
func checkAcyclic(steps []Step) error {
	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(steps))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case inProgress:
			return &CircularDependencyError{StepName: name}
		case done:
			return nil
		}
		state[name] = inProgress
		for _, dep := range byName[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, s := range steps {
		if err := visit(s.Name); err != nil {
			return err
		}
	}
	return nil
}

type waveResult struct {
	name  string
	value interface{}
	err   error
}

// Run executes the workflow to completion, returning a map of step name
// to result. It fails fast with the first critical-step error
// encountered within a wave.
func (w Workflow) Run(ctx context.Context, env map[string]interface{}) (map[string]interface{}, error) {
	if err := checkAcyclic(w.Steps); err != nil {
		return nil, err
	}

	byName := make(map[string]Step, len(w.Steps))
	pending := make(map[string]bool, len(w.Steps))
	for _, s := range w.Steps {
		byName[s.Name] = s
		pending[s.Name] = true
	}

	completed := make(map[string]interface{}, len(w.Steps))

	for len(pending) > 0 {
		var wave []Step
		for name := range pending {
			step := byName[name]
			ready := true
			for _, dep := range step.DependsOn {
				if _, ok := completed[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, step)
			}
		}

		if len(wave) == 0 {
			remaining := make([]string, 0, len(pending))
			for name := range pending {
				remaining = append(remaining, name)
			}
			return nil, &UnsatisfiedDependenciesError{Pending: remaining}
		}

		snapshot := make(map[string]interface{}, len(completed))
		for k, v := range completed {
			snapshot[k] = v
		}

		results := make(chan waveResult, len(wave))
		var waveWG sync.WaitGroup
		for _, step := range wave {
			waveWG.Add(1)
			go func(s Step) {
				defer waveWG.Done()
				value, err := s.Execute(ctx, env, snapshot)
				results <- waveResult{name: s.Name, value: value, err: err}
			}(step)
		}
		waveWG.Wait()
		close(results)

		for res := range results {
			delete(pending, res.name)
			if res.err != nil {
				if byName[res.name].IsCritical {
					return nil, &CriticalStepFailedError{StepName: res.name, Cause: res.err}
				}
				completed[res.name] = res.err
				continue
			}
			completed[res.name] = res.value
		}
	}

	return completed, nil
}
