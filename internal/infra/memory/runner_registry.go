package memory

import (
	"sync"

	"livequiz-service/internal/app"
)

// RunnerRegistry is an in-memory implementation of app.RunnerRegistry.
type RunnerRegistry struct {
	mu      sync.RWMutex
	runners map[string]*app.Runner
}

func NewRunnerRegistry() *RunnerRegistry {
	return &RunnerRegistry{
		runners: make(map[string]*app.Runner),
	}
}

func (r *RunnerRegistry) Put(sessionID string, runner *app.Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[sessionID] = runner
}

func (r *RunnerRegistry) Get(sessionID string) (*app.Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[sessionID]
	return runner, ok
}

func (r *RunnerRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runners, sessionID)
}
