package logic

import (
	"fmt"
	"sync"

	"github.com/gsarrafian/PneumaticsApp/util"
)

// Registry holds the CycleController of every known actuator, keyed by id. It does not change after
// NewRegistry.
type Registry struct {
	controllers map[string]*CycleController
	ids         []string
}

// NewRegistry creates a Registry of controllers, in order. Ids must be unique
func NewRegistry(controllers ...*CycleController) (*Registry, error) {
	r := &Registry{
		controllers: make(map[string]*CycleController, len(controllers)),
		ids:         make([]string, 0, len(controllers)),
	}
	for _, c := range controllers {
		if c.ID == "" {
			return nil, fmt.Errorf("cycle controller with empty id")
		}
		if _, ok := r.controllers[c.ID]; ok {
			return nil, fmt.Errorf("duplicate cycle controller id '%s'", c.ID)
		}
		r.controllers[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}
	return r, nil
}

// Get gets the controller for id, or a not found error
func (r *Registry) Get(id string) (*CycleController, error) {
	c, ok := r.controllers[id]
	if !ok {
		return nil, util.NewNotFoundError("piston", id)
	}
	return c, nil
}

// IDs gets the ids of all controllers in registration order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Controllers gets all controllers in registration order
func (r *Registry) Controllers() []*CycleController {
	cs := make([]*CycleController, len(r.ids))
	for i, id := range r.ids {
		cs[i] = r.controllers[id]
	}
	return cs
}

// RunAll starts the goroutines of all controllers
func (r *Registry) RunAll(wait *sync.WaitGroup) {
	for _, c := range r.Controllers() {
		c.Run(wait)
	}
}

// QuitAll stops all controllers, switching their outputs off
func (r *Registry) QuitAll() {
	for _, c := range r.Controllers() {
		c.Quit()
	}
}
