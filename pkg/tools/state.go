package tools

import (
	"sync"

	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

var _ tooltypes.State = &BasicState{}

// BasicState tracks which skills the model has activated during one run.
// It is safe for concurrent use.
type BasicState struct {
	mu     sync.Mutex
	active map[string]struct{}
	order  []string
}

// NewBasicState creates an empty run state.
func NewBasicState() *BasicState {
	return &BasicState{
		active: make(map[string]struct{}),
	}
}

// ActivateSkill marks the skill as active. It returns false when the skill
// was already active.
func (s *BasicState) ActivateSkill(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[id]; exists {
		return false
	}
	s.active[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// ActiveSkills returns the activated skill ids in activation order.
func (s *BasicState) ActiveSkills() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
