package history

import (
	"github.com/latticehq/lattice/internal/model"
)

// DefaultDepth bounds both stacks when no depth is configured.
const DefaultDepth = 100

type entry struct {
	seq uint64
	cmd Command
}

// Stack is the two-stack undo/redo log. Do pushes the inverse of every
// applied command onto the undo stack and clears the redo stack; Undo and
// Redo shuttle inverses between the two. Empty-stack Undo/Redo are no-ops,
// not errors.
type Stack struct {
	undo  []entry
	redo  []entry
	depth int
	seq   uint64
}

// NewStack creates a history stack bounded to the given depth.
// A non-positive depth falls back to DefaultDepth.
func NewStack(depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Stack{depth: depth}
}

// Do applies the command and records its inverse. The redo stack is cleared:
// a new command forks history.
func (s *Stack) Do(g *model.Graph, cmd Command) error {
	inv, err := cmd.Apply(g)
	if err != nil {
		return err
	}
	if inv == nil {
		// A command that applied cleanly but produced no inverse breaks
		// the log's core invariant. Fail loudly rather than record a hole.
		panic("history: command " + cmd.Name() + " returned no inverse")
	}
	s.seq++
	s.undo = push(s.undo, entry{seq: s.seq, cmd: inv}, s.depth)
	s.redo = s.redo[:0]
	return nil
}

// Undo applies the most recent inverse. It reports whether anything was
// undone; an empty stack is a no-op.
func (s *Stack) Undo(g *model.Graph) (bool, error) {
	if len(s.undo) == 0 {
		return false, nil
	}
	e := s.undo[len(s.undo)-1]
	inv, err := e.cmd.Apply(g)
	if err != nil {
		return false, err
	}
	if inv == nil {
		panic("history: undo of " + e.cmd.Name() + " returned no inverse")
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = push(s.redo, entry{seq: e.seq, cmd: inv}, s.depth)
	return true, nil
}

// Redo is symmetric to Undo.
func (s *Stack) Redo(g *model.Graph) (bool, error) {
	if len(s.redo) == 0 {
		return false, nil
	}
	e := s.redo[len(s.redo)-1]
	inv, err := e.cmd.Apply(g)
	if err != nil {
		return false, err
	}
	if inv == nil {
		panic("history: redo of " + e.cmd.Name() + " returned no inverse")
	}
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = push(s.undo, entry{seq: e.seq, cmd: inv}, s.depth)
	return true, nil
}

// CanUndo reports whether the undo stack is non-empty.
func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// Clear drops both stacks. Called when a snapshot is loaded wholesale.
func (s *Stack) Clear() {
	s.undo = s.undo[:0]
	s.redo = s.redo[:0]
}

func push(stack []entry, e entry, depth int) []entry {
	stack = append(stack, e)
	if len(stack) > depth {
		// Evict the oldest entry; history beyond the bound is forgotten.
		copy(stack, stack[1:])
		stack = stack[:len(stack)-1]
	}
	return stack
}
