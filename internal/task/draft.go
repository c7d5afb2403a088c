// Package task holds the client-side task form state: exactly one mutable
// draft exists at a time, and its step list never goes empty.
package task

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/okume/camassist/pkg/types"
)

// MaxImageBytes is the attachment size limit for a step image.
const MaxImageBytes = 5 << 20

var (
	// ErrLastStep means the removal would leave the draft without steps.
	ErrLastStep = errors.New("cannot remove the last remaining step")
	// ErrImageTooLarge means the attachment exceeded MaxImageBytes.
	ErrImageTooLarge = fmt.Errorf("image exceeds %d MB limit", MaxImageBytes>>20)
	// ErrUnknownStep means no step with the given id exists.
	ErrUnknownStep = errors.New("unknown step id")
	// ErrInvalid wraps all validation failures.
	ErrInvalid = errors.New("invalid draft")
)

// Draft is the in-progress task: a title and an ordered, never-empty list
// of instruction steps.
type Draft struct {
	mu     sync.Mutex
	title  string
	steps  []types.InstructionStep
	nextID int
}

// NewDraft creates a draft with one empty step.
func NewDraft() *Draft {
	d := &Draft{}
	d.steps = append(d.steps, d.newStep())
	return d
}

func (d *Draft) newStep() types.InstructionStep {
	d.nextID++
	return types.InstructionStep{ID: fmt.Sprintf("step-%d", d.nextID)}
}

// AddStep appends a new empty step and returns it.
func (d *Draft) AddStep() types.InstructionStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	step := d.newStep()
	d.steps = append(d.steps, step)
	return step
}

// RemoveStep deletes a step. Removing the only step is refused.
func (d *Draft) RemoveStep(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.steps) <= 1 {
		return ErrLastStep
	}
	idx := d.indexLocked(id)
	if idx < 0 {
		return ErrUnknownStep
	}
	d.steps = append(d.steps[:idx], d.steps[idx+1:]...)
	return nil
}

// UpdateStepText replaces one step's text.
func (d *Draft) UpdateStepText(id, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return ErrUnknownStep
	}
	d.steps[idx].Text = text
	return nil
}

// AttachImage attaches image bytes to a step. Oversized attachments are
// rejected and the step's image stays unset.
func (d *Draft) AttachImage(id string, data []byte) error {
	if len(data) > MaxImageBytes {
		return ErrImageTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return ErrUnknownStep
	}
	d.steps[idx].Image = data
	d.steps[idx].HasImage = len(data) > 0
	return nil
}

// RemoveImage clears a step's attachment.
func (d *Draft) RemoveImage(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return ErrUnknownStep
	}
	d.steps[idx].Image = nil
	d.steps[idx].HasImage = false
	return nil
}

// SetTitle replaces the draft title.
func (d *Draft) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// Load replaces the title and step list wholesale from a fetched task.
// Server tasks carry text only, so every loaded step has its image unset.
func (d *Draft) Load(task types.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.title = task.Title
	d.steps = d.steps[:0]
	for _, text := range task.Steps {
		step := d.newStep()
		step.Text = text
		d.steps = append(d.steps, step)
	}
	if len(d.steps) == 0 {
		d.steps = append(d.steps, d.newStep())
	}
}

// Snapshot returns the title and a copy of the step list.
func (d *Draft) Snapshot() (string, []types.InstructionStep) {
	d.mu.Lock()
	defer d.mu.Unlock()

	steps := make([]types.InstructionStep, len(d.steps))
	copy(steps, d.steps)
	return d.title, steps
}

// Validate checks that the title and every step text are non-empty. The
// returned error names the first offending field.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if strings.TrimSpace(d.title) == "" {
		return fmt.Errorf("%w: task title is empty", ErrInvalid)
	}
	for i, step := range d.steps {
		if strings.TrimSpace(step.Text) == "" {
			return fmt.Errorf("%w: step %d has no text", ErrInvalid, i+1)
		}
	}
	return nil
}

func (d *Draft) indexLocked(id string) int {
	for i, step := range d.steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}
