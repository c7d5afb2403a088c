package task

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okume/camassist/pkg/types"
)

func TestNewDraftHasOneStep(t *testing.T) {
	d := NewDraft()

	_, steps := d.Snapshot()
	assert.Len(t, steps, 1)
	assert.Empty(t, steps[0].Text)
	assert.False(t, steps[0].HasImage)
}

func TestAddAndRemoveSteps(t *testing.T) {
	d := NewDraft()

	s2 := d.AddStep()
	s3 := d.AddStep()
	_, steps := d.Snapshot()
	assert.Len(t, steps, 3)
	assert.NotEqual(t, s2.ID, s3.ID)

	assert.NoError(t, d.RemoveStep(s2.ID))
	_, steps = d.Snapshot()
	assert.Len(t, steps, 2)
}

func TestRemoveStepNeverEmptiesList(t *testing.T) {
	d := NewDraft()
	_, steps := d.Snapshot()

	err := d.RemoveStep(steps[0].ID)
	assert.ErrorIs(t, err, ErrLastStep)

	_, steps = d.Snapshot()
	assert.Len(t, steps, 1)

	// Same guard holds after growing and shrinking back down.
	s2 := d.AddStep()
	assert.NoError(t, d.RemoveStep(steps[0].ID))
	assert.ErrorIs(t, d.RemoveStep(s2.ID), ErrLastStep)
}

func TestRemoveUnknownStep(t *testing.T) {
	d := NewDraft()
	d.AddStep()
	assert.ErrorIs(t, d.RemoveStep("nope"), ErrUnknownStep)
}

func TestUpdateStepText(t *testing.T) {
	d := NewDraft()
	_, steps := d.Snapshot()

	assert.NoError(t, d.UpdateStepText(steps[0].ID, "Boil water"))
	_, steps = d.Snapshot()
	assert.Equal(t, "Boil water", steps[0].Text)

	assert.ErrorIs(t, d.UpdateStepText("nope", "x"), ErrUnknownStep)
}

func TestAttachImageSizeLimit(t *testing.T) {
	d := NewDraft()
	_, steps := d.Snapshot()
	id := steps[0].ID

	tooBig := bytes.Repeat([]byte{0xab}, MaxImageBytes+1)
	assert.ErrorIs(t, d.AttachImage(id, tooBig), ErrImageTooLarge)

	_, steps = d.Snapshot()
	assert.False(t, steps[0].HasImage, "oversized attach must leave image unset")
	assert.Nil(t, steps[0].Image)

	small := []byte{0xff, 0xd8, 0xff, 0xd9}
	assert.NoError(t, d.AttachImage(id, small))
	_, steps = d.Snapshot()
	assert.True(t, steps[0].HasImage)

	assert.NoError(t, d.RemoveImage(id))
	_, steps = d.Snapshot()
	assert.False(t, steps[0].HasImage)
}

func TestLoadReplacesDraft(t *testing.T) {
	d := NewDraft()
	d.SetTitle("old")
	_, steps := d.Snapshot()
	assert.NoError(t, d.AttachImage(steps[0].ID, []byte{1, 2, 3}))

	d.Load(types.Task{
		ID:    "t1",
		Title: "Make tea",
		Steps: []string{"Boil water", "Pour into cup"},
	})

	title, steps := d.Snapshot()
	assert.Equal(t, "Make tea", title)
	assert.Len(t, steps, 2)
	assert.Equal(t, "Boil water", steps[0].Text)
	assert.Equal(t, "Pour into cup", steps[1].Text)
	for _, s := range steps {
		assert.False(t, s.HasImage, "loaded steps never carry images")
	}
}

func TestLoadEmptyTaskKeepsOneStep(t *testing.T) {
	d := NewDraft()
	d.Load(types.Task{Title: "blank"})

	_, steps := d.Snapshot()
	assert.Len(t, steps, 1)
}

func TestValidate(t *testing.T) {
	d := NewDraft()
	assert.ErrorIs(t, d.Validate(), ErrInvalid) // empty title

	d.SetTitle("Make tea")
	assert.ErrorIs(t, d.Validate(), ErrInvalid) // empty step text

	_, steps := d.Snapshot()
	assert.NoError(t, d.UpdateStepText(steps[0].ID, "Boil water"))
	assert.NoError(t, d.Validate())

	s2 := d.AddStep()
	assert.ErrorIs(t, d.Validate(), ErrInvalid)
	assert.NoError(t, d.UpdateStepText(s2.ID, "   "))
	assert.ErrorIs(t, d.Validate(), ErrInvalid, "whitespace-only text is empty")
}

func TestTemplateLookup(t *testing.T) {
	tmpl, ok := Template("make-tea")
	assert.True(t, ok)
	assert.Equal(t, "Make tea", tmpl.Title)
	assert.NotEmpty(t, tmpl.Steps)

	_, ok = Template("missing")
	assert.False(t, ok)
}
