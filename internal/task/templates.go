package task

import "github.com/okume/camassist/pkg/types"

// Templates are built-in task presets loadable without the remote service.
var Templates = []types.Task{
	{
		ID:    "make-tea",
		Title: "Make tea",
		Steps: []string{
			"Boil water in the kettle",
			"Place a tea bag in the cup",
			"Pour hot water into the cup",
			"Steep for three minutes and remove the bag",
		},
	},
	{
		ID:    "pour-over-coffee",
		Title: "Pour-over coffee",
		Steps: []string{
			"Rinse the filter with hot water",
			"Add ground coffee to the filter",
			"Pour water in slow circles until the dripper is full",
			"Wait for the water to drain, then serve",
		},
	},
	{
		ID:    "wash-hands",
		Title: "Wash hands",
		Steps: []string{
			"Wet hands with running water",
			"Apply soap and lather for twenty seconds",
			"Rinse thoroughly",
			"Dry hands with a clean towel",
		},
	},
}

// Template returns the built-in template with the given id.
func Template(id string) (types.Task, bool) {
	for _, tmpl := range Templates {
		if tmpl.ID == id {
			return tmpl, true
		}
	}
	return types.Task{}, false
}
