package domain

import "time"

// PromptType separates the three prompt roles in the library.
type PromptType string

const (
	PromptDiscovery  PromptType = "discovery"
	PromptRefinement PromptType = "refinement"
	PromptValidation PromptType = "validation"
)

// Prompt is one entry in the prompt library. Routing metadata is only
// populated on discovery prompts; the other types use the common fields.
type Prompt struct {
	ID          string
	Type        PromptType
	Name        string
	Text        string
	Description string
	Active      bool

	// Routing metadata, discovery prompts only.
	Opportunity  string
	Region       string
	Publications string
	Topic        string
	Context      string

	CreatedAt time.Time
	UpdatedAt time.Time
}
