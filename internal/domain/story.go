package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Story is the unit of work tracked through discovery, refinement, validation,
// and publish-or-kill. One record per pipeline journey, kept forever —
// rejected and failed stories included.
type Story struct {
	ID string

	// Prompt references recorded as each stage picks them up.
	DiscoveryPromptID  string
	RefinementPromptID string
	ValidationPromptID string

	// Routing snapshot copied from the discovery prompt at creation time.
	// Later prompt edits never touch an in-flight or finished story.
	Opportunity  string
	Region       string
	Publications string
	Topic        string
	Context      string

	DiscoveryInput  string
	DiscoveryOutput string
	Enrichments     map[string]Enrichment

	SelectedStory    string
	RefinementInput  string
	RefinementOutput string

	ValidationInput  string
	ValidationOutput string
	Verdict          Verdict

	Published      bool
	PublishReceipt string
	PublishedAt    time.Time

	State     State
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrichment holds best-effort metadata fetched for one URL found in
// discovery output.
type Enrichment struct {
	Type       string `json:"type"`
	AuthorName string `json:"author_name,omitempty"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at,omitempty"`
	URL        string `json:"url"`
}

// Enrichment type markers.
const (
	EnrichmentSocial  = "social"
	EnrichmentWebsite = "website"
)

// Verdict is the tri-state outcome of validation. The zero value means no
// verdict has been reached yet.
type Verdict string

const (
	VerdictUnknown  Verdict = ""
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// NewStory creates a story from a discovery prompt, snapshotting its routing
// metadata. The actor is recorded for audit, never read back as behavior.
func NewStory(prompt *Prompt, actor string) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:                uuid.NewString(),
		DiscoveryPromptID: prompt.ID,
		DiscoveryInput:    prompt.Text,
		Opportunity:       prompt.Opportunity,
		Region:            prompt.Region,
		Publications:      prompt.Publications,
		Topic:             prompt.Topic,
		Context:           prompt.Context,
		State:             StateCreated,
		CreatedBy:         actor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// RoutingContext renders the non-empty snapshot fields as "Label: value"
// lines for prompt assembly.
func (s *Story) RoutingContext() string {
	var parts []string
	if s.Opportunity != "" {
		parts = append(parts, "Opportunity: "+s.Opportunity)
	}
	if s.Region != "" {
		parts = append(parts, "Region: "+s.Region)
	}
	if s.Publications != "" {
		parts = append(parts, "Target Publications: "+s.Publications)
	}
	if s.Topic != "" {
		parts = append(parts, "Topic: "+s.Topic)
	}
	if s.Context != "" {
		parts = append(parts, "Context: "+s.Context)
	}
	return strings.Join(parts, "\n")
}
