package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"founderos-api/internal/ai"
)

// ErrNoPhasesFound means the model produced valid JSON but no phases could
// be extracted from the text.
var ErrNoPhasesFound = errors.New("no phases found in text")

const importSystemPrompt = `You are a project planning assistant. The user will provide raw text (markdown, plain text, bullet points, numbered lists, or even prose) that describes a project plan, roadmap, or scope document.

Your job is to extract a structured list of **phases** and **milestones** from the text. Follow these rules:

1. Each phase represents a major stage or category of work.
2. Each milestone is a concrete, actionable task within a phase.
3. If the text has clear headings/sections, use those as phase titles.
4. If the text is a flat list, group related items into logical phases.
5. Preserve the original ordering.
6. Keep titles concise but descriptive (max 80 chars).
7. Add a brief description to milestones ONLY if the source text provides additional detail beyond the title.
8. If a phase has a description in the source, include it.
9. Aim for 2-8 milestones per phase. Split large phases if needed.
10. Do NOT invent milestones that aren't in the source text.

Respond with ONLY valid JSON matching this exact schema:
{
  "phases": [
    {
      "title": "Phase title",
      "description": "Optional phase description or null",
      "milestones": [
        {
          "title": "Milestone title",
          "description": "Optional description or null"
        }
      ]
    }
  ]
}

No markdown fences, no commentary, just the JSON object.`

type ImportMilestone struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type ImportPhase struct {
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Milestones  []ImportMilestone `json:"milestones"`
}

// ImportPreview is the structured result of parsing planning text. It is a
// preview only; persisting phases and milestones is up to the caller.
type ImportPreview struct {
	Phases          []ImportPhase `json:"phases"`
	TotalPhases     int           `json:"total_phases"`
	TotalMilestones int           `json:"total_milestones"`
}

// JSONCompleter is a chat completion constrained to a JSON object response.
type JSONCompleter interface {
	HasCredentials() bool
	CompleteJSON(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type ImportService struct {
	completer JSONCompleter
}

func NewImportService(completer JSONCompleter) *ImportService {
	return &ImportService{completer: completer}
}

// ParseText asks the model to extract phases and milestones from raw
// planning text.
func (s *ImportService) ParseText(ctx context.Context, content string) (*ImportPreview, error) {
	if !s.completer.HasCredentials() {
		return nil, fmt.Errorf("%w: no API key configured", ai.ErrGenerationProvider)
	}

	raw, err := s.completer.CompleteJSON(ctx, []ai.ChatMessage{
		{Role: "system", Content: importSystemPrompt},
		{Role: "user", Content: content},
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ai.ErrGenerationProvider)
	}

	var parsed struct {
		Phases []ImportPhase `json:"phases"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ai.ErrGenerationProvider, err)
	}
	if len(parsed.Phases) == 0 {
		return nil, ErrNoPhasesFound
	}

	preview := &ImportPreview{Phases: parsed.Phases, TotalPhases: len(parsed.Phases)}
	for i := range parsed.Phases {
		if parsed.Phases[i].Title == "" {
			parsed.Phases[i].Title = "Untitled Phase"
		}
		for j := range parsed.Phases[i].Milestones {
			if parsed.Phases[i].Milestones[j].Title == "" {
				parsed.Phases[i].Milestones[j].Title = "Untitled"
			}
		}
		preview.TotalMilestones += len(parsed.Phases[i].Milestones)
	}
	return preview, nil
}
