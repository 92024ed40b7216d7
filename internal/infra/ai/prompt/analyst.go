package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/bryanwahyu/profixion/internal/domain/audits"
)

// SchemaName identifies the structured output format sent to the model.
const SchemaName = "profile_audit"

// GetSystemPrompt returns the reviewer persona and the output rules.
func GetSystemPrompt() string {
	return `You are Profixion, an expert reviewer of professional networking profiles. You receive one scraped profile as JSON and return a structured audit.

Guidelines:
- Act as an encouraging career coach. Be concise, friendly and specific.
- Give advice the person can act on today.
- Never write "N/A" or "NULL". Treat missing sections as an opportunity.
- Take name, headline and profile URL directly from the profile JSON (full_name, headline, url or public_identifier). If the headline is missing, write "No headline provided".
- Return exactly 3 strengths, 2 weaknesses and 2 recommendations.
- Return exactly 4 parameterScores, one each for: ` + strings.Join(quoted(audits.Parameters), ", ") + `. Each score is 0 to 10 with a one-sentence justification.
- overallScore is a whole number from 0 to 100, the weighted average of the parameter scores.`
}

func quoted(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = "'" + s + "'"
	}
	return out
}

// GetUserPrompt wraps the scraped profile.
func GetUserPrompt(profile json.RawMessage) string {
	return fmt.Sprintf("Audit this profile JSON:\n%s", string(profile))
}

// Schema is the JSON schema the model output must satisfy.
func Schema() *jsonschema.Definition {
	str := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}
	list := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}, Description: desc}
	}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"url":             str("The profile URL or public identifier."),
			"name":            str("The person's full name."),
			"headline":        str("The profile headline."),
			"overallScore":    {Type: jsonschema.Number, Description: "Whole number from 0 to 100."},
			"strengths":       list("Exactly 3 strengths."),
			"weaknesses":      list("Exactly 2 weaknesses."),
			"recommendations": list("Exactly 2 actionable recommendations."),
			"parameterScores": {
				Type:        jsonschema.Array,
				Description: "Exactly 4 entries: " + strings.Join(audits.Parameters, ", ") + ".",
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"parameterName": {Type: jsonschema.String, Enum: audits.Parameters},
						"score":         {Type: jsonschema.Number, Description: "0 to 10."},
						"justification": str("One sentence."),
					},
					Required:             []string{"parameterName", "score", "justification"},
					AdditionalProperties: false,
				},
			},
		},
		Required: []string{
			"url", "name", "headline", "overallScore",
			"strengths", "weaknesses", "recommendations", "parameterScores",
		},
		AdditionalProperties: false,
	}
}
