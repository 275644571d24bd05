package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/masa061580/pubmed-search-assistant/internal/llm"
	"github.com/masa061580/pubmed-search-assistant/internal/models"
	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
)

var (
	// ErrUnknownCapability is returned for a tool call naming no declared capability.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrBadRequest marks a chat request missing a required field.
	ErrBadRequest = errors.New("bad request")
)

// Capability names as declared to the model.
const (
	SearchCapabilityName = "searchPubMedWithQuery"
	RefineCapabilityName = "refinePubMedSearch"
)

// Capability is one of the closed set of operations the model may invoke:
// SearchCapability or RefineCapability.
type Capability interface {
	Name() string
	capability()
}

// SearchCapability searches PubMed for a free-text query.
type SearchCapability struct {
	Query      string
	MaxResults int
}

// RefineCapability rewrites a previous expression and searches again.
type RefineCapability struct {
	OriginalQuery      string
	PreviousMeshTerms  string
	Direction          pubmed.Direction
	AdditionalCriteria string
	MaxResults         int
}

func (SearchCapability) Name() string { return SearchCapabilityName }
func (RefineCapability) Name() string { return RefineCapabilityName }
func (SearchCapability) capability()  {}
func (RefineCapability) capability()  {}

type searchArgs struct {
	Query      *string  `json:"query"`
	MaxResults *float64 `json:"maxResults"`
}

type refineArgs struct {
	OriginalQuery      string   `json:"originalQuery"`
	PreviousMeshTerms  *string  `json:"previousMeshTerms"`
	RefinementType     string   `json:"refinementType"`
	AdditionalCriteria string   `json:"additionalCriteria"`
	MaxResults         *float64 `json:"maxResults"`
}

// ParseCapability decodes a tool call into its typed capability.
func ParseCapability(call models.ToolCall) (Capability, error) {
	raw := call.Arguments
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	switch call.Name {
	case SearchCapabilityName:
		var args searchArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: %s arguments: %w", pubmed.ErrInvalidQuery, call.Name, err)
		}
		if args.Query == nil {
			return nil, fmt.Errorf("%w: %s requires a query", pubmed.ErrInvalidQuery, call.Name)
		}
		return SearchCapability{Query: *args.Query, MaxResults: maxResults(args.MaxResults)}, nil

	case RefineCapabilityName:
		var args refineArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: %s arguments: %w", pubmed.ErrInvalidQuery, call.Name, err)
		}
		if args.PreviousMeshTerms == nil {
			return nil, fmt.Errorf("%w: %s requires previousMeshTerms", pubmed.ErrInvalidQuery, call.Name)
		}
		return RefineCapability{
			OriginalQuery:      args.OriginalQuery,
			PreviousMeshTerms:  *args.PreviousMeshTerms,
			Direction:          pubmed.ParseDirection(args.RefinementType),
			AdditionalCriteria: args.AdditionalCriteria,
			MaxResults:         maxResults(args.MaxResults),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, call.Name)
	}
}

func maxResults(v *float64) int {
	if v == nil || *v < 1 {
		return pubmed.DefaultMaxResults
	}
	if *v > pubmed.MaxResultsLimit {
		return pubmed.MaxResultsLimit
	}
	return int(*v)
}

// Searcher runs a search-term expression against the literature index.
type Searcher interface {
	Search(ctx context.Context, expr string, maxResults int) (*models.SearchResult, error)
}

// Execute runs a capability and returns its search result.
func Execute(ctx context.Context, s Searcher, c Capability) (*models.SearchResult, error) {
	switch c := c.(type) {
	case SearchCapability:
		return s.Search(ctx, pubmed.Convert(c.Query), c.MaxResults)
	case RefineCapability:
		expr := pubmed.Refine(c.OriginalQuery, c.PreviousMeshTerms, c.Direction, c.AdditionalCriteria)
		return s.Search(ctx, expr, c.MaxResults)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCapability, c)
	}
}

// Tools declares both capabilities to the model.
func Tools() []llm.Tool {
	maxResults := map[string]any{
		"type":        "integer",
		"description": "Maximum number of results to return (default: 5).",
	}
	return []llm.Tool{
		{
			Name:        SearchCapabilityName,
			Description: "Searches PubMed using MeSH terms based on user query and returns relevant papers.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "User's research topic or keywords.",
					},
					"maxResults": maxResults,
				},
			},
		},
		{
			Name:        RefineCapabilityName,
			Description: "Refines PubMed search by modifying MeSH terms to increase or decrease result count.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"originalQuery", "previousMeshTerms", "refinementType"},
				"properties": map[string]any{
					"originalQuery": map[string]any{
						"type":        "string",
						"description": "Original search query.",
					},
					"previousMeshTerms": map[string]any{
						"type":        "string",
						"description": "Previous MeSH terms used for search.",
					},
					"refinementType": map[string]any{
						"type":        "string",
						"description": `Type of refinement: "increase", "decrease", or "keep".`,
						"enum":        []string{"increase", "decrease", "keep"},
					},
					"additionalCriteria": map[string]any{
						"type":        "string",
						"description": "Additional criteria to refine the search.",
					},
					"maxResults": maxResults,
				},
			},
		},
	}
}
