package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"open-lovable/internal/logging"
)

// ErrNoValidFiles is returned when a manifest lists no usable source files
var ErrNoValidFiles = errors.New("no valid files found in manifest")

var trailingNumericSegment = regexp.MustCompile(`/\d+$`)

// Edit types a search plan can carry
const (
	EditUpdateComponent = "UPDATE_COMPONENT"
	EditAddFeature      = "ADD_FEATURE"
	EditFixIssue        = "FIX_ISSUE"
	EditUpdateStyle     = "UPDATE_STYLE"
	EditRefactor        = "REFACTOR"
	EditAddDependency   = "ADD_DEPENDENCY"
	EditRemoveElement   = "REMOVE_ELEMENT"
)

var defaultSearchFileTypes = []string{".jsx", ".tsx", ".js", ".ts"}

// ComponentInfo describes a React component found in a file
type ComponentInfo struct {
	Name            string   `json:"name"`
	ChildComponents []string `json:"childComponents,omitempty"`
}

// FileInfo is a manifest entry
type FileInfo struct {
	ComponentInfo *ComponentInfo    `json:"componentInfo,omitempty"`
	Imports       []json.RawMessage `json:"imports,omitempty"`
}

// FileManifest is the client's view of the generated project
type FileManifest struct {
	Files map[string]FileInfo `json:"files"`
}

// SearchPlan tells the client how to locate the code an edit should touch
type SearchPlan struct {
	EditType          string   `json:"editType"`
	Reasoning         string   `json:"reasoning"`
	SearchTerms       []string `json:"searchTerms"`
	RegexPatterns     []string `json:"regexPatterns"`
	FileTypesToSearch []string `json:"fileTypesToSearch"`
	ExpectedMatches   int      `json:"expectedMatches"`
}

// BuildFileSummary renders the manifest as one line per source file, sorted by path.
// Paths without an extension or ending in a numeric segment are ignored.
func BuildFileSummary(manifest *FileManifest) (string, int) {
	if manifest == nil {
		return "", 0
	}
	paths := make([]string, 0, len(manifest.Files))
	for p := range manifest.Files {
		if strings.Contains(p, ".") && !trailingNumericSegment.MatchString(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		info := manifest.Files[p]
		name := path.Base(p)
		children := "none"
		if info.ComponentInfo != nil {
			if info.ComponentInfo.Name != "" {
				name = info.ComponentInfo.Name
			}
			if len(info.ComponentInfo.ChildComponents) > 0 {
				children = strings.Join(info.ComponentInfo.ChildComponents, ", ")
			}
		}
		lines = append(lines, fmt.Sprintf("- %s (%s, renders: %s)", p, name, children))
	}
	return strings.Join(lines, "\n"), len(paths)
}

// IntentAnalyzer turns an edit request into a SearchPlan
type IntentAnalyzer struct {
	clients ClientSource
}

// NewIntentAnalyzer creates an analyzer over clients
func NewIntentAnalyzer(clients ClientSource) *IntentAnalyzer {
	return &IntentAnalyzer{clients: clients}
}

// Analyze asks AvalAI, then Google, for a search plan and falls back to a
// keyword plan when neither produces valid JSON.
func (a *IntentAnalyzer) Analyze(ctx context.Context, prompt string, manifest *FileManifest) (*SearchPlan, error) {
	summary, count := BuildFileSummary(manifest)
	if count == 0 {
		return nil, ErrNoValidFiles
	}
	log := logging.L().With(zap.String("component", "edit-intent"))
	log.Debug("valid files found", zap.Int("count", count))

	if client, ok := a.clients.Get(ProviderAvalAI); ok {
		plan, err := a.ask(ctx, client, &ChatRequest{
			Model: "gpt-4",
			Messages: []ChatMessage{
				{Role: RoleSystem, Content: searchPlannerPrompt(summary)},
				{Role: RoleUser, Content: fmt.Sprintf("User request: %q\n\nCreate a search plan to find the exact code that needs to be modified. Include specific search terms and patterns.", prompt)},
			},
			MaxTokens:   1000,
			Temperature: 0.3,
		})
		if err == nil {
			return plan, nil
		}
		log.Info("avalai search plan failed, trying google", zap.Error(err))
	}

	if client, ok := a.clients.Get(ProviderGoogle); ok {
		plan, err := a.ask(ctx, client, &ChatRequest{
			Model:    "gemini-pro",
			Messages: []ChatMessage{{Role: RoleUser, Content: googlePlannerPrompt(summary, prompt)}},
			Raw:      true,
		})
		if err == nil {
			return plan, nil
		}
		log.Warn("google search plan failed", zap.Error(err))
	}

	log.Info("using fallback search plan")
	return FallbackSearchPlan(prompt), nil
}

func (a *IntentAnalyzer) ask(ctx context.Context, client Client, req *ChatRequest) (*SearchPlan, error) {
	resp, err := client.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseSearchPlan(resp.Content)
}

// ParseSearchPlan decodes a model answer, tolerating a surrounding code fence
func ParseSearchPlan(content string) (*SearchPlan, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	if content == "" {
		return nil, errors.New("empty search plan")
	}
	var plan SearchPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse search plan: %w", err)
	}
	if plan.RegexPatterns == nil {
		plan.RegexPatterns = []string{}
	}
	if len(plan.FileTypesToSearch) == 0 {
		plan.FileTypesToSearch = append([]string(nil), defaultSearchFileTypes...)
	}
	return &plan, nil
}

// FallbackSearchPlan searches for the first three words longer than three characters
func FallbackSearchPlan(prompt string) *SearchPlan {
	terms := []string{}
	for _, word := range strings.Split(strings.ToLower(prompt), " ") {
		if len(word) > 3 {
			terms = append(terms, word)
			if len(terms) == 3 {
				break
			}
		}
	}
	return &SearchPlan{
		EditType:          EditUpdateComponent,
		Reasoning:         "Keyword-based search as fallback",
		SearchTerms:       terms,
		RegexPatterns:     []string{},
		FileTypesToSearch: append([]string(nil), defaultSearchFileTypes...),
		ExpectedMatches:   1,
	}
}

func searchPlannerPrompt(summary string) string {
	return `You are an expert at planning code searches. Your job is to create a search strategy to find the exact code that needs to be edited.

DO NOT GUESS which files to edit. Instead, provide specific search terms that will locate the code.

SEARCH STRATEGY RULES:
1. For text changes (e.g., "change 'Start Deploying' to 'Go Now'"):
   - Search for the EXACT text: "Start Deploying"

2. For style changes (e.g., "make header black"):
   - Search for component names: "Header", "<header"
   - Search for class names: "header", "navbar"
   - Search for className attributes containing relevant words

3. For removing elements (e.g., "remove the deploy button"):
   - Search for the button text or aria-label
   - Search for relevant IDs or data-testids

4. For navigation/header issues:
   - Search for: "navigation", "nav", "Header", "navbar"
   - Look for Link components or href attributes

5. Be SPECIFIC:
   - Use exact capitalization for user-visible text
   - Include multiple search terms for redundancy
   - Add regex patterns for structural searches

Current project structure for context:
` + summary + `

Respond with a JSON object containing:
{
  "editType": "UPDATE_COMPONENT|ADD_FEATURE|FIX_ISSUE|UPDATE_STYLE|REFACTOR|ADD_DEPENDENCY|REMOVE_ELEMENT",
  "reasoning": "explanation of the search strategy",
  "searchTerms": ["specific", "search", "terms"],
  "regexPatterns": ["optional", "regex", "patterns"],
  "fileTypesToSearch": [".jsx", ".tsx", ".js", ".ts"],
  "expectedMatches": 1
}`
}

func googlePlannerPrompt(summary, prompt string) string {
	return `You are an expert at planning code searches. Your job is to create a search strategy to find the exact code that needs to be edited.

Current project structure for context:
` + summary + `

User request: "` + prompt + `"

Create a search plan to find the exact code that needs to be modified. Include specific search terms and patterns.

Respond with a JSON object containing:
{
  "editType": "UPDATE_COMPONENT",
  "reasoning": "explanation of the search strategy",
  "searchTerms": ["specific", "search", "terms"],
  "regexPatterns": ["optional", "regex", "patterns"],
  "fileTypesToSearch": [".jsx", ".tsx", ".js", ".ts"],
  "expectedMatches": 1
}`
}
