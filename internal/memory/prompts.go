package memory

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultDistillationPrompt is the built-in template sent to the provider.
// Placeholders {{confidenceThreshold}}, {{maxFactsPerBatch}}, {{candidates}}
// are substituted at render time.
const defaultDistillationPrompt = `You are the memory distillation stage of a personal assistant.

Below are short-term memory candidates captured from recent conversations.
Distill them into durable facts about the user. Only keep information worth
remembering for months: stable facts, preferences, decisions, and entities.

Rules:
- Output JSON only: {"facts": [...]}.
- Each fact: {"type": "fact|preference|decision|entity", "content": "...",
  "confidence": 0.0-1.0, "sourceCandidateIds": ["..."], "entities": ["..."],
  "tags": ["..."], "reasoning": "..."}.
- sourceCandidateIds must reference the candidate ids listed below.
- Discard chatter, pleasantries, and anything below confidence {{confidenceThreshold}}.
- Produce at most {{maxFactsPerBatch}} facts.

Candidates:
{{candidates}}
`

// defaultExtractionPrompt is the built-in template for extracting memory
// items from conversation messages about to be truncated.
const defaultExtractionPrompt = `You are the memory extraction stage of a personal assistant.

The conversation below is about to be removed from the active context.
Extract anything worth remembering: decisions made, stable facts about the
user, and preferences they expressed.

Rules:
- Output JSON only: {"items": [...]}.
- Each item: {"type": "fact|preference|decision|entity|episode", "content": "...",
  "confidence": 0.0-1.0, "entities": ["..."], "tags": ["..."]}.
- Skip pleasantries and anything already obvious from earlier memory.

Conversation:
{{messages}}
`

// promptMeta is the YAML frontmatter of a workspace prompt override file.
type promptMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PromptSet resolves prompt templates, preferring workspace overrides under
// <workspace>/prompts/<name>.md over the built-in defaults. Override files
// carry YAML frontmatter (name, description) followed by the template body.
type PromptSet struct {
	dir string // "" = builtins only
}

// NewPromptSet returns a PromptSet rooted at workspace. An empty workspace
// disables overrides.
func NewPromptSet(workspace string) *PromptSet {
	dir := ""
	if workspace != "" {
		dir = filepath.Join(workspace, "prompts")
	}
	return &PromptSet{dir: dir}
}

// Distillation returns the distillation prompt template.
func (p *PromptSet) Distillation() string {
	if body := p.load("distillation"); body != "" {
		return body
	}
	return defaultDistillationPrompt
}

// Extraction returns the compaction extraction prompt template.
func (p *PromptSet) Extraction() string {
	if body := p.load("extraction"); body != "" {
		return body
	}
	return defaultExtractionPrompt
}

// load reads and strips one override file, returning "" when absent or empty.
func (p *PromptSet) load(name string) string {
	if p.dir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(p.dir, name+".md"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(stripFrontmatter(string(data)))
}

// stripFrontmatter removes a leading YAML frontmatter block when present and
// well-formed. Malformed frontmatter is left in place rather than guessed at.
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content
	}
	var meta promptMeta
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return content
	}
	body := rest[end+4:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return body
}
