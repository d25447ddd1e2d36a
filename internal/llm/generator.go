package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	generationTimeout = 120 * time.Second
	previewBytes      = 2000
)

// TokenUsage tracks usage counts per model.
type TokenUsage struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Generator wraps the OpenAI client and turns briefs into static web projects.
type Generator struct {
	client openai.Client
	model  string
	temp   float64

	mu    sync.Mutex
	usage map[string]*TokenUsage
}

func NewGenerator(apiKey, baseURL, model string) *Generator {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  model,
		temp:   0.1,
		usage:  make(map[string]*TokenUsage),
	}
}

// GenerateProject produces a complete file set for a round 1 build. If the
// model call fails a minimal fallback project is returned so the deployment
// still produces a working page.
func (g *Generator) GenerateProject(ctx context.Context, taskId, brief string, attachmentPaths []string, checks []string) (map[string]string, error) {
	slog.Info("generating project", "task", taskId)

	analysis := analyzeAttachments(attachmentPaths)
	prompt := buildGenerationPrompt(brief, analysis, checks)

	var files map[string]string
	content, err := g.complete(ctx, generationSystemPrompt, prompt)
	if err != nil {
		slog.Error("project generation failed, using fallback project", "task", taskId, "error", err)
		files = FallbackProject(brief, taskId)
	} else {
		files = ParseGeneratedFiles(content)
		if len(files) == 0 {
			slog.Warn("no files parsed from model response, using fallback project", "task", taskId)
			files = FallbackProject(brief, taskId)
		}
	}

	files["README.md"] = GenerateReadme(brief, taskId, "")
	files["LICENSE"] = LicenseText()
	files[".gitignore"] = Gitignore()

	slog.Info("generated project files", "task", taskId, "files", len(files))
	return files, nil
}

// ReviseProject produces only the files that change for a round 2 revision.
// Unlike GenerateProject there is no fallback: a failed revision must surface
// so the caller reports the deployment as failed rather than silently pushing
// nothing.
func (g *Generator) ReviseProject(ctx context.Context, repoName, brief string, existing map[string]string, attachmentPaths []string, checks []string) (map[string]string, error) {
	slog.Info("revising project", "repo", repoName)

	analysis := analyzeAttachments(attachmentPaths)
	prompt := buildRevisionPrompt(brief, existing, analysis, checks)

	content, err := g.complete(ctx, revisionSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("project revision failed: %w", err)
	}

	files := ParseGeneratedFiles(content)
	slog.Info("revised project files", "repo", repoName, "files", len(files))
	return files, nil
}

func (g *Generator) complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	res, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    messages,
		Temperature: openai.Float(g.temp),
	})
	if err != nil {
		slog.Error("openai error: chat completions failed", "error", err)
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	g.mu.Lock()
	tu, ok := g.usage[g.model]
	if !ok {
		tu = &TokenUsage{}
		g.usage[g.model] = tu
	}
	tu.CompletionTokens += res.Usage.CompletionTokens
	tu.PromptTokens += res.Usage.PromptTokens
	tu.TotalTokens += res.Usage.TotalTokens
	g.mu.Unlock()

	if len(res.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}

// Usage returns a copy of the accumulated token counts per model.
func (g *Generator) Usage() map[string]TokenUsage {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]TokenUsage, len(g.usage))
	for model, usage := range g.usage {
		out[model] = *usage
	}
	return out
}

func analyzeAttachments(paths []string) string {
	if len(paths) == 0 {
		return "No attachments provided."
	}

	var analysis []string
	for _, path := range paths {
		name := filepath.Base(path)
		info, err := os.Stat(path)
		if err != nil {
			analysis = append(analysis, fmt.Sprintf("File: %s - error reading: %v", name, err))
			continue
		}

		preview, err := readPreview(path)
		if err != nil {
			analysis = append(analysis, fmt.Sprintf("File: %s (%d bytes) - error reading: %v", name, info.Size(), err))
			continue
		}

		analysis = append(analysis, fmt.Sprintf("File: %s (%d bytes)\nContent preview:\n%s\n---", name, info.Size(), preview))
	}

	return strings.Join(analysis, "\n")
}

func readPreview(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, previewBytes)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
