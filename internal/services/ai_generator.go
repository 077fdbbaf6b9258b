package services

import (
	"context"
	"fmt"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

const responseMaxTokens = 800

// systemPromptTemplate takes the configured maximum number of tool rounds.
const systemPromptTemplate = `You are an AI assistant specialized in course materials and educational content with access to comprehensive search tools for course information.

Available Tools:
1. **search_course_content**: For searching specific course content and materials
2. **get_course_outline**: For retrieving course outlines, including course title, course link, and complete lesson lists

CRITICAL: You MUST use tools for ANY question related to courses, even if you think you know the answer from your training data. The course database contains the most current and accurate information.

Tool Usage Guidelines:
- Use **search_course_content** for questions about specific course content, examples, lessons, concepts, or any detailed educational materials
- Use **get_course_outline** for questions about course structure, lesson lists, course overviews, outlines, or when users ask "what's in this course", "what does X course cover", "give me the outline", etc.
- **ALWAYS use tools for course-related queries** - Do not rely on your general knowledge about courses
- **Sequential tool usage available**: You can make follow-up tool calls based on initial results to:
  * Search for related information if initial results are incomplete
  * Get course outlines after finding specific content to provide broader context
  * Refine searches with better course/lesson filters based on discovered information
  * Compare information across different courses or lessons
- **Maximum %d tool rounds allowed** - Use them strategically for complex queries
- Synthesize tool results into accurate, fact-based responses
- If tools yield no results, state this clearly without offering alternatives

Response Protocol:
- **Course-related questions** (any mention of courses, lessons, content, outlines): ALWAYS use appropriate tool first
- **Pure general knowledge questions** (math, science facts unrelated to these specific courses): Answer directly without tools
- **Greetings and casual conversation**: Answer directly without tools
- **No meta-commentary**:
 - Provide direct answers only - no reasoning process, tool explanations, or question-type analysis
 - Do not mention "based on the search results" or "using the outline tool"

When responding to course outline queries, always include:
- Course title
- Course link
- Number and title of each lesson

All responses must be:
1. **Brief, Concise and focused** - Get to the point quickly
2. **Educational** - Maintain instructional value
3. **Clear** - Use accessible language
4. **Example-supported** - Include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

// AIGenerator drives the bounded tool-use conversation with the generative
// service. GenerateResponse always returns displayable text: service failures
// fold into user-facing error strings instead of Go errors, and tool failures
// stay inside the conversation as inline tool results.
type AIGenerator interface {
	GenerateResponse(ctx context.Context, query, conversationHistory string, tools []anthropic.Tool, registry *ToolRegistry, cites *CitationTracker) string
}

type aiGenerator struct {
	log           *logger.Logger
	client        anthropic.Client
	maxToolRounds int
	systemPrompt  string
}

func NewAIGenerator(client anthropic.Client, maxToolRounds int, baseLog *logger.Logger) AIGenerator {
	if maxToolRounds <= 0 {
		maxToolRounds = 2
	}
	return &aiGenerator{
		log:           baseLog.With("service", "AIGenerator"),
		client:        client,
		maxToolRounds: maxToolRounds,
		systemPrompt:  fmt.Sprintf(systemPromptTemplate, maxToolRounds),
	}
}

func (g *aiGenerator) GenerateResponse(ctx context.Context, query, conversationHistory string, tools []anthropic.Tool, registry *ToolRegistry, cites *CitationTracker) string {
	systemContent := g.systemPrompt
	if conversationHistory != "" {
		systemContent = g.systemPrompt + "\n\nPrevious conversation:\n" + conversationHistory
	}

	messages := []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, query)}

	req := g.baseRequest()
	req.System = systemContent
	req.Messages = messages
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
	}

	resp, err := g.client.CreateMessage(ctx, req)
	if err != nil {
		g.log.Error("Generative call failed", "error", err)
		return fmt.Sprintf("I encountered an error while processing your request: %v", err)
	}

	if resp.StopReason == anthropic.StopReasonToolUse && registry != nil {
		return g.runToolRounds(ctx, messages, resp, systemContent, tools, registry, cites)
	}
	return resp.FirstText()
}

// runToolRounds executes up to maxToolRounds rounds of {dispatch tools, call
// again}. Tools are withheld on the final allowed round's follow-up call; if
// the service requests tools even then, one forced tool-less call settles the
// answer.
func (g *aiGenerator) runToolRounds(
	ctx context.Context,
	messages []anthropic.Message,
	current *anthropic.MessageResponse,
	systemContent string,
	tools []anthropic.Tool,
	registry *ToolRegistry,
	cites *CitationTracker,
) string {
	round := 1
	for round <= g.maxToolRounds && current.StopReason == anthropic.StopReasonToolUse {
		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: current.Content})

		toolResults := g.executeToolRound(ctx, current.Content, registry, cites)
		if len(toolResults) > 0 {
			messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: toolResults})
		}

		req := g.baseRequest()
		req.Messages = messages
		req.System = g.roundAwareSystemPrompt(systemContent, round)
		if round < g.maxToolRounds && len(tools) > 0 {
			req.Tools = tools
			req.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
		}

		next, err := g.client.CreateMessage(ctx, req)
		if err != nil {
			g.log.Error("Generative call failed mid-round", "round", round, "error", err)
			return fmt.Sprintf("I encountered an error while processing your request: %v", err)
		}
		current = next
		round++
	}

	if current.StopReason != anthropic.StopReasonToolUse {
		return current.FirstText()
	}

	// Round budget spent and the service still wants tools: one forced call
	// with tools withheld; whatever it says is the answer.
	messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: current.Content})
	req := g.baseRequest()
	req.Messages = messages
	req.System = systemContent

	final, err := g.client.CreateMessage(ctx, req)
	if err != nil {
		g.log.Error("Forced final call failed", "error", err)
		return fmt.Sprintf("I encountered an error while providing the final response: %v", err)
	}
	return final.FirstText()
}

// executeToolRound dispatches every tool_use block of one response in block
// order and wraps the results as tool_result content. A response that signals
// tool use without any tool_use blocks yields nil.
func (g *aiGenerator) executeToolRound(ctx context.Context, content []anthropic.ContentBlock, registry *ToolRegistry, cites *CitationTracker) []anthropic.ContentBlock {
	calls := make([]ToolCall, 0, len(content))
	for _, block := range content {
		if block.Type != anthropic.ContentTypeToolUse {
			continue
		}
		calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
	}
	if len(calls) == 0 {
		return nil
	}

	results := registry.ExecuteAll(ctx, calls, cites)

	blocks := make([]anthropic.ContentBlock, 0, len(calls))
	for i, call := range calls {
		blocks = append(blocks, anthropic.ContentBlock{
			Type:      anthropic.ContentTypeToolResult,
			ToolUseID: call.ID,
			Content:   results[i],
		})
	}
	return blocks
}

func (g *aiGenerator) roundAwareSystemPrompt(systemContent string, round int) string {
	if round < g.maxToolRounds {
		return systemContent + fmt.Sprintf("\n\nTool Round %d/%d: You can make additional tool calls if needed based on previous results.", round, g.maxToolRounds)
	}
	return systemContent + fmt.Sprintf("\n\nFinal Round %d/%d: This is your last chance to use tools before providing the final response.", round, g.maxToolRounds)
}

func (g *aiGenerator) baseRequest() anthropic.MessageRequest {
	temperature := 0.0
	return anthropic.MessageRequest{
		MaxTokens:   responseMaxTokens,
		Temperature: &temperature,
	}
}
