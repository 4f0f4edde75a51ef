package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/groq"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/tavily"
	"github.com/docuchat/backend/internal/sessions"
)

const searchSystemPrompt = `You are a research assistant. Use the tavily_search tool to look up current information on the web before answering. Ground your answer in the search results and keep it concise.`

// webCitationsPerCall caps how many results of one search invocation
// become citations; the model still sees all results.
const webCitationsPerCall = 3

const maxToolRounds = 5

// SearchAgent answers from live web search: a tool-call loop gathers
// results and citations, then the final answer streams without tools
// so tool results in the transcript ground the generation.
type SearchAgent struct {
	log    *logger.Logger
	oracle groq.Client
	search tavily.Client
	store  sessions.Store
}

func NewSearchAgent(log *logger.Logger, oracle groq.Client, search tavily.Client, store sessions.Store) (*SearchAgent, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if oracle == nil || search == nil || store == nil {
		return nil, fmt.Errorf("oracle, search client and session store required")
	}
	return &SearchAgent{
		log:    log.With("service", "SearchAgent"),
		oracle: oracle,
		search: search,
		store:  store,
	}, nil
}

func searchTools(maxResults int) []groq.Tool {
	return []groq.Tool{{
		Type: "function",
		Function: groq.ToolFunction{
			Name:        "tavily_search",
			Description: fmt.Sprintf("Search the web for current information. Returns a JSON list of up to %d results with title, url and content.", maxResults),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
				},
				"required": []string{"query"},
			},
		},
	}}
}

// StreamAnswer runs the agent for one question and forwards the final
// answer through sink. Citations accumulate across every search the
// model makes.
func (a *SearchAgent) StreamAnswer(ctx context.Context, question, chatID string, sink EventSink) error {
	messages := []groq.Message{{Role: "system", Content: searchSystemPrompt}}
	if chatID != "" {
		history, err := a.store.Get(ctx, chatID)
		if err != nil {
			return fmt.Errorf("%w: load session %s: %v", domain.ErrGeneration, chatID, err)
		}
		for _, msg := range history {
			messages = append(messages, groq.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	messages = append(messages, groq.Message{Role: "user", Content: question})

	messages, citations, err := a.runToolLoop(ctx, messages)
	if err != nil {
		return err
	}

	full, err := a.oracle.StreamChat(ctx, messages, sink.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	// Citations only when the model actually searched; a citation-free
	// stream just ends after the last content delta.
	if deduped := DedupeCitations(citations); len(deduped) > 0 {
		if err := sink.Citations(deduped); err != nil {
			return err
		}
	}

	if chatID != "" {
		err := a.store.Append(ctx, chatID,
			sessions.Message{Role: "user", Content: question},
			sessions.Message{Role: "assistant", Content: full},
		)
		if err != nil {
			a.log.Warn("failed to persist session turn", "chat_id", chatID, "error", err)
		}
	}
	return nil
}

// runToolLoop lets the model search until it stops asking, bounded by
// maxToolRounds. The final content-only completion is discarded; the
// answer is regenerated as a stream by the caller.
func (a *SearchAgent) runToolLoop(ctx context.Context, messages []groq.Message) ([]groq.Message, []domain.Citation, error) {
	var citations []domain.Citation
	tools := searchTools(a.search.MaxResults())

	for round := 0; round < maxToolRounds; round++ {
		msg, err := a.oracle.Complete(ctx, messages, tools)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
		}
		if len(msg.ToolCalls) == 0 {
			break
		}
		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			if call.Function.Name != "tavily_search" {
				messages = append(messages, groq.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Name:       call.Function.Name,
					Content:    fmt.Sprintf(`{"error": "unknown tool %q"}`, call.Function.Name),
				})
				continue
			}

			results, callCitations, err := a.executeSearch(ctx, call)
			if err != nil {
				return nil, nil, err
			}
			citations = append(citations, callCitations...)
			messages = append(messages, groq.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    results,
			})
		}
	}
	return messages, citations, nil
}

func (a *SearchAgent) executeSearch(ctx context.Context, call groq.ToolCall) (string, []domain.Citation, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		// Malformed tool arguments are reported back to the model, not
		// fatal to the request.
		a.log.Warn("skipping malformed search tool call", "arguments", call.Function.Arguments)
		return `{"error": "invalid arguments, expected {\"query\": \"...\"}"}`, nil, nil
	}

	results, err := a.search.Search(ctx, args.Query)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrUpstreamSearch, err)
	}

	citations := make([]domain.Citation, 0, webCitationsPerCall)
	for i, r := range results {
		if i >= webCitationsPerCall {
			break
		}
		citations = append(citations, domain.Citation{Title: r.Title, Locator: r.URL})
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return "", nil, fmt.Errorf("%w: encode search results: %v", domain.ErrUpstreamSearch, err)
	}
	return string(encoded), citations, nil
}
