package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/groq"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/yahoo"
	"github.com/docuchat/backend/internal/sessions"
)

const stocksSystemPrompt = `You are a helpful assistant. Respond concisely and only answer the specific question asked.`

// StocksAgent answers market questions from live Yahoo Finance data:
// the model calls price-history and company-info tools, then the final
// answer streams without tools. The stream carries content events only;
// market data has no citable source list.
type StocksAgent struct {
	log    *logger.Logger
	oracle groq.Client
	stocks yahoo.Client
	store  sessions.Store
}

func NewStocksAgent(log *logger.Logger, oracle groq.Client, stocks yahoo.Client, store sessions.Store) (*StocksAgent, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if oracle == nil || stocks == nil || store == nil {
		return nil, fmt.Errorf("oracle, stocks client and session store required")
	}
	return &StocksAgent{
		log:    log.With("service", "StocksAgent"),
		oracle: oracle,
		stocks: stocks,
		store:  store,
	}, nil
}

func stockTools() []groq.Tool {
	tickerParams := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stock_ticker": map[string]any{
				"type":        "string",
				"description": "Alphanumeric stock ticker, e.g. NVDA.",
			},
		},
		"required": []string{"stock_ticker"},
	}
	return []groq.Tool{
		{
			Type: "function",
			Function: groq.ToolFunction{
				Name:        "stock_price",
				Description: "Retrieve the last month's daily closing prices for a given stock ticker.",
				Parameters:  tickerParams,
			},
		},
		{
			Type: "function",
			Function: groq.ToolFunction{
				Name:        "stock_info",
				Description: "Retrieve background information about the company behind a given stock ticker.",
				Parameters:  tickerParams,
			},
		},
	}
}

// StreamAnswer runs the agent for one question and forwards the final
// answer through sink as content deltas.
func (a *StocksAgent) StreamAnswer(ctx context.Context, question, chatID string, sink EventSink) error {
	messages := []groq.Message{{Role: "system", Content: stocksSystemPrompt}}
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

	messages, err := a.runToolLoop(ctx, messages)
	if err != nil {
		return err
	}

	full, err := a.oracle.StreamChat(ctx, messages, sink.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGeneration, err)
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

// runToolLoop lets the model fetch market data until it stops asking,
// bounded by maxToolRounds. The final content-only completion is
// discarded; the answer is regenerated as a stream by the caller.
func (a *StocksAgent) runToolLoop(ctx context.Context, messages []groq.Message) ([]groq.Message, error) {
	tools := stockTools()

	for round := 0; round < maxToolRounds; round++ {
		msg, err := a.oracle.Complete(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
		}
		if len(msg.ToolCalls) == 0 {
			break
		}
		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			messages = append(messages, groq.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    a.executeTool(ctx, call),
			})
		}
	}
	return messages, nil
}

// executeTool always returns tool output for the transcript; provider
// failures come back as error text so the model can recover or explain
// instead of the stream aborting.
func (a *StocksAgent) executeTool(ctx context.Context, call groq.ToolCall) string {
	var args struct {
		Ticker string `json:"stock_ticker"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Ticker) == "" {
		a.log.Warn("skipping malformed stock tool call", "tool", call.Function.Name, "arguments", call.Function.Arguments)
		return `{"error": "invalid arguments, expected {\"stock_ticker\": \"...\"}"}`
	}

	switch call.Function.Name {
	case "stock_price":
		prices, err := a.stocks.ClosingPrices(ctx, args.Ticker)
		if err != nil {
			a.log.Warn("stock price lookup failed", "ticker", args.Ticker, "error", err)
			return fmt.Sprintf("Error retrieving stock price for %s: %v", args.Ticker, err)
		}
		return formatClosingPrices(args.Ticker, prices)
	case "stock_info":
		profile, err := a.stocks.Profile(ctx, args.Ticker)
		if err != nil {
			a.log.Warn("stock info lookup failed", "ticker", args.Ticker, "error", err)
			return fmt.Sprintf("Error retrieving info for %s: %v", args.Ticker, err)
		}
		return formatProfile(profile)
	default:
		return fmt.Sprintf(`{"error": "unknown tool %q"}`, call.Function.Name)
	}
}

func formatClosingPrices(ticker string, prices []domain.ClosingPrice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Closing prices over the last month for %s:", strings.ToUpper(strings.TrimSpace(ticker)))
	for _, p := range prices {
		fmt.Fprintf(&b, "\n%s %.2f", p.Date.Format("2006-01-02"), p.Close)
	}
	return b.String()
}

func formatProfile(p domain.CompanyProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Background information for %s: %s (%s, %s)", p.Symbol, p.Name, p.Exchange, p.Currency)
	if p.Summary != "" {
		b.WriteString("\n")
		b.WriteString(p.Summary)
	}
	return b.String()
}
