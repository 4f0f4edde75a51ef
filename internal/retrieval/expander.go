package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/groq"
	"github.com/docuchat/backend/internal/platform/logger"
)

const expandSystemPrompt = `You write a short hypothetical answer to the user's question, as if you had the relevant documents in front of you. The answer is used for document retrieval, not shown to anyone, so plausible detail matters more than certainty. Respond with a JSON object: {"answer": "<hypothetical answer>"}.`

// Expander rewrites a question into a hypothetical answer whose
// embedding sits closer to the relevant passages than the bare
// question would.
type Expander interface {
	Expand(ctx context.Context, question string) (string, error)
}

type expander struct {
	log    *logger.Logger
	oracle groq.Client
}

func NewExpander(log *logger.Logger, oracle groq.Client) (Expander, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle required")
	}
	return &expander{log: log.With("service", "QueryExpander"), oracle: oracle}, nil
}

func (e *expander) Expand(ctx context.Context, question string) (string, error) {
	out, err := e.oracle.CompleteJSON(ctx, expandSystemPrompt, question)
	if err != nil {
		return "", fmt.Errorf("%w: query expansion: %v", domain.ErrGeneration, err)
	}
	answer, ok := out["answer"].(string)
	if !ok || strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: query expansion returned no answer field", domain.ErrGeneration)
	}
	return strings.TrimSpace(answer), nil
}
