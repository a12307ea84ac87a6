package security

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/llm"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Oracle is an external scorer that can replace the heuristic.
type Oracle interface {
	// Assess scores one listing for one profile. It never returns an error;
	// failures are reported as an Unavailable result.
	Assess(ctx context.Context, profile model.Profile, listing model.Listing) OracleResult
	// Model identifies the oracle in stored listings.
	Model() string
}

// OracleResult is either a successful evaluation or the reason the oracle
// could not produce one.
type OracleResult struct {
	Reason string
	Result model.EvaluationResult
	ok     bool
}

// Success wraps an evaluation returned by the oracle. The decision is kept
// as the oracle gave it until Reconcile runs.
func Success(result model.EvaluationResult) OracleResult {
	return OracleResult{Result: result, ok: true}
}

// Unavailable records why the oracle produced no evaluation.
func Unavailable(format string, args ...any) OracleResult {
	return OracleResult{Reason: fmt.Sprintf(format, args...)}
}

// OK reports whether the oracle produced an evaluation.
func (r OracleResult) OK() bool {
	return r.ok
}

const systemPrompt = "You return strict JSON."

// LLMOracle asks a chat-completion model to score a listing.
type LLMOracle struct {
	client llm.Client
}

// NewLLMOracle creates an oracle backed by client.
func NewLLMOracle(client llm.Client) *LLMOracle {
	return &LLMOracle{client: client}
}

// Model returns the underlying model name.
func (o *LLMOracle) Model() string {
	return o.client.Model()
}

// Assess implements Oracle.
func (o *LLMOracle) Assess(ctx context.Context, profile model.Profile, listing model.Listing) OracleResult {
	response, err := o.client.Analyze(ctx, buildPrompt(profile, listing), systemPrompt)
	if err != nil {
		return Unavailable("oracle call failed: %v", err)
	}

	result, err := parseOracleResponse(response)
	if err != nil {
		return Unavailable("invalid oracle response: %v", err)
	}
	return Success(result)
}

// oracleResponse is the JSON shape the model is asked to return.
type oracleResponse struct {
	SecurityScore json.Number `json:"security_score"`
	FinalDecision string      `json:"final_decision"`
	Reasons       []string    `json:"reasons"`
	Relevant      bool        `json:"relevant"`
}

func parseOracleResponse(content string) (model.EvaluationResult, error) {
	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	var resp oracleResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return model.EvaluationResult{}, fmt.Errorf("failed to decode JSON: %w", err)
	}

	score := 0
	if resp.SecurityScore != "" {
		f, err := resp.SecurityScore.Float64()
		if err != nil {
			return model.EvaluationResult{}, fmt.Errorf("security_score: %w", err)
		}
		// Clamp before converting so huge values cannot overflow int.
		score = int(math.Trunc(math.Max(-1, math.Min(101, f))))
	}

	return model.EvaluationResult{
		SecurityScore: score,
		Relevant:      resp.Relevant,
		Reasons:       resp.Reasons,
		FinalDecision: model.NormalizeDecision(resp.FinalDecision),
	}, nil
}

// Reconcile clamps the score and lifts an explicit reject to accept when the
// score passes. Missing or unknown decisions are never lifted; they end up as
// reject.
func Reconcile(result model.EvaluationResult) model.EvaluationResult {
	result.SecurityScore = model.ClampSecurityScore(result.SecurityScore)
	if result.SecurityScore >= model.SecurityThreshold && result.FinalDecision == model.DecisionReject {
		result.FinalDecision = model.DecisionAccept
	}
	result.FinalDecision = model.ParseDecision(string(result.FinalDecision))
	return result
}

func buildPrompt(profile model.Profile, listing model.Listing) string {
	rules := profile.Keywords
	if strings.TrimSpace(rules) == "" {
		rules = "(no rules)"
	}

	signals := "{}"
	if len(listing.SellerSignals) > 0 {
		if b, err := json.Marshal(listing.SellerSignals); err == nil {
			signals = string(b)
		}
	}

	return fmt.Sprintf(`You are a marketplace fraud and relevance evaluator.
Score security from 0-100 (100 safest, 0 scam) and decide accept/reject.
Be concise. Return ONLY JSON with these keys:
{
  "security_score": <0-100 integer>,
  "relevant": true/false,
  "reasons": ["short, crisp", "..."],
  "final_decision": "accept" | "reject"
}

User needs (profile rules): %s

Listing:
- Title: %s
- Price: £%s
- Profile name: %s
- Notes: %s
- Description (if any): %s
- Photos: %d
- Seller signals: %s
`,
		rules,
		listing.Title,
		model.FormatCents(listing.PriceCents),
		profile.Name,
		listing.Reason,
		listing.Description,
		listing.PhotoCount,
		signals,
	)
}
