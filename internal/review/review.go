// internal/review/review.go
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/llm"
	"github.com/newthinker/papertrader/internal/report"
	"github.com/newthinker/papertrader/internal/simulation"
)

// Grade is the letter grade of a reviewed session.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// GradeForScore maps a 0-100 score to its letter grade.
func GradeForScore(score int) Grade {
	switch {
	case score >= 90:
		return GradeS
	case score >= 80:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 60:
		return GradeC
	default:
		return GradeD
	}
}

func (g Grade) IsValid() bool {
	switch g {
	case GradeS, GradeA, GradeB, GradeC, GradeD:
		return true
	}
	return false
}

// Fallback values used when the model reply carries no usable JSON.
const (
	FallbackScore       = 60
	FallbackGrade Grade = GradeC
)

// Review is the model's assessment of a session.
type Review struct {
	Score       int      `json:"score"`
	Grade       Grade    `json:"grade"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
	Analysis    string   `json:"analysis"`

	Provider string    `json:"provider,omitempty"`
	Usage    llm.Usage `json:"usage"`
	// Fallback is set when the reply could not be parsed.
	Fallback bool `json:"fallback,omitempty"`
	// Truncated is set when the model ran out of tokens.
	Truncated bool `json:"truncated,omitempty"`
}

// Request carries what the reviewer may show the model. Bars must only hold
// bars the session is allowed to disclose.
type Request struct {
	Session *simulation.Session
	Result  simulation.Result
	Bars    []core.PriceBar
}

// Config holds reviewer configuration.
type Config struct {
	Timeout   time.Duration
	MaxTokens int
}

// Reviewer grades finished or running sessions with an LLM.
type Reviewer struct {
	llm       llm.Provider
	logger    *zap.Logger
	timeout   time.Duration
	maxTokens int
}

// New creates a reviewer.
func New(provider llm.Provider, logger *zap.Logger, cfg Config) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Reviewer{
		llm:       provider,
		logger:    logger,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}
}

// Provider returns the name of the underlying model provider.
func (r *Reviewer) Provider() string {
	return r.llm.Name()
}

// Review asks the model to grade the session.
func (r *Reviewer) Review(ctx context.Context, req Request) (*Review, error) {
	if req.Session == nil {
		return nil, core.Errorf(core.ErrInvalidParameter, "session required")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: BuildPrompt(req)},
		},
		MaxTokens:   r.maxTokens,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, err)
	}

	rv := ParseResponse(resp.Content)
	rv.Provider = r.llm.Name()
	rv.Usage = resp.Usage
	rv.Truncated = resp.Truncated()
	if rv.Truncated {
		r.logger.Warn("review reply hit the token limit",
			zap.String("session_id", req.Session.ID),
			zap.String("provider", rv.Provider),
			zap.Int("max_tokens", r.maxTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}
	if rv.Fallback {
		r.logger.Warn("review reply had no parsable grade",
			zap.String("session_id", req.Session.ID),
			zap.String("provider", rv.Provider),
			zap.String("finish_reason", resp.FinishReason),
		)
	}
	return rv, nil
}

const systemPrompt = `You are a trading coach reviewing a paper-trading replay of daily A-share bars. ` +
	`Judge the decisions only on information available on each trading day. Reply with JSON.`

// BuildPrompt renders the session facts, bars and trades for the model.
func BuildPrompt(req Request) string {
	s, res := req.Session, req.Result
	var sb strings.Builder

	name := s.InstrumentCode
	if s.InstrumentName != "" {
		name = fmt.Sprintf("%s (%s)", s.InstrumentName, s.InstrumentCode)
	}

	sb.WriteString("## Session\n")
	sb.WriteString(fmt.Sprintf("- Instrument: %s\n", name))
	sb.WriteString(fmt.Sprintf("- Period: %s to %s (%d trading days, %d played)\n", s.StartDate, s.EndDate, s.TotalDays, s.CurrentDay))
	sb.WriteString(fmt.Sprintf("- Status: %s\n", s.Status))
	sb.WriteString(fmt.Sprintf("- Initial capital: %s\n\n", report.Money(s.InitialCapital)))

	sb.WriteString("## Result\n")
	sb.WriteString(fmt.Sprintf("- Final capital: %s\n", report.Money(res.FinalCapital)))
	sb.WriteString(fmt.Sprintf("- Profit rate: %.2f%%\n", res.ProfitRatePercent))
	sb.WriteString(fmt.Sprintf("- Win rate: %.2f%%\n", res.WinRatePercent))
	sb.WriteString(fmt.Sprintf("- Max drawdown: %.2f%%\n", res.MaxDrawdownPercent))
	sb.WriteString(fmt.Sprintf("- Trades: %d\n\n", res.TotalTrades))

	sb.WriteString("## Daily bars\n")
	sb.WriteString("date | open | close | high | low | change\n")
	for _, b := range req.Bars {
		sb.WriteString(fmt.Sprintf("%s | %.2f | %.2f | %.2f | %.2f | %+.2f%%\n",
			b.Date, b.Open, b.Close, b.High, b.Low, b.ChangePercent()))
	}

	sb.WriteString("\n## Trades\n")
	for _, t := range s.Trades {
		switch t.Kind {
		case simulation.TradeSkip:
			sb.WriteString(fmt.Sprintf("- %s: skip (%s)\n", t.Date, t.Reason))
		case simulation.TradeBuy:
			sb.WriteString(fmt.Sprintf("- %s: buy %d @ %.2f (%s)\n", t.Date, t.Quantity, t.Price, t.Reason))
		case simulation.TradeSell:
			sb.WriteString(fmt.Sprintf("- %s: sell %d @ %.2f (%s)\n", t.Date, t.Quantity, t.Price, t.Reason))
		case simulation.TradeAutoSell:
			sb.WriteString(fmt.Sprintf("- %s: settled %d @ %.2f at session end\n", t.Date, t.Quantity, t.Price))
		}
	}

	sb.WriteString(`
## Task
Grade the trading on a 0-100 score and respond with JSON:
{"score": 75, "grade": "B", "strengths": [], "weaknesses": [], "suggestions": [], "analysis": "..."}
Grades: S (90-100) excellent strategy and risk control, A (80-89) good with minor gaps,
B (70-79) average, C (60-69) clear problems, D (0-59) needs major improvement.
Consider return, win rate, drawdown, timing, position sizing and risk control.
`)

	return sb.String()
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ParseResponse extracts the review from a model reply. It accepts a fenced
// json block or the first {...} object and falls back to a C grade holding
// the raw text.
func ParseResponse(text string) *Review {
	for _, candidate := range jsonCandidates(text) {
		var rv Review
		if err := json.Unmarshal([]byte(candidate), &rv); err != nil {
			continue
		}
		rv.Score = min(100, max(0, rv.Score))
		if !rv.Grade.IsValid() {
			rv.Grade = GradeForScore(rv.Score)
		}
		return &rv
	}

	return &Review{
		Score:    FallbackScore,
		Grade:    FallbackGrade,
		Analysis: text,
		Fallback: true,
	}
}

func jsonCandidates(text string) []string {
	var out []string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			out = append(out, text[start:end+1])
		}
	}
	return out
}

// Markdown renders the review for terminal display.
func (rv *Review) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Review: %s (%d/100)\n\n", rv.Grade, rv.Score)
	if rv.Fallback {
		sb.WriteString("_The model reply could not be parsed; showing it verbatim._\n\n")
	}
	for _, section := range []struct {
		title string
		items []string
	}{
		{"Strengths", rv.Strengths},
		{"Weaknesses", rv.Weaknesses},
		{"Suggestions", rv.Suggestions},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", section.title)
		for _, item := range section.items {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
		sb.WriteString("\n")
	}
	if rv.Analysis != "" {
		sb.WriteString("### Analysis\n\n")
		sb.WriteString(rv.Analysis)
		sb.WriteString("\n")
	}
	return sb.String()
}
