package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/llm"
)

type Intent string

const (
	IntentDefinition  Intent = "definition"
	IntentExplanation Intent = "explanation"
	IntentHowTo       Intent = "how_to"
	IntentExample     Intent = "example"
	IntentComparison  Intent = "comparison"
	IntentAnalysis    Intent = "analysis"
	IntentSummary     Intent = "summary"
	IntentFactual     Intent = "factual"
	IntentOpinion     Intent = "opinion"
	IntentGeneralQA   Intent = "general_qa"
)

var knownIntents = map[Intent]struct{}{
	IntentDefinition: {}, IntentExplanation: {}, IntentHowTo: {}, IntentExample: {}, IntentComparison: {},
	IntentAnalysis: {}, IntentSummary: {}, IntentFactual: {}, IntentOpinion: {}, IntentGeneralQA: {},
}

// ParseIntent maps a label to a known intent, defaulting to general_qa.
func ParseIntent(label string) Intent {
	in := Intent(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := knownIntents[in]; ok {
		return in
	}
	return IntentGeneralQA
}

// IntentClassifier decides what kind of answer a question asks for.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) Intent
}

type intentRule struct {
	intent Intent
	cues   []string
}

// Rules are checked in order; the first cue found wins. Comparison and
// analysis come before the broader definition and explanation cues so that
// "what is the difference" is a comparison.
var intentRules = []intentRule{
	{IntentComparison, []string{"difference between", "compare", "comparison", "vs", "versus", "区别", "对比", "比较", "差异", "不同"}},
	{IntentSummary, []string{"summarize", "summarise", "summary", "overview", "总结", "概括", "摘要", "归纳", "概述"}},
	{IntentAnalysis, []string{"analyze", "analyse", "analysis", "evaluate", "pros and cons", "impact of", "分析", "评估", "优缺点", "影响"}},
	{IntentExample, []string{"example", "for instance", "sample", "例子", "示例", "案例", "举例", "举个"}},
	{IntentHowTo, []string{"how to", "how do", "how can", "steps to", "guide", "如何", "怎么", "怎样", "步骤", "方法"}},
	{IntentOpinion, []string{"do you think", "opinion", "should i", "recommend", "你认为", "你觉得", "建议", "看法"}},
	{IntentExplanation, []string{"why", "explain", "reason", "为什么", "原因", "解释", "说明"}},
	{IntentDefinition, []string{"what is", "what are", "define", "definition", "meaning of", "什么是", "定义", "含义", "概念", "是什么"}},
	{IntentFactual, []string{"when", "where", "who", "how many", "how much", "which", "何时", "哪里", "谁", "多少", "几", "哪个"}},
}

// RuleClassifier matches English and Chinese cue words.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (RuleClassifier) Classify(_ context.Context, query string) Intent {
	q := " " + strings.Join(strings.FieldsFunc(strings.ToLower(query), isSeparator), " ") + " "
	for _, rule := range intentRules {
		for _, cue := range rule.cues {
			if isASCII(cue) {
				cue = " " + cue + " "
			}
			if strings.Contains(q, cue) {
				return rule.intent
			}
		}
	}
	return IntentGeneralQA
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// LLMClassifier asks the chat model for the intent and falls back to the
// rules on any failure.
type LLMClassifier struct {
	provider llm.LLMProvider
	fallback IntentClassifier
	logger   logger.ILogger
}

func NewLLMClassifier(provider llm.LLMProvider, log logger.ILogger) *LLMClassifier {
	return &LLMClassifier{provider: provider, fallback: NewRuleClassifier(), logger: log}
}

func (c *LLMClassifier) Classify(ctx context.Context, query string) Intent {
	response, err := c.provider.Generate(ctx, buildIntentPrompt(query), llm.WithTemperature(0), llm.WithJSONMode())
	if err != nil {
		c.logger.Warn(logModule, "Intent classification failed, using rules", map[string]interface{}{"error": err.Error()})
		return c.fallback.Classify(ctx, query)
	}

	raw := extractJSON(response)
	var payload struct {
		Intent string `json:"intent"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &payload) != nil {
		c.logger.Warn(logModule, "Intent parsing failed, using rules", map[string]interface{}{"response": response})
		return c.fallback.Classify(ctx, query)
	}
	if _, ok := knownIntents[Intent(strings.ToLower(payload.Intent))]; !ok {
		return c.fallback.Classify(ctx, query)
	}
	return Intent(strings.ToLower(payload.Intent))
}

func buildIntentPrompt(query string) string {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer. You do NOT answer questions. You only classify them.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("definition: asks what something is\n")
	prompt.WriteString("explanation: asks why or how something works\n")
	prompt.WriteString("how_to: asks for steps or a method\n")
	prompt.WriteString("example: asks for examples or cases\n")
	prompt.WriteString("comparison: asks for differences or similarities\n")
	prompt.WriteString("analysis: asks for evaluation, impact, pros and cons\n")
	prompt.WriteString("summary: asks to summarize or give an overview\n")
	prompt.WriteString("factual: asks for a specific fact (who, when, where, how many)\n")
	prompt.WriteString("opinion: asks for a recommendation or view\n")
	prompt.WriteString("general_qa: anything else\n")
	prompt.WriteString("</intent_definitions>\n\n")
	prompt.WriteString(fmt.Sprintf("Respond with ONLY valid JSON: {\"intent\": \"%s\"}", "definition|explanation|how_to|example|comparison|analysis|summary|factual|opinion|general_qa"))
	return prompt.String()
}

// StrategyFor picks the retrieval strategy that suits an intent.
func StrategyFor(in Intent) string {
	switch in {
	case IntentDefinition, IntentExplanation, IntentSummary:
		return entity.StrategyVector
	case IntentHowTo, IntentExample, IntentFactual:
		return entity.StrategyKeyword
	default:
		return entity.StrategyHybrid
	}
}

// AdjustTemperature bounds the answer temperature by intent: precise intents
// cool it down, opinion warms it up.
func AdjustTemperature(in Intent, base float64) float64 {
	switch in {
	case IntentFactual:
		return minFloat(base, 0.2)
	case IntentDefinition:
		return minFloat(base, 0.3)
	case IntentAnalysis, IntentComparison:
		return minFloat(base, 0.5)
	case IntentOpinion:
		if base < 0.8 {
			return 0.8
		}
	}
	return base
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
