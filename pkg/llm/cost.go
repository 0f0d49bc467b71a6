package llm

// Token pricing per 1M tokens (USD) as of 2025.
var pricing = map[string]modelPrice{
	// OpenAI
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	"o1":            {Input: 15.00, Output: 60.00},
	"o1-mini":       {Input: 3.00, Output: 12.00},

	// Groq
	"llama3-8b-8192":       {Input: 0.05, Output: 0.08},
	"llama3-70b-8192":      {Input: 0.59, Output: 0.79},
	"llama-3.1-8b-instant": {Input: 0.05, Output: 0.08},
	"mixtral-8x7b-32768":   {Input: 0.24, Output: 0.24},
	"gemma2-9b-it":         {Input: 0.20, Output: 0.20},
}

type modelPrice struct {
	Input  float64 // per 1M input tokens
	Output float64 // per 1M output tokens
}

// EstimateCost returns the estimated cost in USD for the given model and
// token counts. Unknown models cost 0; figures are informational only.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return (float64(tokensIn) * p.Input / 1_000_000) + (float64(tokensOut) * p.Output / 1_000_000)
}
