package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spendsight/spendsight/internal/llm"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

// Suggestion is the model's raw answer for one merchant, keyed by the
// merchant's position in the batch.
type Suggestion struct {
	ID          int    `json:"id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Confidence  string `json:"confidence"`
	Reasoning   string `json:"reasoning"`
}

// Classifier classifies one batch of merchants. Suggestion IDs index into batch.
type Classifier interface {
	Classify(ctx context.Context, batch []Merchant) ([]Suggestion, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, batch []Merchant) ([]Suggestion, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, batch []Merchant) ([]Suggestion, error) {
	return f(ctx, batch)
}

// LLMClassifier asks a model to classify merchants against a taxonomy.
type LLMClassifier struct {
	gen      llm.Generator
	taxonomy *taxonomy.Taxonomy
}

// NewLLMClassifier creates an LLMClassifier.
func NewLLMClassifier(gen llm.Generator, tax *taxonomy.Taxonomy) *LLMClassifier {
	return &LLMClassifier{gen: gen, taxonomy: tax}
}

const systemPrompt = `You categorize bank transaction merchants for a household budget.
Each merchant string stands for every transaction with that exact description,
so pick the category that fits the merchant, not a single transaction.`

const rulesPrompt = `Categorization rules:
1. Transaction type matters. Credit and ACH_CREDIT usually mean Income or
   Transfers. Debit means an expense. ACH_DEBIT is usually Bill Payments or
   Transfers.
2. PAYROLL or salary is Income. Venmo, Zelle, transfer and external are
   Transfers. AUTOPAY and credit card payment are Bill Payments.
3. Returns from a merchant keep the merchant's ORIGINAL category (an Amazon
   return is Shopping, a Safeway return is Groceries). Use Refunds only for
   generic credits not tied to a merchant.
4. If a category lists subcategories you MUST pick one of them. If it has
   none, subcategory must be null.
5. Use Uncategorized with low confidence when nothing fits.

Respond with a JSON array, one object per merchant:
{"id": <merchant id>, "category": "...", "subcategory": "..." or null,
 "confidence": "high" | "medium" | "low", "reasoning": "brief explanation"}
Return ONLY the JSON array.`

type promptMerchant struct {
	ID           int         `json:"id"`
	Merchant     string      `json:"merchant"`
	Count        int         `json:"transaction_count"`
	AvgAmount    json.Number `json:"avg_amount"`
	TotalAmount  json.Number `json:"total_amount"`
	Type         string      `json:"transaction_type"`
	BankCategory string      `json:"bank_category,omitempty"`
}

// BuildPrompt renders the user prompt for one batch.
func (c *LLMClassifier) BuildPrompt(batch []Merchant) (string, error) {
	items := make([]promptMerchant, len(batch))
	for i, m := range batch {
		items[i] = promptMerchant{
			ID:           i,
			Merchant:     m.Description,
			Count:        m.Count,
			AvgAmount:    json.Number(m.Average().StringFixed(2)),
			TotalAmount:  json.Number(m.Total.StringFixed(2)),
			Type:         m.Type,
			BankCategory: m.BankCategory,
		}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding merchants: %w", err)
	}

	var b strings.Builder
	b.WriteString(c.taxonomy.Prompt())
	b.WriteString("\nMerchants to classify (with transaction count, amounts and type):\n")
	b.Write(data)
	b.WriteString("\n\n")
	b.WriteString(rulesPrompt)
	return b.String(), nil
}

// Classify sends one batch to the model and decodes its JSON reply. A reply
// that is not a JSON array fails the batch.
func (c *LLMClassifier) Classify(ctx context.Context, batch []Merchant) ([]Suggestion, error) {
	prompt, err := c.BuildPrompt(batch)
	if err != nil {
		return nil, err
	}

	text, err := c.gen.Generate(ctx, llm.Request{System: systemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	if err := json.Unmarshal([]byte(llm.CleanJSON(text)), &out); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	return out, nil
}
