package classify

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/spendsight/spendsight/internal/model"
)

// Merchant aggregates every transaction sharing one exact description.
type Merchant struct {
	Description  string
	Count        int
	Total        decimal.Decimal
	Type         string // type of the first transaction seen
	BankCategory string // bank category of the first transaction seen
	first        int
}

// Average returns the mean amount.
func (m Merchant) Average() decimal.Decimal {
	if m.Count == 0 {
		return decimal.Zero
	}
	return m.Total.Div(decimal.NewFromInt(int64(m.Count)))
}

// GroupMerchants groups transactions by exact description (case-sensitive)
// and orders the groups by count desc, then first appearance.
func GroupMerchants(txns []model.Transaction) []Merchant {
	idx := make(map[string]int)
	var merchants []Merchant
	for i, t := range txns {
		j, ok := idx[t.Description]
		if !ok {
			j = len(merchants)
			idx[t.Description] = j
			merchants = append(merchants, Merchant{
				Description:  t.Description,
				Type:         t.Type,
				BankCategory: t.Category,
				first:        i,
			})
		}
		merchants[j].Count++
		merchants[j].Total = merchants[j].Total.Add(t.Amount)
	}

	sort.SliceStable(merchants, func(a, b int) bool {
		if merchants[a].Count != merchants[b].Count {
			return merchants[a].Count > merchants[b].Count
		}
		return merchants[a].first < merchants[b].first
	})
	return merchants
}

// Batches partitions merchants into consecutive slices of at most size.
func Batches(merchants []Merchant, size int) [][]Merchant {
	if size < 1 {
		size = 1
	}
	var out [][]Merchant
	for start := 0; start < len(merchants); start += size {
		end := min(start+size, len(merchants))
		out = append(out, merchants[start:end])
	}
	return out
}
