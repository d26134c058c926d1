// Package fieldmap holds the canonical accounting concepts and the ordered
// provider field names that may carry each of them.
package fieldmap

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Concept is a canonical accounting line item.
type Concept string

const (
	Assets                Concept = "ASSETS"
	Liabilities           Concept = "LIABILITIES"
	CurrentAssets         Concept = "CURRENT_ASSETS"
	CurrentLiabilities    Concept = "CURRENT_LIABILITIES"
	NonCurrentLiabilities Concept = "NON_CURRENT_LIABILITIES"
	RetainedEarnings      Concept = "RETAINED_EARNINGS"
	Equity                Concept = "EQUITY"
	CommonStock           Concept = "COMMON_STOCK"
	Cash                  Concept = "CASH"
	FixedAssets           Concept = "FIXED_ASSETS"

	Revenue         Concept = "REVENUE"
	OperatingCosts  Concept = "OPERATING_COSTS"
	GrossProfit     Concept = "GROSS_PROFIT"
	OperatingIncome Concept = "OPERATING_INCOME"
	PreTaxIncome    Concept = "PRE_TAX_INCOME"
	NetIncome       Concept = "NET_INCOME"
	InterestExpense Concept = "INTEREST_EXPENSE"
	EBIT            Concept = "EBIT"
	EPS             Concept = "EPS"

	OperatingCashFlow Concept = "OPERATING_CASH_FLOW"
)

// Map is Concept -> synonyms in priority order. The first synonym present wins.
type Map map[Concept][]string

// Default is the built-in vocabulary, covering the naming used by the
// fundamentals feed across statement vintages.
func Default() Map {
	return Map{
		Assets:                {"TotalAssets", "Assets"},
		Liabilities:           {"TotalLiabilities", "Liabilities"},
		CurrentAssets:         {"CurrentAssets"},
		CurrentLiabilities:    {"CurrentLiabilities"},
		NonCurrentLiabilities: {"NonCurrentLiabilities"},
		RetainedEarnings:      {"RetainedEarnings", "UnappropriatedRetainedEarnings", "RetainedEarningsAccumulatedDeficit"},
		Equity:                {"TotalEquity", "Equity", "EquityAttributableToOwnersOfParent"},
		CommonStock:           {"CommonStock", "OrdinaryShares", "CapitalStock", "OrdinaryShare"},
		Cash:                  {"CashAndCashEquivalents", "Cash"},
		FixedAssets:           {"PropertyPlantAndEquipment", "NonCurrentAssets"},

		Revenue:         {"Revenue", "OperatingRevenue", "TotalOperatingRevenue"},
		OperatingCosts:  {"OperatingCosts", "CostOfRevenue", "CostOfGoodsSold"},
		GrossProfit:     {"GrossProfit"},
		OperatingIncome: {"OperatingIncome"},
		PreTaxIncome:    {"PreTaxIncome", "IncomeBeforeTax"},
		NetIncome:       {"IncomeAfterTaxes", "NetIncome", "ProfitLoss"},
		InterestExpense: {"InterestExpense", "FinanceCosts"},
		EBIT:            {"EBIT"},
		EPS:             {"EPS", "BasicEarningsPerShare"},

		OperatingCashFlow: {"CashFlowsFromOperatingActivities", "NetCashProvidedByUsedInOperatingActivities"},
	}
}

// Synonyms returns the candidate field names for c. An unmapped concept
// resolves to its own literal name.
func (m Map) Synonyms(c Concept) []string {
	if names, ok := m[c]; ok && len(names) > 0 {
		return names
	}
	return []string{string(c)}
}

// Merge returns a copy of m with every concept in overlay replaced.
func (m Map) Merge(overlay Map) Map {
	out := make(Map, len(m)+len(overlay))
	for c, names := range m {
		out[c] = append([]string(nil), names...)
	}
	for c, names := range overlay {
		if len(names) == 0 {
			continue
		}
		out[c] = append([]string(nil), names...)
	}
	return out
}

// Concepts returns the mapped concepts in sorted order.
func (m Map) Concepts() []Concept {
	out := make([]Concept, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type fileFormat struct {
	Fields map[string][]string `yaml:"fields"`
}

// Load reads a YAML overlay and merges it over Default. An empty path
// returns Default unchanged.
//
//	fields:
//	  REVENUE: [Revenue, OperatingRevenue]
func Load(path string) (Map, error) {
	base := Default()
	if path == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field map %s: %w", path, err)
	}
	return Parse(b, base)
}

// Parse decodes a YAML overlay and merges it over base.
func Parse(b []byte, base Map) (Map, error) {
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse field map: %w", err)
	}
	overlay := make(Map, len(f.Fields))
	for k, v := range f.Fields {
		overlay[Concept(k)] = v
	}
	return base.Merge(overlay), nil
}
