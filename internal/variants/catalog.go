package variants

import "github.com/wonny/aegis-longterm/internal/contracts"

// Default returns the built-in catalog (4 categories × 3 versions)
func Default() *Registry {
	r, err := New(defaultFile())
	if err != nil {
		panic("variants: built-in catalog invalid: " + err.Error())
	}
	return r
}

func defaultFile() *File {
	return &File{
		Defaults: map[string]string{
			"fundamental": "v2.0",
			"momentum":    "v2.0",
			"value":       "v1.2",
			"quality":     "v1.2",
		},
		Variants: map[string][]Entry{
			"fundamental": {
				{Version: "v1.0", Query: "roe > 15 AND debt_to_equity < 1.0 AND eps_growth_3y > 0", Weight: 0.25, ExpectedResults: contracts.Count(50), Description: "Profitable, moderately levered companies with positive 3y EPS growth"},
				{Version: "v1.1", Query: "roe > 15 AND debt_to_equity < 0.8 AND eps_growth_3y > 5 AND current_ratio > 1.2", Weight: 0.28, ExpectedResults: contracts.Count(40), Description: "v1.0 with tighter leverage and a liquidity floor"},
				{Version: "v2.0", Query: "roe > 12 AND roic > 10 AND debt_to_equity < 0.8 AND revenue_growth_5y > 5 AND fcf_margin > 5", Weight: 0.30, ExpectedResults: contracts.Variable(), Description: "Multi-factor fundamentals: returns on capital, growth and cash generation"},
			},
			"momentum": {
				{Version: "v1.0", Query: "price > sma_200 AND rsi_14 BETWEEN 40 AND 70", Weight: 0.20, ExpectedResults: contracts.Count(60), Description: "Long-term uptrend without overbought readings"},
				{Version: "v1.1", Query: "price > sma_200 AND sma_50 > sma_200 AND rsi_14 BETWEEN 45 AND 70", Weight: 0.22, ExpectedResults: contracts.Count(45), Description: "Golden-cross trend filter on top of v1.0"},
				{Version: "v2.0", Query: "return_12m_ex_1m > 10 AND price > sma_200 AND sma_50 > sma_200 AND relative_strength_6m > 0", Weight: 0.25, ExpectedResults: contracts.Variable(), Description: "12-1 month momentum with trend and relative strength confirmation"},
			},
			"value": {
				{Version: "v1.0", Query: "pe < 20 AND pb < 3", Weight: 0.20, ExpectedResults: contracts.Count(50), Description: "Classic low multiple screen"},
				{Version: "v1.1", Query: "pe < 18 AND pb < 2.5 AND ev_to_ebitda < 12", Weight: 0.22, ExpectedResults: contracts.Count(40), Description: "Adds enterprise value check to v1.0"},
				{Version: "v1.2", Query: "pe < 18 AND ev_to_ebitda < 10 AND fcf_yield > 4 AND dividend_yield > 1", Weight: 0.25, ExpectedResults: contracts.Count(35), Description: "Cash-flow based value with a dividend floor"},
			},
			"quality": {
				{Version: "v1.0", Query: "gross_margin > 30 AND operating_margin > 10", Weight: 0.20, ExpectedResults: contracts.Count(40), Description: "Margin quality"},
				{Version: "v1.1", Query: "gross_margin > 30 AND operating_margin > 12 AND interest_coverage > 5", Weight: 0.22, ExpectedResults: contracts.Count(35), Description: "Margins plus debt service capacity"},
				{Version: "v1.2", Query: "gross_margin > 35 AND operating_margin > 15 AND interest_coverage > 8 AND earnings_stability_5y > 0.7", Weight: 0.20, ExpectedResults: contracts.Variable(), Description: "Durable margins with stable five-year earnings"},
			},
		},
	}
}
