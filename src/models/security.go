package models

// -----------------------------------------------------------------------------

// MSecurity is one row of the security master.
type MSecurity struct {
	ID            int64   `yaml:"id" json:"id"`
	Symbol        string  `yaml:"symbol" json:"symbol"`
	Exchange      string  `yaml:"exchange" json:"exchange"`
	Type          string  `yaml:"type" json:"type"`
	LotSize       float64 `yaml:"lot_size" json:"lot_size"`
	Multiplier    float64 `yaml:"multiplier" json:"multiplier"`
	ClosePrice    float64 `yaml:"close_price" json:"close_price"`
	Rate          float64 `yaml:"rate" json:"rate"`
	Currency      string  `yaml:"currency" json:"currency"`
	Adv20         float64 `yaml:"adv20" json:"adv20"`
	MarketCap     float64 `yaml:"market_cap" json:"market_cap"`
	Sector        int64   `yaml:"sector" json:"sector"`
	IndustryGroup int64   `yaml:"industry_group" json:"industry_group"`
	Industry      int64   `yaml:"industry" json:"industry"`
	SubIndustry   int64   `yaml:"sub_industry" json:"sub_industry"`
	LocalSymbol   string  `yaml:"local_symbol" json:"local_symbol"`
	Bbgid         string  `yaml:"bbgid" json:"bbgid"`
	Cusip         string  `yaml:"cusip" json:"cusip"`
	Sedol         string  `yaml:"sedol" json:"sedol"`
	Isin          string  `yaml:"isin" json:"isin"`
}
