package model

// TradeType classifies the trade a work order requires.
type TradeType int

const (
	TradePlumbing TradeType = iota
	TradeElectrical
	TradeHVAC
	TradeLandscaping
	TradeRoofing
	TradePainting
	TradeCarpentry
	TradeCleaning
	TradePestControl
	TradeGeneralMaintenance
)

var tradeNames = map[TradeType]string{
	TradePlumbing:           "plumbing",
	TradeElectrical:         "electrical",
	TradeHVAC:               "hvac",
	TradeLandscaping:        "landscaping",
	TradeRoofing:            "roofing",
	TradePainting:           "painting",
	TradeCarpentry:          "carpentry",
	TradeCleaning:           "cleaning",
	TradePestControl:        "pest_control",
	TradeGeneralMaintenance: "general_maintenance",
}

// searchQueries maps each trade to the phrase used when no generated queries
// are available.
var searchQueries = map[TradeType]string{
	TradePlumbing:           "plumber",
	TradeElectrical:         "electrician",
	TradeHVAC:               "HVAC contractor",
	TradeLandscaping:        "landscaping service",
	TradeRoofing:            "roofing contractor",
	TradePainting:           "painting contractor",
	TradeCarpentry:          "carpenter",
	TradeCleaning:           "cleaning service",
	TradePestControl:        "pest control",
	TradeGeneralMaintenance: "handyman service",
}

func (t TradeType) String() string {
	if s, ok := tradeNames[t]; ok {
		return s
	}
	return tradeNames[TradeGeneralMaintenance]
}

// SearchQuery returns the static place-search phrase for the trade.
func (t TradeType) SearchQuery() string {
	if q, ok := searchQueries[t]; ok {
		return q
	}
	return "contractor"
}

// ParseTradeType maps a wire string to its trade. Unrecognized input maps to
// TradeGeneralMaintenance with ok=false.
func ParseTradeType(s string) (TradeType, bool) {
	for t, name := range tradeNames {
		if name == s {
			return t, true
		}
	}
	return TradeGeneralMaintenance, false
}
