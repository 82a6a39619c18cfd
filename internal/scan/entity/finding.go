package entity

// Finding is one issue reported by the analyzer.
//
// Fields are kept as the analyzer printed them; Line is not coerced to a number.
type Finding struct {
	RuleName string `json:"rule_name"`
	Severity string `json:"severity"`
	Line     string `json:"line"`
	Message  string `json:"message"`
}
