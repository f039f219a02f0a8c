// Package testdata holds a labeled corpus of generative backend responses
// used to validate verdict parsing and result fusion end to end.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed verdicts.json
var verdictsJSON []byte

// Direct classification every corpus entry is fused against.
const (
	DirectCategoryID  = "5"
	DirectDescription = "临边防护缺失"
	DirectConfidence  = 0.31
)

// VerdictEntry is one raw backend response and the result it must fuse into.
// Expected suggestions of "remediate-<id>" come from the remediation table
// the fusion tests install.
type VerdictEntry struct {
	Description        string  `json:"description"`
	Response           string  `json:"response"`
	ExpectedMethod     string  `json:"expected_method"`
	ExpectedType       string  `json:"expected_type"`
	ExpectedConfidence float64 `json:"expected_confidence"`
	ExpectedSuggestion string  `json:"expected_suggestion"`
}

// LoadVerdicts parses the embedded verdicts.json.
func LoadVerdicts() ([]VerdictEntry, error) {
	var entries []VerdictEntry
	if err := json.Unmarshal(verdictsJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse verdicts.json: %w", err)
	}
	return entries, nil
}
