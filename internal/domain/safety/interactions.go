package safety

import (
	"fmt"
	"strings"
)

// interactionTable maps a drug keyword to the keywords it conflicts with.
// A deliberately small, hardcoded table; a terminology service would replace
// this in a fuller deployment.
var interactionTable = map[string][]string{
	"amoxicillin":         {"warfarin", "methotrexate"},
	"warfarin":            {"amoxicillin", "aspirin", "ibuprofen", "naproxen"},
	"aspirin":             {"warfarin", "ibuprofen", "naproxen", "heparin"},
	"ibuprofen":           {"warfarin", "aspirin", "lithium", "naproxen", "methotrexate"},
	"naproxen":            {"warfarin", "aspirin", "ibuprofen", "lithium"},
	"metformin":           {"contrast"},
	"lithium":             {"ibuprofen", "naproxen", "furosemide", "hydrochlorothiazide"},
	"methotrexate":        {"amoxicillin", "ibuprofen", "trimethoprim"},
	"trimethoprim":        {"methotrexate"},
	"digoxin":             {"amiodarone", "verapamil", "furosemide"},
	"amiodarone":          {"digoxin", "warfarin", "simvastatin"},
	"simvastatin":         {"amiodarone", "erythromycin", "clarithromycin"},
	"erythromycin":        {"simvastatin", "theophylline"},
	"clarithromycin":      {"simvastatin"},
	"theophylline":        {"erythromycin", "ciprofloxacin"},
	"ciprofloxacin":       {"theophylline", "warfarin"},
	"furosemide":          {"lithium", "digoxin", "gentamicin"},
	"gentamicin":          {"furosemide"},
	"heparin":             {"aspirin"},
	"verapamil":           {"digoxin"},
	"hydrochlorothiazide": {"lithium"},
}

// Interaction is one potential drug conflict between a new medication order
// and an existing active medication.
type Interaction struct {
	NewDrug       string `json:"new_drug"`
	ExistingDrug  string `json:"existing_drug"`
	ExistingTitle string `json:"existing_title"`
	Message       string `json:"message"`
}

// extractKeywords pulls candidate drug names out of a free-text title.
func extractKeywords(title string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range strings.Fields(title) {
		word = strings.ToLower(strings.TrimRight(word, ".,;:"))
		if len(word) > 2 {
			keywords[word] = struct{}{}
		}
	}
	return keywords
}

// CheckInteractions compares a new medication title against the titles of
// the patient's existing active medications. Advisory only: interactions are
// surfaced as warnings, never as blocks.
func CheckInteractions(newTitle string, existingTitles []string) []Interaction {
	newKeywords := extractKeywords(newTitle)
	seen := make(map[[2]string]struct{})
	var warnings []Interaction

	for _, existingTitle := range existingTitles {
		existingKeywords := extractKeywords(existingTitle)
		for nk := range newKeywords {
			for _, conflict := range interactionTable[nk] {
				if _, ok := existingKeywords[conflict]; !ok {
					continue
				}
				pair := [2]string{nk, conflict}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				warnings = append(warnings, Interaction{
					NewDrug:       nk,
					ExistingDrug:  conflict,
					ExistingTitle: existingTitle,
					Message:       fmt.Sprintf("potential interaction: %s may interact with %s (in %q)", nk, conflict, existingTitle),
				})
			}
		}
	}
	return warnings
}
