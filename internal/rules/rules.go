// Package rules classifies a frame's label multiset against the fixed
// anomaly rule table.
//
// Rules are evaluated in table order and every matching rule replaces the
// reason produced so far, so the highest-numbered matching rule decides the
// result. A frame holding a banana and a phone is a phone anomaly; a frame
// holding two people and a cup is a multiple-people anomaly.
package rules

import (
	"fmt"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/labels"
)

// Kind identifies which rule produced a Reason.
type Kind int

const (
	None Kind = iota
	FoodDetected
	MobilePhoneDetected
	MultiplePersons
	EmptyChairDetected
)

var kindNames = map[Kind]string{
	None:                "none",
	FoodDetected:        "food_detected",
	MobilePhoneDetected: "mobile_phone_detected",
	MultiplePersons:     "multiple_persons",
	EmptyChairDetected:  "empty_chair_detected",
}

// String returns the snake_case kind name used in metrics and topics
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Reason is the outcome of classifying one frame.
type Reason struct {
	Kind  Kind
	Item  string // food item, set for FoodDetected
	Count int    // person count, set for MultiplePersons
}

// IsAnomaly reports whether any rule fired.
func (r Reason) IsAnomaly() bool {
	return r.Kind != None
}

// String renders the human-readable description written to the log and the
// on-screen status. No anomaly renders as "None".
func (r Reason) String() string {
	switch r.Kind {
	case FoodDetected:
		return "Food detected: " + r.Item
	case MobilePhoneDetected:
		return "Mobile phone detected"
	case MultiplePersons:
		return fmt.Sprintf("Multiple people detected: %d persons", r.Count)
	case EmptyChairDetected:
		return "Empty chair detected"
	default:
		return "None"
	}
}

// Label constants matched by the rule table.
const (
	LabelCellPhone = "cell phone"
	LabelMobile    = "mobile"
	LabelPerson    = "person"
	LabelChair     = "chair"
)

// FoodItems is checked in this order; the first present item names the reason.
var FoodItems = []string{"apple", "banana", "sandwich", "orange", "bottle", "cup"}

// Rule is one row of the table. Match returns the reason it would produce and
// whether its condition holds.
type Rule struct {
	Name  string
	Match func(m labels.Multiset) (Reason, bool)
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "food", Match: matchFood},
		{Name: "mobile_phone", Match: matchPhone},
		{Name: "multiple_persons", Match: matchPersons},
		{Name: "empty_chair", Match: matchEmptyChair},
	}
}

func matchFood(m labels.Multiset) (Reason, bool) {
	for _, item := range FoodItems {
		if m.Has(item) {
			return Reason{Kind: FoodDetected, Item: item}, true
		}
	}
	return Reason{}, false
}

func matchPhone(m labels.Multiset) (Reason, bool) {
	if m.Has(LabelCellPhone) || m.Has(LabelMobile) {
		return Reason{Kind: MobilePhoneDetected}, true
	}
	return Reason{}, false
}

func matchPersons(m labels.Multiset) (Reason, bool) {
	if n := m.Count(LabelPerson); n >= 2 {
		return Reason{Kind: MultiplePersons, Count: n}, true
	}
	return Reason{}, false
}

func matchEmptyChair(m labels.Multiset) (Reason, bool) {
	if m.Has(LabelChair) && m.Count(LabelPerson) == 0 {
		return Reason{Kind: EmptyChairDetected}, true
	}
	return Reason{}, false
}

// Engine evaluates the fixed rule table.
type Engine struct {
	rules []Rule
	flags map[string]struct{}
}

// New returns an engine over the built-in table.
func New() *Engine {
	flags := make(map[string]struct{}, len(FoodItems)+4)
	for _, item := range FoodItems {
		flags[item] = struct{}{}
	}
	for _, l := range []string{LabelCellPhone, LabelMobile, LabelChair, LabelPerson} {
		flags[l] = struct{}{}
	}
	return &Engine{rules: defaultRules(), flags: flags}
}

// Classify folds the rule table over m. Total and side-effect free.
func (e *Engine) Classify(m labels.Multiset) Reason {
	reason := Reason{Kind: None}
	for _, r := range e.rules {
		if next, ok := r.Match(m); ok {
			reason = next
		}
	}
	return reason
}

// FlagSet returns the labels highlighted on an anomalous frame. It does not
// depend on which rule fired.
func (e *Engine) FlagSet() map[string]struct{} {
	out := make(map[string]struct{}, len(e.flags))
	for l := range e.flags {
		out[l] = struct{}{}
	}
	return out
}

// Flagged reports whether label belongs to the flag set.
func (e *Engine) Flagged(label string) bool {
	_, ok := e.flags[labels.Normalize(label)]
	return ok
}

// Rules lists rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}
