package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Option is a single candidate the maker can select
type Option struct {
	ID          string   `json:"id"`
	Value       *float64 `json:"value,omitempty"`
	BatteryCost *float64 `json:"battery_cost,omitempty"`
	NetworkCost *float64 `json:"network_cost,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Constraints narrows the candidate set before scoring. Nil fields are
// ignored.
type Constraints struct {
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	RequiredTags  []string `json:"required_tags,omitempty"`
}

// Maker scores options and produces selection decisions. Scoring is
// resource-aware: a low battery level or a cellular network in the request
// context shifts weight toward cheap options.
type Maker struct {
	log zerolog.Logger
}

// NewMaker creates a decision maker
func NewMaker(log zerolog.Logger) *Maker {
	return &Maker{log: log.With().Str("component", "decision_maker").Logger()}
}

const (
	lowBatteryThreshold = 0.3
	defaultOptionScore  = 0.5
)

// MakeDecision selects the best option under the supplied constraints and
// returns a pending selection decision. The caller's context map is never
// mutated; it is deep-copied into the decision.
func (m *Maker) MakeDecision(ctx context.Context, decisionCtx map[string]interface{}, options []Option, constraints *Constraints) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, NewError(ErrCodeNoOptions, "no options provided", nil)
	}

	valid := options
	if constraints != nil {
		valid = filterOptions(options, constraints)
		if len(valid) == 0 {
			return nil, NewError(ErrCodeNoValidOptions, "all options removed by constraints", map[string]interface{}{
				"option_count": len(options),
			})
		}
	}

	batteryEfficient, networkEfficient := resourceFlags(decisionCtx)

	best := 0
	bestScore := -1.0
	scores := make([]float64, len(valid))
	for i, opt := range valid {
		score := scoreOption(opt, batteryEfficient, networkEfficient)
		scores[i] = score
		// ties keep the earliest option
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	selected := valid[best]
	confidence := clamp01(bestScore + learningAdjustment(decisionCtx, TypeSelection))

	alternatives := make([]string, 0, len(valid)-1)
	for i, opt := range valid {
		if i != best {
			alternatives = append(alternatives, opt.ID)
		}
	}

	d := New(TypeSelection, selected.ID, confidence, buildReasoning(selected, confidence, decisionCtx, batteryEfficient, networkEfficient))
	d.Alternatives = alternatives
	d.Context = deepCopyMap(decisionCtx)
	d.BatteryEfficient = batteryEfficient
	d.NetworkEfficient = networkEfficient

	m.log.Debug().
		Str("decision_id", d.ID).
		Str("action", d.Action).
		Float64("confidence", d.Confidence).
		Bool("battery_efficient", batteryEfficient).
		Bool("network_efficient", networkEfficient).
		Int("alternatives", len(alternatives)).
		Msg("Decision made")

	return d, nil
}

// filterOptions drops any option violating a recognized constraint
func filterOptions(options []Option, c *Constraints) []Option {
	valid := make([]Option, 0, len(options))
	for _, opt := range options {
		if c.MinValue != nil && (opt.Value == nil || *opt.Value < *c.MinValue) {
			continue
		}
		if c.MaxValue != nil && (opt.Value == nil || *opt.Value > *c.MaxValue) {
			continue
		}
		if len(c.AllowedValues) > 0 && !contains(c.AllowedValues, opt.ID) {
			continue
		}
		if len(c.RequiredTags) > 0 && !hasAllTags(opt.Tags, c.RequiredTags) {
			continue
		}
		valid = append(valid, opt)
	}
	return valid
}

// scoreOption computes the resource-aware score for one option, clamped to
// [0,1]. Base score is value/100, defaulting to 0.5 when no value is given.
func scoreOption(opt Option, batteryEfficient, networkEfficient bool) float64 {
	score := defaultOptionScore
	if opt.Value != nil {
		score = *opt.Value / 100
	}
	if batteryEfficient && opt.BatteryCost != nil {
		score = 0.5*score + 0.5*(1-*opt.BatteryCost)
	}
	if networkEfficient && opt.NetworkCost != nil {
		score = 0.7*score + 0.3*(1-*opt.NetworkCost)
	}
	return clamp01(score)
}

// resourceFlags reads device_info from the request context
func resourceFlags(decisionCtx map[string]interface{}) (battery, network bool) {
	device, ok := decisionCtx["device_info"].(map[string]interface{})
	if !ok {
		return false, false
	}
	if level, ok := device["battery_level"].(float64); ok && level < lowBatteryThreshold {
		battery = true
	}
	if netType, ok := device["network_type"].(string); ok && netType == "cellular" {
		network = true
	}
	return battery, network
}

// learningAdjustment reads the per-type confidence bias the pipeline injects
// under learning_adjustments before every decision.
func learningAdjustment(decisionCtx map[string]interface{}, t Type) float64 {
	adjustments, ok := decisionCtx["learning_adjustments"].(map[string]float64)
	if ok {
		return adjustments[string(t)]
	}
	// the map may also arrive as a generic map after serialization
	generic, ok := decisionCtx["learning_adjustments"].(map[string]interface{})
	if ok {
		if v, ok := generic[string(t)].(float64); ok {
			return v
		}
	}
	return 0
}

func buildReasoning(opt Option, confidence float64, decisionCtx map[string]interface{}, batteryEfficient, networkEfficient bool) string {
	parts := []string{fmt.Sprintf("Selected option '%s'", opt.ID)}
	if opt.Value != nil {
		parts = append(parts, fmt.Sprintf("value %.1f", *opt.Value))
	}
	parts = append(parts, fmt.Sprintf("confidence %.2f", confidence))
	if scenario, ok := decisionCtx["scenario"].(string); ok && scenario != "" {
		parts = append(parts, fmt.Sprintf("scenario '%s'", scenario))
	}
	if batteryEfficient {
		parts = append(parts, "low battery mode")
	}
	if networkEfficient {
		parts = append(parts, "cellular network mode")
	}
	return strings.Join(parts, ", ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func hasAllTags(tags, required []string) bool {
	for _, r := range required {
		if !contains(tags, r) {
			return false
		}
	}
	return true
}
