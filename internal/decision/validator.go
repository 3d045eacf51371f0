package decision

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Rule checks one aspect of a decision. The message is only meaningful when
// ok is false.
type Rule func(*Decision) (ok bool, message string)

// Validator runs a registry of named rules against decisions. Rules execute
// in registration order and all of them run even after a failure so callers
// see every violation at once.
type Validator struct {
	mu    sync.RWMutex
	rules map[string]Rule
	order []string
	log   zerolog.Logger
}

// NewValidator creates an empty validator
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		rules: make(map[string]Rule),
		log:   log.With().Str("component", "decision_validator").Logger(),
	}
}

// RegisterRule adds a named rule. Names must be unique.
func (v *Validator) RegisterRule(name string, rule Rule) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.rules[name]; exists {
		return Errorf(ErrCodeRuleExists, "rule %q already registered", name)
	}
	v.rules[name] = rule
	v.order = append(v.order, name)

	v.log.Debug().Str("rule", name).Msg("Validation rule registered")
	return nil
}

// UnregisterRule removes a named rule
func (v *Validator) UnregisterRule(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.rules[name]; !exists {
		return Errorf(ErrCodeUnknownRule, "rule %q not registered", name)
	}
	delete(v.rules, name)
	for i, n := range v.order {
		if n == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rules returns the registered rule names in registration order
func (v *Validator) Rules() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.order...)
}

// Validate runs every registered rule and returns the combined result.
// Failure messages are prefixed with the rule name.
func (v *Validator) Validate(d *Decision) (bool, []string) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	valid := true
	var messages []string
	for _, name := range v.order {
		ok, msg := v.rules[name](d)
		if !ok {
			valid = false
			messages = append(messages, fmt.Sprintf("%s: %s", name, msg))
		}
	}
	return valid, messages
}

// Built-in rule names
const (
	RuleMinimumConfidence    = "minimum_confidence"
	RuleRequiredReasoning    = "required_reasoning"
	RuleAllowedDecisionTypes = "allowed_decision_types"
	RuleBatteryEfficiency    = "battery_efficiency"
	RuleNetworkEfficiency    = "network_efficiency"
)

// MinimumConfidence fails decisions whose confidence is below min
func MinimumConfidence(min float64) Rule {
	return func(d *Decision) (bool, string) {
		if d.Confidence < min {
			return false, fmt.Sprintf("Confidence too low (%.2f < %.2f)", d.Confidence, min)
		}
		return true, ""
	}
}

// RequiredReasoning fails decisions with absent or too-short reasoning
func RequiredReasoning(minLength int) Rule {
	return func(d *Decision) (bool, string) {
		if len(d.Reasoning) < minLength {
			return false, fmt.Sprintf("Reasoning too short (%d < %d characters)", len(d.Reasoning), minLength)
		}
		return true, ""
	}
}

// AllowedDecisionTypes fails decisions whose type is outside the given set
func AllowedDecisionTypes(types ...Type) Rule {
	allowed := make(map[Type]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(d *Decision) (bool, string) {
		if _, ok := allowed[d.Type]; !ok {
			return false, fmt.Sprintf("Decision type %q not allowed", d.Type)
		}
		return true, ""
	}
}

// BatteryEfficiency fails decisions that are not battery efficient when
// required is true
func BatteryEfficiency(required bool) Rule {
	return func(d *Decision) (bool, string) {
		if required && !d.BatteryEfficient {
			return false, "Decision is not battery efficient"
		}
		return true, ""
	}
}

// NetworkEfficiency fails decisions that are not network efficient when
// required is true
func NetworkEfficiency(required bool) Rule {
	return func(d *Decision) (bool, string) {
		if required && !d.NetworkEfficient {
			return false, "Decision is not network efficient"
		}
		return true, ""
	}
}
