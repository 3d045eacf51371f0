package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateMarketplaces()...)
	errors = append(errors, c.validateApproval()...)
	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateAnalytics()...)
	errors = append(errors, c.validateAPI()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors
	if c.App.Name == "" {
		errors = append(errors, ValidationError{"app.name", "cannot be empty"})
	}
	if err := ValidateVersion(c.App.Version); err != nil {
		errors = append(errors, ValidationError{"app.version", err.Error()})
	}
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		errors = append(errors, ValidationError{"app.environment", "must be development, staging or production"})
	}
	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors
	if c.Database.Host == "" {
		errors = append(errors, ValidationError{"database.host", "cannot be empty"})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{"database.port", "must be between 1 and 65535"})
	}
	if c.Database.PoolSize <= 0 {
		errors = append(errors, ValidationError{"database.pool_size", "must be positive"})
	}
	return errors
}

func (c *Config) validateLLM() ValidationErrors {
	var errors ValidationErrors
	if c.LLM.Endpoint == "" {
		errors = append(errors, ValidationError{"llm.endpoint", "cannot be empty"})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{"llm.temperature", "must be between 0 and 2"})
	}
	if c.LLM.MaxTokens <= 0 {
		errors = append(errors, ValidationError{"llm.max_tokens", "must be positive"})
	}
	if c.LLM.DailyBudget < c.LLM.RequestCeiling {
		errors = append(errors, ValidationError{"llm.daily_budget", "must be at least the request ceiling"})
	}
	return errors
}

func (c *Config) validateMarketplaces() ValidationErrors {
	var errors ValidationErrors
	anyEnabled := false
	for name, mc := range c.Marketplaces {
		if !mc.Enabled {
			continue
		}
		anyEnabled = true
		field := "marketplaces." + name
		if mc.SyncInterval <= 0 {
			errors = append(errors, ValidationError{field + ".sync_interval", "must be positive"})
		}
		if mc.BatchSize <= 0 {
			errors = append(errors, ValidationError{field + ".batch_size", "must be positive"})
		}
		if mc.RateLimit <= 0 {
			errors = append(errors, ValidationError{field + ".rate_limit", "must be positive"})
		}
	}
	if !anyEnabled {
		errors = append(errors, ValidationError{"marketplaces", "at least one marketplace must be enabled"})
	}
	return errors
}

func (c *Config) validateApproval() ValidationErrors {
	var errors ValidationErrors
	for agentType, th := range c.Approval.Thresholds {
		field := "approval.thresholds." + agentType
		if th.AutoApprove < 0 || th.AutoApprove > 1 {
			errors = append(errors, ValidationError{field + ".auto_approve", "must be in [0, 1]"})
		}
		if th.Escalation < 0 || th.Escalation > 1 {
			errors = append(errors, ValidationError{field + ".escalation", "must be in [0, 1]"})
		}
		if th.Escalation > th.AutoApprove {
			errors = append(errors, ValidationError{field, "escalation threshold cannot exceed auto-approve threshold"})
		}
	}
	return errors
}

func (c *Config) validatePipeline() ValidationErrors {
	var errors ValidationErrors
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		errors = append(errors, ValidationError{"pipeline.min_confidence", "must be in [0, 1]"})
	}
	if c.Pipeline.OfflineBufferCap <= 0 {
		errors = append(errors, ValidationError{"pipeline.offline_buffer_cap", "must be positive"})
	}
	return errors
}

func (c *Config) validateAnalytics() ValidationErrors {
	var errors ValidationErrors
	if c.Analytics.WindowHours <= 0 {
		errors = append(errors, ValidationError{"analytics.window_hours", "must be positive"})
	}
	if c.Analytics.PredictionHorizon <= 0 {
		errors = append(errors, ValidationError{"analytics.prediction_horizon", "must be positive"})
	}
	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{"api.port", "must be between 1 and 65535"})
	}
	return errors
}
