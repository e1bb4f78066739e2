package config

import (
	"fmt"
	"time"
)

// SolverConfig bounds resolve and explanation time.
type SolverConfig struct {
	// BudgetSeconds caps one full resolve.
	BudgetSeconds int `json:"budget_seconds"`
	// ExplainSeconds caps the conflict-set probe after an infeasible
	// resolve.
	ExplainSeconds int `json:"explain_seconds"`
}

// SetDefaults applies the stock budgets.
func (c *SolverConfig) SetDefaults() {
	if c.BudgetSeconds == 0 {
		c.BudgetSeconds = 10
	}
	if c.ExplainSeconds == 0 {
		c.ExplainSeconds = 2
	}
}

// Validate checks the budgets are positive.
func (c SolverConfig) Validate() error {
	if c.BudgetSeconds <= 0 {
		return fmt.Errorf("budget_seconds must be positive, got %d", c.BudgetSeconds)
	}
	if c.ExplainSeconds <= 0 {
		return fmt.Errorf("explain_seconds must be positive, got %d", c.ExplainSeconds)
	}
	return nil
}

// Budget returns the resolve budget as a duration.
func (c SolverConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}
