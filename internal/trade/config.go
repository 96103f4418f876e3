package trade

// Config holds configuration for the trade controller.
type Config struct {
	// StartingFunds is the cash available for trading in a new game.
	StartingFunds float64 `yaml:"starting_funds"`
	// ExternalBalance is the cash outside the brokerage account, moved in and
	// out with Deposit and Withdraw.
	ExternalBalance float64 `yaml:"external_balance"`
	// TradeHistoryRetentionDays and PortfolioHistoryRetentionDays bound the logs.
	TradeHistoryRetentionDays     int `yaml:"trade_history_retention_days"`
	PortfolioHistoryRetentionDays int `yaml:"portfolio_history_retention_days"`
	// NotifyOnFill emits a notification when a limit order executes.
	NotifyOnFill bool `yaml:"notify_on_fill"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		StartingFunds:                 10000,
		ExternalBalance:               50000,
		TradeHistoryRetentionDays:     7,
		PortfolioHistoryRetentionDays: 32,
		NotifyOnFill:                  true,
	}
}
