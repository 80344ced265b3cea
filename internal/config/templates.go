package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# KRX Scalper Configuration

[capital]
# Starting virtual capital in KRW
initial = 500000.0
# Minimum order amount; scaled-down buys below this are rejected
min_order_amount = 10000.0
# Fraction of available cash used when a buy cannot be fully funded
scale_down_ratio = 0.9

[risk]
# Exit thresholds in percent
profit_target_pct = 5.0
stop_loss_pct = -5.0
# Maximum concurrent open positions
max_positions = 5
# Derive order size and capacity from current capital tier
tiered_strategy = true

[session]
timezone = "Asia/Seoul"
open = "09:00"
entry_open = "09:05"
entry_cutoff = "14:00"
force_exit = "15:10"
close = "15:30"
# Exchange holidays, YYYY-MM-DD
holidays = []

[engine]
tick_interval = "5s"
quote_workers = 4
screen_tag = "scalp"

[store]
# db_path = "~/.config/krx-scalper/scalper.db"

[feed]
# Condition-search websocket endpoint; empty disables the live feed
url = ""

[log]
level = "info"
console = true
file = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
