package core

import (
	"fmt"

	"github.com/signalsfoundry/netexpanse/model"
)

func chatPool(faction string, strategy model.Strategy) []string {
	pool := []string{
		fmt.Sprintf("Any %s members nearby?", faction),
		"Who is scanning me?",
		"Lag is terrible.",
		"Target acquired.",
		"Decrypting...",
		"Selling exploit keys.",
		"Did you see the new update?",
		"Compiling payload...",
	}
	switch strategy {
	case model.StrategyAggressive:
		pool = append(pool,
			"Smashing through firewalls. Try to keep up.",
			"Security levels are a suggestion.",
			"Draining accounts. Chaos reigns.",
		)
	case model.StrategyStealth:
		pool = append(pool,
			"In and out. No traces.",
			"Your logs are clean. You're welcome.",
			"Silence is golden.",
		)
	case model.StrategyExplorer:
		pool = append(pool,
			"Mapping new clusters...",
			"Found a new gateway in Sector-12.",
			"The network is infinite.",
		)
	}
	return pool
}
