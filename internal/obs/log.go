// Package obs provides the commitment machine's structured logging and
// metrics, grouped by domain area the way luxfi-adx's pkg/log and
// pkg/metric group theirs. Unlike luxfi-adx, this package talks to
// go.uber.org/zap and prometheus/client_golang directly rather than
// through the luxfi/node and luxfi/metric wrapper packages, which this
// module does not otherwise depend on.
package obs

import (
	"go.uber.org/zap"
)

// NewLogger builds a production zap logger, or a development logger with
// human-readable console output when env != "production".
func NewLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
