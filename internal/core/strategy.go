package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned for a strategy name that is not recognized.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy selects how a batch of calls is dispatched.
type Strategy string

const (
	StrategySerial      Strategy = "serial"
	StrategyParallel    Strategy = "parallel"
	StrategyNonBlocking Strategy = "nonblocking"
)

// Strategies lists every supported strategy in display order.
var Strategies = []Strategy{StrategySerial, StrategyParallel, StrategyNonBlocking}

// ParseStrategy resolves a strategy name. "parallelism" and "non-blocking"
// are accepted as aliases.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial":
		return StrategySerial, nil
	case "parallel", "parallelism":
		return StrategyParallel, nil
	case "nonblocking", "non-blocking":
		return StrategyNonBlocking, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

func (s Strategy) Valid() bool {
	_, err := ParseStrategy(string(s))
	return err == nil
}
