package cache

import (
	"fmt"
	"strconv"
)

// Balances are stored as decimal strings so redis-cli shows them as-is.

func formatBalance(amount uint64) []byte {
	return strconv.AppendUint(nil, amount, 10)
}

func parseBalance(data []byte) (uint64, error) {
	amount, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance %q: %w", data, err)
	}
	return amount, nil
}
