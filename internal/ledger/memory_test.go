package ledger_test

import (
	"testing"

	"dicevault/internal/ledger"
	"dicevault/internal/ledger/ledgertest"
)

func TestMemoryStore(t *testing.T) {
	ledgertest.Run(t, ledger.NewMemoryStore())
}
