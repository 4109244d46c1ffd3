package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "bet:current:42", BetKey(42))
	assert.Equal(t, "account:current:agent-7", AccountKey("agent-7"))
}
