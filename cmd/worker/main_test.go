package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOwner(t *testing.T) {
	assert.Equal(t, "node-1-worker", lockOwner("node-1"))
	assert.Equal(t, "", lockOwner(""), "empty id keeps the random default")
	assert.NotEqual(t, lockOwner("node-1"), "node-1", "owner never equals the bare worker id")
}
