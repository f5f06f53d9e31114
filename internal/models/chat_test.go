package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationGroupID(t *testing.T) {
	// Both participants derive the same id regardless of argument order.
	assert.Equal(t, "3_7", ConversationGroupID(3, 7))
	assert.Equal(t, "3_7", ConversationGroupID(7, 3))
	assert.Equal(t, ConversationGroupID(12, 5), ConversationGroupID(5, 12))
}
