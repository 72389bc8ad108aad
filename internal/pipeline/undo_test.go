package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReviewerFromStatus(t *testing.T) {
	status := ":true: Approved by <@U0REV1> <!date^1700000000^{date_short_pretty} at {time}|2023-11-14T22:13:20Z>."
	assert.Equal(t, "U0REV1", ReviewerFromStatus(status))

	assert.Equal(t, "", ReviewerFromStatus("no reviewer here"))
}

func TestUndoExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)

	within := fmt.Sprintf("%d.000100", now.Add(-6*24*time.Hour).Unix())
	assert.False(t, UndoExpired(now, within))

	expired := fmt.Sprintf("%d.000100", now.Add(-8*24*time.Hour).Unix())
	assert.True(t, UndoExpired(now, expired))

	// unparsable timestamps fail closed
	assert.True(t, UndoExpired(now, "not-a-ts"))
}
