package notification

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"baseQuestAPI/internal/events"
)

func TestFromEvent(t *testing.T) {
	p := common.HexToAddress("0x1000000000000000000000000000000000000001")
	now := time.Now()

	msg, ok := FromEvent(events.StreakUpdated(p, 2, 4, now))
	assert.True(t, ok)
	assert.Equal(t, "0x1000...0001 is on a 4 day streak", msg.Body)
	assert.Equal(t, "4", msg.Data["new_streak"])

	msg, ok = FromEvent(events.WeekClosed(3, big.NewInt(20_000_000_000_000), 2, now))
	assert.True(t, ok)
	assert.Equal(t, "Week 3 closed", msg.Title)
	assert.Contains(t, msg.Body, "0.00002 ETH")

	_, ok = FromEvent(events.TaskCompleted(p, 2, 0, 100, now))
	assert.False(t, ok)
}
