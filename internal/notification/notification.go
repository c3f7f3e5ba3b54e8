package notification

import (
	"fmt"
	"strconv"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/wallet"
)

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// FromEvent renders the push message for an event. Per-task completions
// are not pushed; ok is false for them.
func FromEvent(e events.Event) (Message, bool) {
	data := map[string]string{
		"type": string(e.Type),
		"week": strconv.FormatUint(e.Week, 10),
	}
	if e.Player != nil {
		data["player"] = e.Player.Hex()
	}

	switch e.Type {
	case events.TypeStreakUpdated:
		data["new_streak"] = strconv.FormatUint(e.NewStreak, 10)
		return Message{
			Title: "Streak updated",
			Body:  fmt.Sprintf("%s is on a %d day streak", short(e), e.NewStreak),
			Data:  data,
		}, true
	case events.TypeWeekClosed:
		data["pool_wei"] = e.Pool.String()
		return Message{
			Title: fmt.Sprintf("Week %d closed", e.Week),
			Body:  fmt.Sprintf("%d players competed for %s ETH", e.Players, wallet.FormatEther(e.Pool)),
			Data:  data,
		}, true
	case events.TypeWeekSettled:
		data["pool_wei"] = e.Pool.String()
		return Message{
			Title: fmt.Sprintf("Week %d prizes sent", e.Week),
			Body:  fmt.Sprintf("%d winners shared the %s ETH pool", e.Players, wallet.FormatEther(e.Pool)),
			Data:  data,
		}, true
	case events.TypePlayerJoined:
		return Message{
			Title: "New challenger",
			Body:  fmt.Sprintf("%s joined week %d", short(e), e.Week),
			Data:  data,
		}, true
	}
	return Message{}, false
}

func short(e events.Event) string {
	if e.Player == nil {
		return "someone"
	}
	h := e.Player.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
