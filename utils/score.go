package utils

// CompositeScore is the leaderboard score: streak days plus weekly base points.
func CompositeScore(currentStreak, weeklyBasePoints uint64) uint64 {
	return currentStreak + weeklyBasePoints
}

// WinnerCount is how many ranked players share the prize: the top 10%,
// never fewer than one when anyone is ranked.
func WinnerCount(rankedPlayers int) int {
	if rankedPlayers <= 0 {
		return 0
	}
	n := rankedPlayers / 10
	if n < 1 {
		n = 1
	}
	return n
}
