package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/cory-johannsen/growbot/internal/game/attempt"
	"github.com/cory-johannsen/growbot/internal/game/ranking"
)

const (
	helpText    = "Commands:\n/help - show this text\n/dick - try your luck once a day\n/top - show the leaderboard\n/ping - check the bot's latency"
	emptyTop    = "😥 No players yet\nJoin by sending /dick"
	failureText = "Something went wrong, please try again later."
	pongText    = "Pong!"
)

// Mention renders an HTML link that notifies the user.
func Mention(userID int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// AttemptText renders the reply to an attempt, whether or not a draw happened.
func AttemptText(mention string, out attempt.Outcome) string {
	if !out.Attempted {
		return fmt.Sprintf(
			"%s, your dick is %d cm.\nYou are #%d in the top.\nTry again in %d h %d min",
			mention, out.Record.Score, out.Rank, out.Next.Hours(), out.Next.Minutes(),
		)
	}

	change := "grew"
	delta := out.Delta
	if delta < 0 {
		change = "shrank"
		delta = -delta
	}
	return fmt.Sprintf(
		"%s, your dick %s by %d cm.\nIt is now %d cm.\nYou are #%d in the top.\nNext attempt in %d h %d min!",
		mention, change, delta, out.Record.Score, out.Rank, out.Next.Hours(), out.Next.Minutes(),
	)
}

// TopText renders the leaderboard; size is the requested board length.
func TopText(entries []ranking.Entry, size int) string {
	if len(entries) == 0 {
		return emptyTop
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d:\n\n", size)
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. <b>%s</b> (%d cm)\n", e.Position, html.EscapeString(e.Record.Name), e.Record.Score)
	}
	return b.String()
}

// PingText renders the latency report that replaces the initial pong.
func PingText(apiMillis, totalMillis int64) string {
	return fmt.Sprintf("Pong! %dms (API RTT), total %dms", apiMillis, totalMillis)
}
