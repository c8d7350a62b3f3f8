package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spacetask/spacetask/internal/client/api"
)

func printUser(w io.Writer, u *api.User) {
	fmt.Fprintf(w, "%s <%s>\n  id: %s\n  balance: %d coins\n  joined: %s\n", u.UserName, u.Email, u.ID, u.CoinBalance, u.CreatedAt)
}

func printTasks(w io.Writer, tasks []api.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tBOUNTY\tSTATUS\tLOCATION\tCREATOR")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", t.ID, t.Title, t.BountyAmount, t.Status, location(t), t.CreatorName)
	}
	_ = tw.Flush()
}

func location(t api.Task) string {
	if t.LocationName != nil && *t.LocationName != "" {
		return *t.LocationName
	}
	return fmt.Sprintf("%.5f,%.5f", t.Latitude, t.Longitude)
}

func printTask(w io.Writer, t *api.Task) {
	fmt.Fprintf(w, "%s [%s]\n  id: %s\n  bounty: %d coins\n  where: %s\n  by: %s\n", t.Title, t.Status, t.ID, t.BountyAmount, location(*t), t.CreatorName)
	if t.Label != "" {
		fmt.Fprintf(w, "  label: %s\n", t.Label)
	}
	if t.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", t.Description)
	}
	if t.CompletionCriteria != "" {
		fmt.Fprintf(w, "  done when: %s\n", t.CompletionCriteria)
	}
}

func printSubmissions(w io.Writer, subs []api.Submission) {
	if len(subs) == 0 {
		fmt.Fprintln(w, "No submissions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBY\tSTATUS\tSUBMITTED\tIMAGE")
	for _, s := range subs {
		image := s.ImageURL
		if image == "" {
			image = s.ImageRef
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.SubmitterName, s.Status, s.SubmittedAt, image)
	}
	_ = tw.Flush()
}

func printLeaderboard(w io.Writer, entries []api.LeaderboardEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tUSER\tCOINS\tCOMPLETED")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i+1, e.UserName, e.CoinBalance, e.CompletedTasks)
	}
	_ = tw.Flush()
}

// printHistory shows entries signed from userID's point of view.
func printHistory(w io.Writer, userID string, entries []api.LedgerEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tAMOUNT\tTYPE\tDESCRIPTION")
	for _, e := range entries {
		amount := e.Amount
		if e.FromUserID != nil && *e.FromUserID == userID {
			amount = -amount
		}
		fmt.Fprintf(tw, "%s\t%+d\t%s\t%s\n", e.CreatedAt, amount, e.Type, e.Description)
	}
	_ = tw.Flush()
}
