package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spacetask/spacetask/internal/client/api"
)

type command struct {
	name  string
	usage string
	// auth commands are hidden and refused until the user logs in.
	auth bool
	run  func(a *App, ctx context.Context, args []string) error
}

var errUsage = errors.New("usage")

var commands = []command{
	{"register", "register", false, (*App).Register},
	{"login", "login", false, (*App).Login},
	{"logout", "logout", true, (*App).Logout},
	{"me", "me", true, (*App).Me},
	{"user", "user <user_id>", true, (*App).User},
	{"tasks", "tasks [active|completed|cancelled] [limit] [offset]", true, (*App).Tasks},
	{"nearby", "nearby <lat> <lng> [radius_km]", true, (*App).Nearby},
	{"created", "created [user_id]", true, (*App).Created},
	{"completed", "completed [user_id]", true, (*App).Completed},
	{"show", "show <task_id>", true, (*App).Show},
	{"create", "create", true, (*App).Create},
	{"update", "update <task_id>", true, (*App).Update},
	{"cancel", "cancel <task_id>", true, (*App).Cancel},
	{"delete", "delete <task_id>", true, (*App).Delete},
	{"upload", "upload <image_path>", true, (*App).Upload},
	{"submit", "submit <task_id> <image_key> [note...]", true, (*App).Submit},
	{"subs", "subs <task_id>", true, (*App).Submissions},
	{"accept", "accept <submission_id>", true, (*App).Accept},
	{"reject", "reject <submission_id>", true, (*App).Reject},
	{"board", "board [limit]", true, (*App).Board},
	{"history", "history [limit]", true, (*App).History},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (a *App) help() {
	names := []string{}
	for _, c := range commands {
		if c.auth == a.isLoggedIn() {
			names = append(names, c.name)
		}
	}
	names = append(names, "help", "exit")
	fmt.Fprintln(a.out, "Available commands:", strings.Join(names, ", "))
}

// runREPL reads commands from reader until EOF, "exit" or "quit". Command
// errors are reported and never end the loop.
func runREPL(ctx context.Context, a *App, reader *bufio.Reader) {
	for {
		fmt.Fprintf(a.out, "spacetask %s> ", a.getStatus())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out, "error:", err)
			}
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			a.help()
			continue
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		}

		cmd, ok := findCommand(name)
		if !ok {
			fmt.Fprintln(a.out, "Unknown command:", name)
			continue
		}
		if cmd.auth && !a.isLoggedIn() {
			fmt.Fprintln(a.out, "Please login first")
			continue
		}

		if err := cmd.run(a, ctx, args); err != nil {
			a.report(cmd, err)
		}
	}
}

func (a *App) report(cmd command, err error) {
	var se *api.StatusError
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(a.out, "Usage:", cmd.usage)
	case errors.Is(err, api.ErrUnauthorized):
		fmt.Fprintln(a.out, "Session expired or invalid, please login again")
	case errors.Is(err, api.ErrUnavailable):
		a.setMode(ModeOffline)
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.As(err, &se):
		fmt.Fprintln(a.out, "error:", se.Message)
	default:
		fmt.Fprintln(a.out, "error:", err)
	}
}
