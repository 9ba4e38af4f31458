package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var errUsage = errors.New("usage")

const (
	loginUsage   = "login [username]"
	suggestUsage = "suggest [-career text] [-subjects a,b] [-context text]"
)

type command struct {
	usage string
	args  int
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":       {usage: loginUsage, args: -1, run: (*App).Login},
	"refresh":     {usage: "refresh", run: (*App).Refresh},
	"logout":      {usage: "logout", run: (*App).Logout},
	"data":        {usage: "data", run: get("/api/student/data")},
	"info":        {usage: "info", run: get("/api/student/info")},
	"photo":       {usage: "photo", run: get("/api/student/photo")},
	"exams":       {usage: "exams <enrollment-id>", args: 1, run: get("/api/student/exams/%s")},
	"cc-grades":   {usage: "cc-grades <card-id>", args: 1, run: get("/api/student/cc-grades/%s")},
	"exam-grades": {usage: "exam-grades <card-id>", args: 1, run: get("/api/student/exam-grades/%s")},
	"subjects":    {usage: "subjects <offer-id> <level-id>", args: 2, run: get("/api/student/subjects/%s/%s")},
	"suggest":     {usage: suggestUsage, args: -1, run: (*App).Suggest},
}

// Execute runs one command and persists the session afterwards, whether or
// not the command succeeded.
func (a *App) Execute(ctx context.Context, name string, args []string) error {
	if name == "help" {
		a.help()
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help')", name)
	}
	if cmd.args >= 0 && len(args) != cmd.args {
		return fmt.Errorf("%w: %s", errUsage, cmd.usage)
	}

	err := cmd.run(a, ctx, args)
	if perr := a.persist(); perr != nil && err == nil {
		err = fmt.Errorf("save session: %w", perr)
	}
	return err
}

func (a *App) help() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	usages := make([]string, 0, len(names))
	for _, name := range names {
		usages = append(usages, "  "+commands[name].usage)
	}
	fmt.Fprintf(a.out, "Available commands:\n%s\n  help\n  exit | quit\n", strings.Join(usages, "\n"))
}
