package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/progres-gateway/internal/client/client"
	"github.com/dmitrijs2005/progres-gateway/internal/client/config"
)

type App struct {
	config *config.Config
	api    client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	s, err := client.LoadSession(c.SessionFile)
	if err != nil {
		return nil, err
	}

	api := client.NewHTTPClient(c.ServerURL, c.Timeout, s)
	return newApp(c, api, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, api client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

// Run executes args as a single command, or starts the REPL when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "progres-gateway CLI (type 'help' for commands)")
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
		return nil
	}
	return a.Execute(ctx, args[0], args[1:])
}

func (a *App) isLoggedIn() bool {
	return a.api.Session().LoggedIn()
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return ""
	}
	return fmt.Sprintf("(%s)", a.api.Session().Subject)
}

// persist writes the current tokens to the session file, or removes it when
// the session is empty.
func (a *App) persist() error {
	s := a.api.Session()
	if !s.LoggedIn() {
		return client.RemoveSession(a.config.SessionFile)
	}
	return client.SaveSession(a.config.SessionFile, s)
}
