package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// get returns a command that fetches path, with each argument substituted
// (escaped) into the %s verbs of the format.
func get(format string) func(a *App, ctx context.Context, args []string) error {
	return func(a *App, ctx context.Context, args []string) error {
		segments := make([]any, len(args))
		for i, arg := range args {
			segments[i] = url.PathEscape(arg)
		}

		raw, err := a.api.Get(ctx, fmt.Sprintf(format, segments...))
		if err != nil {
			return err
		}
		return printJSON(a.out, raw)
	}
}

// Suggest asks the gateway for specialty recommendations.
func (a *App) Suggest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	career := fs.String("career", "", "career preference")
	subjects := fs.String("subjects", "", "comma separated preferred subjects")
	extra := fs.String("context", "", "additional context")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, suggestUsage)
	}

	body := map[string]any{}
	if *career != "" {
		body["careerPreference"] = *career
	}
	if list := splitList(*subjects); len(list) > 0 {
		body["preferredSubjects"] = list
	}
	if *extra != "" {
		body["additionalContext"] = *extra
	}

	raw, err := a.api.Post(ctx, "/api/recommendations/suggest", body)
	if err != nil {
		return err
	}
	return printJSON(a.out, raw)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := w.Write(append(raw, '\n'))
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
