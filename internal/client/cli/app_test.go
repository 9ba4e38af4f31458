package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/progres-gateway/internal/client/client"
	"github.com/dmitrijs2005/progres-gateway/internal/client/config"
)

type fakeAPI struct {
	session client.Session

	gets     []string
	posts    []string
	postBody any
	loginPw  string
	loginErr error
	getErr   error
	response string
}

func (f *fakeAPI) Login(_ context.Context, username string, password []byte) error {
	f.loginPw = string(password)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.session = client.Session{Subject: "s-" + username, AccessToken: "a", RefreshToken: "r"}
	return nil
}

func (f *fakeAPI) Refresh(context.Context) error {
	if f.session.RefreshToken == "" {
		return client.ErrUnauthorized
	}
	f.session.AccessToken = "a2"
	return nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.session = client.Session{}
	return errors.New("connection refused")
}

func (f *fakeAPI) Get(_ context.Context, path string) (json.RawMessage, error) {
	f.gets = append(f.gets, path)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return json.RawMessage(f.response), nil
}

func (f *fakeAPI) Post(_ context.Context, path string, body any) (json.RawMessage, error) {
	f.posts = append(f.posts, path)
	f.postBody = body
	return json.RawMessage(f.response), nil
}

func (f *fakeAPI) Session() client.Session { return f.session }

func newTestApp(t *testing.T, api *fakeAPI, input string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{SessionFile: filepath.Join(t.TempDir(), "session.json")}
	var out bytes.Buffer
	return newApp(cfg, api, strings.NewReader(input), &out), &out
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func TestExecute_LoginPersistsSession(t *testing.T) {
	stubPassword(t, "secret")
	api := &fakeAPI{}
	a, out := newTestApp(t, api, "alice\n")

	require.NoError(t, a.Execute(context.Background(), "login", nil))
	assert.Equal(t, "secret", api.loginPw)
	assert.Contains(t, out.String(), "Login successful (s-alice)")

	saved, err := client.LoadSession(a.config.SessionFile)
	require.NoError(t, err)
	assert.Equal(t, api.session, saved)
}

func TestExecute_LoginWithUsernameArgument(t *testing.T) {
	stubPassword(t, "secret")
	api := &fakeAPI{}
	a, _ := newTestApp(t, api, "")

	require.NoError(t, a.Execute(context.Background(), "login", []string{"bob"}))
	assert.Equal(t, "s-bob", api.session.Subject)
}

func TestExecute_LoginFailure(t *testing.T) {
	stubPassword(t, "wrong")
	api := &fakeAPI{loginErr: client.ErrUnauthorized}
	a, _ := newTestApp(t, api, "alice\n")

	err := a.Execute(context.Background(), "login", nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	_, statErr := os.Stat(a.config.SessionFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_LogoutRemovesSessionEvenIfServerFails(t *testing.T) {
	api := &fakeAPI{session: client.Session{Subject: "s-1", AccessToken: "a", RefreshToken: "r"}}
	a, out := newTestApp(t, api, "")
	require.NoError(t, client.SaveSession(a.config.SessionFile, api.session))

	require.NoError(t, a.Execute(context.Background(), "logout", nil))
	assert.Contains(t, out.String(), "warning: server logout failed")
	assert.Contains(t, out.String(), "Logged out successfully")

	_, err := os.Stat(a.config.SessionFile)
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_RefreshWithoutSession(t *testing.T) {
	a, _ := newTestApp(t, &fakeAPI{}, "")

	err := a.Execute(context.Background(), "refresh", nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestExecute_RecordCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"data", nil, "/api/student/data"},
		{"info", nil, "/api/student/info"},
		{"photo", nil, "/api/student/photo"},
		{"exams", []string{"42"}, "/api/student/exams/42"},
		{"cc-grades", []string{"7"}, "/api/student/cc-grades/7"},
		{"exam-grades", []string{"a/b"}, "/api/student/exam-grades/a%2Fb"},
		{"subjects", []string{"3", "9"}, "/api/student/subjects/3/9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{session: client.Session{AccessToken: "a"}, response: `{"ok":true}`}
			a, out := newTestApp(t, api, "")

			require.NoError(t, a.Execute(context.Background(), tt.name, tt.args))
			assert.Equal(t, []string{tt.want}, api.gets)
			assert.Equal(t, "{\n  \"ok\": true\n}\n", out.String())
		})
	}
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "unknown command", cmd: "frobnicate", wantMsg: `unknown command "frobnicate"`},
		{name: "missing argument", cmd: "exams", wantErr: errUsage},
		{name: "too many arguments", cmd: "subjects", args: []string{"1"}, wantErr: errUsage},
		{name: "login with two names", cmd: "login", args: []string{"a", "b"}, wantErr: errUsage},
		{name: "bad suggest flag", cmd: "suggest", args: []string{"-nope"}, wantErr: errUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, &fakeAPI{}, "")

			err := a.Execute(context.Background(), tt.cmd, tt.args)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestExecute_ForbiddenPropagates(t *testing.T) {
	api := &fakeAPI{session: client.Session{AccessToken: "a"}, getErr: client.ErrForbidden}
	a, _ := newTestApp(t, api, "")

	err := a.Execute(context.Background(), "exams", []string{"999"})
	require.ErrorIs(t, err, client.ErrForbidden)
}

func TestExecute_Suggest(t *testing.T) {
	api := &fakeAPI{session: client.Session{AccessToken: "a"}, response: `{"recommendations":[]}`}
	a, _ := newTestApp(t, api, "")

	args := []string{"-career", "software engineer", "-subjects", "math, physics,,", "-context", "likes labs"}
	require.NoError(t, a.Execute(context.Background(), "suggest", args))

	assert.Equal(t, []string{"/api/recommendations/suggest"}, api.posts)
	assert.Equal(t, map[string]any{
		"careerPreference":  "software engineer",
		"preferredSubjects": []string{"math", "physics"},
		"additionalContext": "likes labs",
	}, api.postBody)
}

func TestExecute_SuggestWithoutFlagsSendsEmptyObject(t *testing.T) {
	api := &fakeAPI{session: client.Session{AccessToken: "a"}, response: `{}`}
	a, _ := newTestApp(t, api, "")

	require.NoError(t, a.Execute(context.Background(), "suggest", nil))
	assert.Equal(t, map[string]any{}, api.postBody)
}

func TestRun_SingleCommand(t *testing.T) {
	api := &fakeAPI{session: client.Session{AccessToken: "a"}, response: `[]`}
	a, _ := newTestApp(t, api, "")

	require.NoError(t, a.Run(context.Background(), []string{"data"}))
	assert.Equal(t, []string{"/api/student/data"}, api.gets)
}

func TestRun_REPL(t *testing.T) {
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })

	api := &fakeAPI{session: client.Session{Subject: "s-1", AccessToken: "a"}, response: `[]`}
	a, _ := newTestApp(t, api, "help\n\ndata\nexams\nquit\ninfo\n")

	require.NoError(t, a.Run(context.Background(), nil))

	assert.Equal(t, []string{"/api/student/data"}, api.gets, "commands after quit must not run")
	assert.Contains(t, printed, "progres (s-1)>")
	assert.Contains(t, printed, "Bye!")
	assert.Contains(t, strings.Join(printed, "\n"), "error: usage: exams <enrollment-id>")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	orig := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = orig })

	api := &fakeAPI{response: `[]`}
	a, _ := newTestApp(t, api, "")

	runREPL(context.Background(), a, a.getStatus, bufio.NewScanner(strings.NewReader("data")))
	assert.Equal(t, []string{"/api/student/data"}, api.gets)
}
