package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
	"github.com/Azelphur/ownCloud-share-tools/internal/repository"
	handler "github.com/Azelphur/ownCloud-share-tools/internal/server/handler/http"
	"github.com/Azelphur/ownCloud-share-tools/internal/service"
)

type testEnv struct {
	t         *testing.T
	url       string
	ocDir     string
	localRoot string
	cfgPath   string
}

// newTestEnv starts an in-memory share server with users alice and bob, and
// a desktop client config whose only sync folder maps localRoot to "/".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	auth := service.NewAuthService(users)
	for _, login := range []string{"alice", "bob"} {
		require.NoError(t, auth.Register(context.Background(), login, login+"-pw"))
	}
	shares := &handler.ShareHandler{Shares: service.NewShareService(repository.NewMemoryShareRepository(), users, nil)}
	srv := httptest.NewServer(handler.NewRouter(shares, auth, zap.NewNop(), handler.RouterOptions{}))
	t.Cleanup(srv.Close)

	base := t.TempDir()
	env := &testEnv{
		t:         t,
		url:       srv.URL,
		ocDir:     filepath.Join(base, "oc"),
		localRoot: filepath.Join(base, "ownCloud"),
		cfgPath:   filepath.Join(base, "missing.yaml"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(env.ocDir, "folders"), 0o755))
	require.NoError(t, os.MkdirAll(env.localRoot, 0o755))
	desc := "[ownCloud]\nlocalPath=" + env.localRoot + "\ntargetPath=/\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.ocDir, "folders", "ownCloud"), []byte(desc), 0o644))
	return env
}

func (e *testEnv) local(parts ...string) string {
	return filepath.Join(append([]string{e.localRoot}, parts...)...)
}

func (e *testEnv) touch(parts ...string) string {
	p := e.local(parts...)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(e.t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

// run invokes the CLI as alice.
func (e *testEnv) run(stdin string, args ...string) (int, string, string) {
	e.t.Helper()
	global := []string{
		"-config", e.cfgPath,
		"-url", e.url,
		"-username", "alice",
		"-password", "alice-pw",
		"-owncloud-dir", e.ocDir,
	}
	return e.runRaw(stdin, append(global, args...)...)
}

func (e *testEnv) runRaw(stdin string, args ...string) (int, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	app := &App{
		Stdin:   strings.NewReader(stdin),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Version: "1.2.3",
		PasswordPrompt: func(string) (string, error) {
			return "", errors.New("prompt disabled")
		},
	}
	code := app.Run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndUsage(t *testing.T) {
	e := newTestEnv(t)

	code, out, _ := e.runRaw("", "-version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "ocshare 1.2.3\n", out)

	code, _, errOut := e.runRaw("")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "getshares")

	code, _, errOut = e.run("", "frobnicate")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestCreateAndList(t *testing.T) {
	e := newTestEnv(t)

	code, out, errOut := e.run("", "create", "-path", "/Photos")
	require.Equal(t, ExitOK, code, errOut)
	assert.Regexp(t, `^#1 `+e.url+`/public\.php\?service=files&t=[0-9a-f]{32} /Photos\n$`, out)

	code, out, errOut = e.run("", "create", "-path", "/Docs", "-share-type", "user", "-share-with", "bob", "-deny-share")
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "#2 - /Docs\n", out)

	code, out, _ = e.run("", "getshares")
	require.Equal(t, ExitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "#1 "+e.url))
	assert.Equal(t, "#2 - /Docs", lines[1])

	code, out, _ = e.run("", "getshares", "-path", "/Docs")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "#2 - /Docs\n", out)

	code, out, _ = e.run("", "getshare", "2")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "read|update|create|delete (15)")
	assert.Contains(t, out, "share with:  bob")
}

func TestCreate_ValidationFailsBeforeRequest(t *testing.T) {
	e := newTestEnv(t)

	code, _, errOut := e.run("", "create", "-path", "/Docs", "-share-type", "user")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "invalid shareWith")

	code, _, _ = e.run("", "create", "-share-type", "public")
	assert.Equal(t, ExitUsage, code)
}

func TestUpdate(t *testing.T) {
	e := newTestEnv(t)
	code, _, errOut := e.run("", "create", "-path", "/Photos")
	require.Equal(t, ExitOK, code, errOut)

	code, out, errOut := e.run("", "update", "1", "-allow-update", "-expire", "09-03-2099", "-share-password", "pw")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "read|update (3)")
	assert.Contains(t, out, "expires:     09-03-2099")
	assert.Contains(t, out, "password:    yes")

	code, out, _ = e.run("", "getshare", "1")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "read|update (3)")
	assert.Contains(t, out, "password:    yes")

	code, out, errOut = e.run("", "update", "1", "-clear-password", "-clear-expire")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "expires:     never")
	assert.Contains(t, out, "password:    no")

	code, _, errOut = e.run("", "update", "1")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "no field to change")

	code, _, _ = e.run("", "update", "1", "-share-password", "x", "-clear-password")
	assert.Equal(t, ExitUsage, code)

	code, _, errOut = e.run("", "update", "1", "-deny-read")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "server refused the request (400)")
}

func TestDelete(t *testing.T) {
	e := newTestEnv(t)
	code, _, _ := e.run("", "create", "-path", "/Photos")
	require.Equal(t, ExitOK, code)

	code, out, _ := e.run("", "delete", "1")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "deleted share #1\n", out)

	code, _, errOut := e.run("", "getshare", "1")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "share #1 not found")

	code, _, _ = e.run("", "delete", "abc")
	assert.Equal(t, ExitFailure, code)
}

func TestResolve(t *testing.T) {
	e := newTestEnv(t)
	file := e.touch("Docs", "a.txt")

	code, out, errOut := e.run("", "resolve", file)
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "/Docs/a.txt\n", out)

	code, _, errOut = e.run("", "resolve", filepath.Join(t.TempDir(), "elsewhere.txt"))
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "is not inside a sync folder")
}

func TestResolve_Offline(t *testing.T) {
	e := newTestEnv(t)
	file := e.touch("a.txt")

	// No URL or credentials: resolve never talks to the server.
	code, out, errOut := e.runRaw("", "-config", e.cfgPath, "-owncloud-dir", e.ocDir, "resolve", file)
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "/a.txt\n", out)
}

func TestGetShares_Local(t *testing.T) {
	e := newTestEnv(t)
	code, _, _ := e.run("", "create", "-path", "/Docs")
	require.Equal(t, ExitOK, code)
	code, _, _ = e.run("", "create", "-path", "/Music")
	require.Equal(t, ExitOK, code)

	code, out, errOut := e.run("", "getshares", "-local", "-path", e.local("Docs"))
	require.Equal(t, ExitOK, code, errOut)
	assert.True(t, strings.HasSuffix(out, " /Docs\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLink(t *testing.T) {
	e := newTestEnv(t)
	file := e.touch("report.pdf")

	code, first, errOut := e.run("", "link", file)
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, first, protocol.PublicSharePath)

	code, second, _ := e.run("", "link", file)
	require.Equal(t, ExitOK, code)
	assert.Equal(t, first, second, "existing link should be reused")

	code, out, _ := e.run("", "getshares")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLink_Adopt(t *testing.T) {
	e := newTestEnv(t)
	outside := filepath.Join(t.TempDir(), "holiday.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("jpg"), 0o644))

	code, _, errOut := e.run("", "link", outside)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "is not inside a sync folder")

	code, out, errOut := e.run("", "link", outside, "-adopt")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, protocol.PublicSharePath)

	_, err := os.Stat(e.local("InstantUpload", "holiday.jpg"))
	assert.NoError(t, err, "file should be moved into InstantUpload")
	_, err = os.Stat(outside)
	assert.True(t, os.IsNotExist(err))

	code, out, _ = e.run("", "getshares")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, " /InstantUpload/holiday.jpg")
}

func TestShell(t *testing.T) {
	e := newTestEnv(t)
	dir := e.local("Photos")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	script := strings.Join([]string{
		"list",
		"password secret",
		"link on",
		"password secret",
		"expire 09-03-2099",
		"allow 1 update",
		"deny 1 read",
		"bogus",
		"",
		"list",
		"link off",
		"list",
		"exit",
		"list",
	}, "\n") + "\n"

	code, out, errOut := e.run(script, "shell", dir)
	require.Equal(t, ExitOK, code, errOut)

	assert.Contains(t, out, "sharing /Photos")
	assert.Contains(t, out, "not shared")
	assert.Contains(t, out, "error: no public link, run 'link on' first")
	assert.Contains(t, out, "public.php?service=files&t=")
	assert.Contains(t, out, "updated share #1")
	assert.Contains(t, out, "allow update on share #1: now read|update")
	assert.Contains(t, out, "error: server refused the request (400)")
	assert.Contains(t, out, `error: unknown command "bogus"`)
	assert.Contains(t, out, "(password) expires 09-03-2099")
	assert.Contains(t, out, "deleted share #1")
	assert.Equal(t, 3, strings.Count(out, "not shared"), "list after exit must not run")
}

func TestShell_EOF(t *testing.T) {
	e := newTestEnv(t)
	code, out, errOut := e.run("help\n", "shell", e.local("Photos"))
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "allow <id> <flag>")
}

func TestMissingPassword(t *testing.T) {
	e := newTestEnv(t)
	var stdout, stderr bytes.Buffer
	app := &App{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr}

	code := app.Run(context.Background(), []string{
		"-config", e.cfgPath, "-url", e.url, "-username", "alice", "getshares",
	})
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr.String(), errNoPassword.Error())
}

func TestWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	code, _, errOut := e.runRaw("", "-config", e.cfgPath, "-url", e.url, "-username", "alice", "-password", "nope", "getshares")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "cannot reach server")
}

func TestInvalidConfig(t *testing.T) {
	e := newTestEnv(t)
	code, _, errOut := e.runRaw("", "-config", e.cfgPath, "-username", "alice", "-password", "x", "getshares")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "invalid configuration")
}

func TestParseInterspersed(t *testing.T) {
	fs := newFlagSet("t")
	adopt := fs.Bool("adopt", false, "")
	rest, err := parseInterspersed(fs, []string{"a", "-adopt", "b"})
	require.NoError(t, err)
	assert.True(t, *adopt)
	assert.Equal(t, []string{"a", "b"}, rest)
}

func TestPermissionFlags_AllowBeforeDeny(t *testing.T) {
	fs := newFlagSet("t")
	pf := addPermissionFlags(fs)
	require.NoError(t, fs.Parse([]string{"-deny-update", "-allow-update", "-allow-create"}))

	req, err := pf.request()
	require.NoError(t, err)
	mask, ok := req.ResolveFrom(1)
	assert.True(t, ok)
	assert.EqualValues(t, 5, mask)
}
