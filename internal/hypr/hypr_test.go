package hypr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyAndDismissUseHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	require.NoError(t, Notify(context.Background(), 3, 1200, "", "Speech recognition error"))
	require.NoError(t, DismissNotify(context.Background()))
	require.NoError(t, Available(context.Background()))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"--quiet dispatch notify 3 1200 rgb(89b4fa) Speech recognition error",
		"--quiet dispatch dismissnotify",
		"version",
	}, lines)
}

func TestNotifyReturnsCombinedOutputOnFailure(t *testing.T) {
	installHyprctlStub(t, `
echo 'boom from hyprctl' >&2
exit 1
`)

	err := Notify(context.Background(), 1, 500, "rgb(ffffff)", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom from hyprctl")
}

func TestNotifyFailsWithoutHyprctl(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	require.Error(t, Notify(context.Background(), 1, 500, "", "hi"))
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/bin/sh\nset -eu\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
