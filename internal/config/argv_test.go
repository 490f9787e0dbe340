package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "wl-copy --trim-newline", want: []string{"wl-copy", "--trim-newline"}},
		{name: "double quoted spaces", input: `xclip -t "text/plain; charset=utf-8"`, want: []string{"xclip", "-t", "text/plain; charset=utf-8"}},
		{name: "single quotes are literal", input: `mycmd 'a\b $HOME'`, want: []string{"mycmd", `a\b $HOME`}},
		{name: "double quote escapes", input: `mycmd "say \"hi\" \n"`, want: []string{"mycmd", `say "hi" \n`}},
		{name: "escaped space", input: `mycmd hello\ world`, want: []string{"mycmd", "hello world"}},
		{name: "empty quoted argument kept", input: `mycmd "" tail`, want: []string{"mycmd", "", "tail"}},
		{name: "adjacent quoting joins", input: `mycmd pre"mid"'post'`, want: []string{"mycmd", "premidpost"}},
		{name: "leading comment", input: `# wl-copy --trim-newline`, want: nil},
		{name: "unterminated quote", input: `mycmd "oops`, wantErr: "unterminated quote"},
		{name: "unterminated single quote", input: `mycmd 'oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `mycmd hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseArgvExpandsHomeInProgram(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := parseArgv("~/bin/copy ~/literal")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(home, "bin", "copy"), "~/literal"}, got)
}

func TestMustParseArgvPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`mycmd "unterminated`)
	})
}
