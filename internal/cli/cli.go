// Package cli parses dictate's command line into a Parsed value.
package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandRun            Command = "run"
	CommandToggle         Command = "toggle"
	CommandStop           Command = "stop"
	CommandCancel         Command = "cancel"
	CommandStatus         Command = "status"
	CommandSelectMic      Command = "select-mic"
	CommandRefreshDevices Command = "refresh-devices"
	CommandQuit           Command = "quit"
	CommandTranscribe     Command = "transcribe"
	CommandModels         Command = "models"
	CommandDevices        Command = "devices"
	CommandDoctor         Command = "doctor"
	CommandASRServer      Command = "asr-server"
	CommandVersion        Command = "version"
	CommandHelp           Command = "help"
)

// DefaultASRListen is where asr-server listens without --listen.
const DefaultASRListen = "127.0.0.1:7744"

// Parsed is the resolved invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Mic is the select-mic argument.
	Mic string

	// transcribe
	Input    string
	Model    string
	Language string

	// asr-server
	Listen string
}

// Parse resolves args without running anything. Help requests return a
// Parsed with ShowHelp set.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := newRootCommand("dictate", &parsed)
	// cobra falls back to os.Args for a nil slice.
	root.SetArgs(append([]string{}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// HelpText renders the root usage for binaryName.
func HelpText(binaryName string) string {
	return newRootCommand(binaryName, &Parsed{}).UsageString()
}

func newRootCommand(binaryName string, parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:           binaryName,
		Short:         "Local speech-to-text daemon with hotkey and folder-watch transcription",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				parsed.ShowHelp = false
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&parsed.ConfigPath, "config", "c", "", "Config file path (default: $XDG_CONFIG_HOME/dictate/config.yaml)")
	root.Flags().BoolVar(&showVersion, "version", false, "Show version")

	simple := []struct {
		command Command
		short   string
	}{
		{CommandRun, "Run the daemon in the foreground"},
		{CommandToggle, "Start recording, or stop and transcribe when already recording"},
		{CommandStop, "Stop the active recording and transcribe it"},
		{CommandCancel, "Cancel the active recording and discard it"},
		{CommandStatus, "Print the daemon state"},
		{CommandRefreshDevices, "Ask the daemon to refresh its microphone list"},
		{CommandQuit, "Stop the daemon"},
		{CommandModels, "List downloadable models"},
		{CommandDevices, "List available input devices"},
		{CommandDoctor, "Run configuration and environment checks"},
		{CommandVersion, "Print version information"},
	}
	for _, s := range simple {
		root.AddCommand(leafCommand(parsed, s.command, s.short, cobra.NoArgs, nil))
	}

	root.AddCommand(leafCommand(parsed, CommandSelectMic, "Select the microphone by name, or \"default\"", cobra.ExactArgs(1), func(args []string) {
		parsed.Mic = strings.TrimSpace(args[0])
	}))

	transcribe := leafCommand(parsed, CommandTranscribe, "Transcribe one audio file next to itself", cobra.NoArgs, nil)
	transcribe.Flags().StringVarP(&parsed.Input, "input", "i", "", "Audio file to transcribe")
	transcribe.Flags().StringVarP(&parsed.Model, "model", "m", "", "Model name (default: config model)")
	transcribe.Flags().StringVarP(&parsed.Language, "language", "l", "", "Language code, or \"auto\" to detect")
	_ = transcribe.MarkFlagRequired("input")
	root.AddCommand(transcribe)

	server := leafCommand(parsed, CommandASRServer, "Serve the local recognizer over gRPC", cobra.NoArgs, nil)
	server.Flags().StringVar(&parsed.Listen, "listen", DefaultASRListen, "TCP address to listen on")
	root.AddCommand(server)

	return root
}

func leafCommand(parsed *Parsed, command Command, short string, args cobra.PositionalArgs, capture func([]string)) *cobra.Command {
	use := string(command)
	if command == CommandSelectMic {
		use += " NAME"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed.Command = command
			parsed.ShowHelp = false
			if capture != nil {
				capture(args)
			}
			return nil
		},
	}
}
