// Command chessbot plays emoji chess against Stockfish in Discord channels
// or in a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dzavoy/Discord-Chess-Bot/cmd/chessbot/cli"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "chessbot",
		Short:         "Emoji chess bot backed by a UCI engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file with DISCORD_TOKEN and SERVER_ID")

	root.AddCommand(newRunCommand(&flags))
	root.AddCommand(newConsoleCommand(&flags))
	root.AddCommand(cli.NewDBCommand(os.Stdin, os.Stdout))
	return root
}
