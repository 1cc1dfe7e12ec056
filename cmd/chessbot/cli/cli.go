// Package cli implements the archive maintenance commands
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

// NewDBCommand returns the "db" command group. Prompts read from in and
// results are written to out.
func NewDBCommand(in io.Reader, out io.Writer) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the SQLite game archive",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				return errors.New("database path required (--path)")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Database file path (required)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the archive schema",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return runInit(out, path)
			},
		},
		newDeleteCommand(in, out, &path),
		newQueryCommand(out, &path),
	)
	return cmd
}

func openStore(path string) (*storage.Store, error) {
	store, err := storage.NewStore(path, false, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func runInit(out io.Writer, path string) error {
	store, err := openStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", path)
	return nil
}

func newDeleteCommand(in io.Reader, out io.Writer, path *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the archive file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !yes {
				ok, err := confirm(in, out, fmt.Sprintf("Delete %s? [y/N] ", *path))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			store, err := openStore(*path)
			if err != nil {
				return err
			}
			if err := store.DeleteDB(); err != nil {
				return fmt.Errorf("failed to delete database: %w", err)
			}

			fmt.Fprintf(out, "Database deleted: %s\n", *path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks on interactive terminals only; other inputs must pass --yes
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, errors.New("refusing to delete without a terminal, use --yes")
	}

	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func newQueryCommand(out io.Writer, path *string) *cobra.Command {
	var gameID, channelID string
	var moves bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List archived games, or the moves of one game",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := openStore(*path)
			if err != nil {
				return err
			}
			defer store.Close()

			if moves {
				if gameID == "" || gameID == "*" {
					return errors.New("--moves requires --gameId")
				}
				return printMoves(out, store, gameID)
			}
			return printGames(out, store, gameID, channelID)
		},
	}
	cmd.Flags().StringVar(&gameID, "gameId", "", "Game ID to filter (optional, * for all)")
	cmd.Flags().StringVar(&channelID, "channelId", "", "Channel ID to filter (optional, * for all)")
	cmd.Flags().BoolVar(&moves, "moves", false, "List the moves of --gameId")
	return cmd
}

func printGames(out io.Writer, store *storage.Store, gameID, channelID string) error {
	games, err := store.QueryGames(gameID, channelID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(games) == 0 {
		fmt.Fprintln(out, "No games found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Game ID\tChannel\tHuman\tStart Time")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			g.GameID,
			g.ChannelID,
			g.HumanColor,
			g.StartTimeUTC.Format(timeLayout),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d game(s)\n", len(games))
	return nil
}

func printMoves(out io.Writer, store *storage.Store, gameID string) error {
	list, err := store.QueryMoves(gameID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No moves found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tMove\tSide\tBy\tFEN After\tTime")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, m := range list {
		by := "human"
		if m.ByEngine {
			by = "engine"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.MoveNumber,
			m.MoveUCI,
			m.PlayerColor,
			by,
			m.FENAfterMove,
			m.MoveTimeUTC.Format(timeLayout),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d move(s)\n", len(list))
	return nil
}
