package main

import (
	"fmt"
	"strconv"

	"github.com/namikmesic/boardmate-chat/internal/assistant"
	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/namikmesic/boardmate-chat/internal/config"
	"github.com/namikmesic/boardmate-chat/internal/transport"
	"github.com/spf13/cobra"
)

var (
	sessionID string
	gameID    int64
	devPort   int
	limit     int

	rootCmd = &cobra.Command{
		Use:          "boardmate",
		Short:        "Chat with the BoardMate sommelier and rule master from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	sommelierCmd = &cobra.Command{
		Use:   "sommelier",
		Short: "Ask the sommelier for game recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, newSommelier())
		},
	}

	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Ask the rule master about one game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, assistant.NewRuleMaster(newClient(), gameID))
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Find a game's BoardGameGeek id for --game",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	gameCmd = &cobra.Command{
		Use:   "game <bggId>",
		Short: "Show details for one game",
		Args:  cobra.ExactArgs(1),
		RunE:  runGame,
	}

	historyCmd = &cobra.Command{
		Use:       "history sommelier|rules",
		Short:     "Print the server side conversation",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sommelier", "rules"},
		RunE:      runHistory,
	}

	clearCmd = &cobra.Command{
		Use:       "clear sommelier|rules",
		Short:     "Delete the server side conversation",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sommelier", "rules"},
		RunE:      runClear,
	}

	devserverCmd = &cobra.Command{
		Use:   "devserver",
		Short: "Run a scripted BoardMate chat API for local development",
		Args:  cobra.NoArgs,
		RunE:  runDevServer,
	}
)

func init() {
	rootCmd.AddCommand(sommelierCmd, rulesCmd, historyCmd, clearCmd, devserverCmd)
	rulesCmd.AddCommand(searchCmd, gameCmd)
	searchCmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")

	for _, c := range []*cobra.Command{sommelierCmd, historyCmd, clearCmd} {
		c.Flags().StringVar(&sessionID, "session", "", "sommelier session id (default BOARDMATE_SOMMELIER_SESSION or a new id)")
	}
	for _, c := range []*cobra.Command{rulesCmd, historyCmd, clearCmd} {
		c.Flags().Int64Var(&gameID, "game", 0, "BoardGameGeek id of the game")
	}
	_ = rulesCmd.MarkFlagRequired("game")

	devserverCmd.Flags().IntVar(&devPort, "port", 0, "listen port (default DEVSERVER_PORT)")
}

func newClient() *transport.Client {
	return transport.NewClient(cfg.APIBaseURL, transport.StaticToken(cfg.AccessToken), transport.Options{
		IdleTimeout: cfg.StreamIdleTimeout,
	})
}

func newSommelier() *assistant.Sommelier {
	id := sessionID
	if id == "" {
		id = cfg.SommelierSessionID
	}
	return assistant.NewSommelier(newClient(), id)
}

func backendFor(name string) (chat.Backend, error) {
	switch name {
	case "sommelier":
		if sessionID == "" && cfg.SommelierSessionID == "" {
			return nil, fmt.Errorf("--session is required")
		}
		return newSommelier(), nil
	case "rules":
		if gameID == 0 {
			return nil, fmt.Errorf("--game is required")
		}
		return assistant.NewRuleMaster(newClient(), gameID), nil
	}
	return nil, fmt.Errorf("unknown assistant %q", name)
}

func runHistory(cmd *cobra.Command, args []string) error {
	backend, err := backendFor(args[0])
	if err != nil {
		return err
	}
	msgs, err := backend.History(cmd.Context())
	if err != nil {
		return fmt.Errorf("load %s history: %w", backend.Name(), err)
	}
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "(no messages)")
		return nil
	}
	printMessages(out, msgs)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	backend, err := backendFor(args[0])
	if err != nil {
		return err
	}
	if err := backend.ClearHistory(cmd.Context()); err != nil {
		return fmt.Errorf("clear %s history: %w", backend.Name(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s conversation %s\n", backend.Name(), strconv.Quote(backend.Session()))
	return nil
}
