package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/namikmesic/boardmate-chat/internal/assistant"
	"github.com/spf13/cobra"
)

func runSearch(cmd *cobra.Command, args []string) error {
	games, err := assistant.SearchGames(cmd.Context(), newClient(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	printGames(cmd.OutOrStdout(), games)
	return nil
}

func runGame(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid bggId %q", args[0])
	}
	game, err := assistant.GetGameDetail(cmd.Context(), newClient(), id)
	if err != nil {
		return err
	}
	printGame(cmd.OutOrStdout(), game)
	return nil
}

func printGames(out io.Writer, games []assistant.GameSummary) {
	if len(games) == 0 {
		fmt.Fprintln(out, "(no games found)")
		return
	}
	for _, g := range games {
		fmt.Fprintf(out, "%8d  %s (%d)\n", g.BggID, g.Name, g.YearPublished)
	}
}

func printGame(out io.Writer, g *assistant.GameDetail) {
	name := g.Name
	if g.NameKorean != "" {
		name += " / " + g.NameKorean
	}
	fmt.Fprintf(out, "%s (%d), bggId %d\n", name, g.YearPublished, g.BggID)
	fmt.Fprintf(out, "players %d-%d, %d-%d min, weight %.1f, rating %.1f\n",
		g.MinPlayers, g.MaxPlayers, g.MinPlayTime, g.MaxPlayTime, g.Weight, g.AverageRating)
	if len(g.Mechanics) > 0 {
		fmt.Fprintf(out, "mechanics: %s\n", strings.Join(g.Mechanics, ", "))
	}
	if g.Description != "" {
		fmt.Fprintln(out, g.Description)
	}
}
