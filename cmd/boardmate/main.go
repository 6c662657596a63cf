package main

import (
	"os"

	"github.com/namikmesic/boardmate-chat/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
