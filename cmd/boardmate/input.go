package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
)

// lineReader reads one line of REPL input.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerInput edits lines with liner and keeps input history across runs. When
// stdin is not a terminal liner reads plain lines.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput(historyFile string) *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &linerInput{line: line, historyFile: historyFile}
	in.loadHistory()
	return in
}

// historyPath is configured, or input_history in the user config directory.
func historyPath(configured string) string {
	if configured != "" {
		return configured
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "boardmate", "input_history")
}

func (in *linerInput) ReadLine(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

func (in *linerInput) loadHistory() {
	f, err := os.Open(in.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := in.line.ReadHistory(f); err != nil {
		log.Debug().Err(err).Str("file", in.historyFile).Msg("input history not loaded")
	}
}

func (in *linerInput) saveHistory() error {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()
	if _, err := in.line.WriteHistory(f); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Close saves the history and restores the terminal.
func (in *linerInput) Close() error {
	if err := in.saveHistory(); err != nil {
		log.Warn().Err(err).Msg("input history not saved")
	}
	return in.line.Close()
}
