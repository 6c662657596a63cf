package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const replHelp = `Type a message and press enter. Ctrl-C stops a reply in progress and
leaves at the prompt. Up and down recall earlier input.
  /history  show the conversation
  /clear    clear the conversation on screen
  /reset    delete the conversation on the server too
  /quit     leave`

// replyPrinter writes streamed text to the terminal as it arrives.
type replyPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	shown int
}

func (p *replyPrinter) update(st chat.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !st.Streaming || len(st.StreamingContent) <= p.shown {
		return
	}
	fmt.Fprint(p.out, st.StreamingContent[p.shown:])
	p.shown = len(st.StreamingContent)
}

// finish prints the final reply if none of it was streamed, e.g. the apology
// after a failed request.
func (p *replyPrinter) finish(st chat.State, replyIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shown == 0 && replyIndex < len(st.Messages) {
		fmt.Fprint(p.out, st.Messages[replyIndex].Content)
	}
	fmt.Fprintln(p.out)
	p.shown = 0
}

func runChat(cmd *cobra.Command, backend chat.Backend) error {
	in := newLinerInput(historyPath(cfg.InputHistoryFile))
	defer in.Close()
	return chatLoop(cmd, backend, in)
}

// chatLoop prompts only while no reply is streaming, so line editing never
// overlaps streamed output.
func chatLoop(cmd *cobra.Command, backend chat.Backend, in lineReader) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	tel, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer tel.close()

	printer := &replyPrinter{out: out}
	c := chat.NewController(backend, chat.Options{
		Observer:       tel.observer(),
		OnUpdate:       printer.update,
		HistoryTimeout: cfg.HistoryTimeout,
	})
	defer c.Close()

	<-c.Ready()
	fmt.Fprintf(out, "%s (session %s)\n%s\n", backend.Name(), backend.Session(), replHelp)
	if st := c.State(); len(st.Messages) > 0 {
		printMessages(out, st.Messages)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	for {
		line, err := readLine(in, "> ", interrupts)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, errInterrupted) {
				log.Debug().Err(err).Msg("input closed")
			}
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, replHelp)
			continue
		case "/history":
			printMessages(out, c.State().Messages)
			continue
		case "/clear":
			c.Clear()
			continue
		case "/reset":
			if err := c.Reset(ctx); err != nil {
				log.Warn().Err(err).Msg("server history not cleared")
			}
			continue
		}

		replyIndex := len(c.State().Messages) + 1
		if !c.SendMessage(line) {
			continue
		}
		if err := waitForReply(ctx, c, interrupts); err != nil {
			return err
		}
		printer.finish(c.State(), replyIndex)
	}
}

var errInterrupted = errors.New("interrupted")

// readLine prompts for one line. A SIGINT while waiting (redirected input, where
// liner cannot see Ctrl-C) ends the prompt.
func readLine(in lineReader, prompt string, interrupts <-chan os.Signal) (string, error) {
	type result struct {
		line string
		err  error
	}
	res := make(chan result, 1)
	go func() {
		line, err := in.ReadLine(prompt)
		res <- result{line, err}
	}()

	select {
	case r := <-res:
		return r.line, r.err
	case <-interrupts:
		return "", errInterrupted
	}
}

// waitForReply blocks until the reply has finished. An interrupt cancels it.
func waitForReply(ctx context.Context, c *chat.Controller, interrupts <-chan os.Signal) error {
	done := make(chan error, 1)
	go func() { done <- c.Wait(ctx) }()

	for {
		select {
		case err := <-done:
			return err
		case <-interrupts:
			c.Cancel()
		}
	}
}

func printMessages(out io.Writer, msgs []chat.Message) {
	for _, m := range msgs {
		fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
	}
}
