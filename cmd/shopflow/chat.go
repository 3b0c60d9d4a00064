package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/shopflow/internal/app"
	"github.com/dshills/shopflow/internal/tui"
)

const helpText = `Commands:
- help / 帮助: show this help
- exit / quit / 退出: leave

Anything else is sent to the assistant. For orders, try "find a phone around 2000";
for listings, describe the product you want to create.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a workflow in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		workflow, _ := cmd.Flags().GetString("workflow")
		run, err := a.Runner(workflow)
		if err != nil {
			return err
		}

		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			threadID = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		printer := tui.NewPrinter(cmd.OutOrStdout())
		printer.Banner(run.Name())
		s := &chatSession{run: run, printer: printer, threadID: threadID, newID: uuid.NewString}
		return s.loop(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("workflow", "w", "order", "Workflow: order or listing")
	chatCmd.Flags().StringP("thread", "t", "", "Resume an existing thread id")
}

type chatSession struct {
	run      app.Runner
	printer  *tui.Printer
	threadID string
	newID    func() string
}

// loop reads lines until EOF or an exit command. A finished or reset
// session continues on a fresh thread.
func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	s.printer.Notice("thread %s", s.threadID)
	scanner := bufio.NewScanner(in)
	for {
		s.printer.Prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "退出":
			s.printer.Notice("bye")
			return nil
		case "help", "帮助":
			s.printer.Reply(helpText)
			continue
		}

		res, err := s.run.Send(ctx, s.threadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.printer.Notice("error: %v", err)
			continue
		}
		s.printer.Reply(res.Text)

		if res.Ended || res.Reset {
			s.threadID = s.newID()
			s.printer.Notice("session finished, new thread %s", s.threadID)
		}
	}
}
