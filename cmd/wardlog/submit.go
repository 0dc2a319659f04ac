package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	"github.com/fyrsmithlabs/wardlog/internal/extraction"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/telemetry"
)

var submitChatID string

// submitCmd stores one message without a chat transport
var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Store one patient log message",
	Long: `Run one message through the same pipeline the bot uses and print the
reply the sender would get. Exits non-zero if the message is ignored or the
row could not be saved.

Examples:
  # Store a message from a file
  wardlog submit message.txt

  # Store from stdin into the in-memory store
  printf '#HN1001\nName: Jane Doe' | STORE_DRIVER=memory wardlog submit -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitChatID, "chat", "cli", "chat id shown in logs and the reply")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	content, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateStore(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	cfg.Log.Level = "error"

	logger, err := initLogger(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ack, err := submit(ctx, cfg, logger, dispatch.Message{ChatID: submitChatID, Text: string(content)},
		dispatch.ReplierFunc(func(_ context.Context, chatID, text string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text)
			return err
		}))
	if err != nil {
		return err
	}
	if !ack.Outcome.OK {
		return fmt.Errorf("record %s not saved: %w", ack.Record.Code, ack.Outcome.Err)
	}
	return nil
}

// submit stores msg through a one-off dispatcher.
func submit(ctx context.Context, cfg *config.Config, logger *logging.Logger, msg dispatch.Message, replier dispatch.Replier) (dispatch.Ack, error) {
	tel, err := telemetry.New(ctx, telemetry.NewDefaultConfig())
	if err != nil {
		return dispatch.Ack{}, err
	}

	c, err := newCore(ctx, cfg, tel, logger)
	if err != nil {
		return dispatch.Ack{}, err
	}
	defer c.Close()

	d, err := c.dispatcher(replier)
	if err != nil {
		return dispatch.Ack{}, err
	}

	ack, ok := d.Handle(ctx, msg)
	if !ok {
		return dispatch.Ack{}, fmt.Errorf("message ignored: it must start with %s", extraction.Marker)
	}
	return ack, nil
}
