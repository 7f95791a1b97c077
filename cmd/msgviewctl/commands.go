package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/status"
)

func (g *globals) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func newChatsCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			chats, err := g.client.Chats(ctx, limit)
			if err != nil {
				return err
			}
			return printChats(cmd.OutOrStdout(), chats, g.json)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum conversations")
	return cmd
}

func newMessagesCmd(g *globals) *cobra.Command {
	var (
		limit  int
		before int64
	)
	cmd := &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "Print a page of a conversation, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			msgs, err := g.client.Messages(ctx, api.MessagesQuery{ChatID: chatID, Limit: limit, BeforeRowID: before})
			if err != nil {
				return err
			}
			slices.SortFunc(msgs, func(a, b model.Message) int { return cmp.Compare(a.RowID, b.RowID) })
			return printMessages(cmd.OutOrStdout(), msgs, g.json)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().Int64Var(&before, "before", 0, "only messages with a lower rowid")
	return cmd
}

func newSendCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient> <text>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, text, err := sendArgs(args)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			id := uuid.NewString()
			if err := g.client.SendText(ctx, to, text, id); err != nil {
				return err
			}
			g.logger.Info("message sent", zap.String("recipient", to), zap.String("client_msg_id", id))
			return printResult(cmd.OutOrStdout(), map[string]string{"status": "sent", "client_msg_id": id}, g.json, "sent")
		},
	}
}

// sendArgs validates "send" arguments the same way the compose page does.
func sendArgs(args []string) (recipient, text string, err error) {
	recipient, err = model.NormalizeRecipient(args[0])
	if err != nil {
		return "", "", err
	}
	text = strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return "", "", fmt.Errorf("empty message")
	}
	return recipient, text, nil
}

func newSearchCmd(g *globals) *cobra.Command {
	var (
		chatID int64
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message text, newest first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			page, err := g.client.Search(ctx, api.SearchQuery{Query: query, ChatID: chatID, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printSearch(cmd.OutOrStdout(), query, page, g.json)
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "restrict to one conversation")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	return cmd
}

func newContactCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "contact <handle>",
		Short: "Resolve a phone number or email to a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			c, maxAge, err := g.client.LookupContact(ctx, args[0])
			if err != nil {
				return err
			}
			return printContact(cmd.OutOrStdout(), c, maxAge, g.json)
		},
	}
}

func newHealthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the gateway health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			h, err := g.client.Health(ctx)
			if err != nil {
				return err
			}
			if err := printHealth(cmd.OutOrStdout(), h, g.json); err != nil {
				return err
			}
			if !h.OK() {
				return fmt.Errorf("gateway degraded: %s", h.Status)
			}
			return nil
		},
	}
}

func newTailCmd(g *globals) *cobra.Command {
	var after int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print live feed batches until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := bus.New()
			states, unsub := b.Subscribe(bus.FeedStateChanged, 16)
			defer unsub()
			go func() {
				for evt := range states {
					if sc, ok := evt.Payload.(status.StatusChange); ok {
						g.logger.Info("feed state", zap.String("from", string(sc.From)), zap.String("to", string(sc.To)))
					}
				}
			}()

			out := cmd.OutOrStdout()
			router := feed.NewRouter(feed.Options{
				URL:               g.client.FeedURL(),
				Header:            g.client.Header(),
				ReconnectDelay:    g.cfg.Feed.ReconnectDelay.D(),
				MaxReconnectDelay: g.cfg.Feed.MaxReconnectDelay.D(),
				HeartbeatInterval: g.cfg.Feed.HeartbeatInterval.D(),
				LastSeen:          after,
			}, feed.HandlerFunc(func(batch feed.Batch) {
				if err := printBatch(out, batch, g.json); err != nil {
					g.logger.Warn("print batch failed", zap.Error(err))
				}
			}), status.NewMachine(b), g.logger.Named("feed"))

			router.Start(ctx)
			<-ctx.Done()
			router.Stop()
			return nil
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "resume after this rowid")
	return cmd
}
