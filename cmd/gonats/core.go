package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gonats "github.com/gftdcojp/gonats"
	"github.com/gftdcojp/gonats/header"
)

func newPubCmd() *cobra.Command {
	var count int
	var headerPairs []string

	cmd := &cobra.Command{
		Use:   "pub <subject> [payload]",
		Short: "Publish a message",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, logger, err := connect(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer nc.Close()

			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
			}

			hdr, err := parseHeaderFlags(headerPairs)
			if err != nil {
				return err
			}

			for i := 0; i < count; i++ {
				if err := nc.PublishMsg(&gonats.Msg{
					Subject: args[0],
					Headers: hdr,
					Payload: payload,
				}); err != nil {
					return err
				}
			}
			if err := nc.Flush(ctx); err != nil {
				return err
			}
			fmt.Printf("published %d message(s) to %s\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of messages to publish")
	cmd.Flags().StringArrayVarP(&headerPairs, "header", "H", nil, "header as Name:Value (repeatable)")
	return cmd
}

func newSubCmd() *cobra.Command {
	var queue string
	var max int

	cmd := &cobra.Command{
		Use:   "sub <subject>",
		Short: "Subscribe and print messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, logger, err := connect(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer nc.Close()

			var sub *gonats.Subscription
			if queue != "" {
				sub, err = nc.QueueSubscribe(args[0], queue)
			} else {
				sub, err = nc.Subscribe(args[0])
			}
			if err != nil {
				return err
			}
			if max > 0 {
				if err := sub.AutoUnsubscribe(max); err != nil {
					return err
				}
			}

			logger.Info("subscribed", zap.String("subject", args[0]), zap.String("queue", queue))

			n := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-sub.Messages():
					if !ok {
						return nil
					}
					n++
					printMsg(n, msg)
				}
			}
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "queue group")
	cmd.Flags().IntVar(&max, "max", 0, "auto-unsubscribe after this many messages")
	return cmd
}

func newRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <subject> [payload]",
		Short: "Send a request and print the reply",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, logger, err := connect(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer nc.Close()

			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
			}

			resp, err := nc.Request(ctx, args[0], payload)
			if err != nil {
				return err
			}
			printMsg(1, resp)
			return nil
		},
	}
}

func newReplyCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "reply <subject> <payload>",
		Short: "Serve a static reply on a subject until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, logger, err := connect(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer nc.Close()

			g, ctx := errgroup.WithContext(ctx)
			for i := 0; i < workers; i++ {
				sub, err := nc.QueueSubscribe(args[0], "gonats-reply")
				if err != nil {
					return err
				}
				g.Go(func() error {
					for {
						select {
						case <-ctx.Done():
							return nil
						case msg, ok := <-sub.Messages():
							if !ok {
								return nil
							}
							if msg.Reply == "" {
								continue
							}
							if err := nc.Publish(msg.Reply, []byte(args[1])); err != nil {
								return err
							}
						}
					}
				})
			}

			logger.Info("serving replies",
				zap.String("subject", args[0]), zap.Int("workers", workers))
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel responders in one queue group")
	return cmd
}

func parseHeaderFlags(pairs []string) (*header.Headers, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	h := header.New()
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed header %q, want Name:Value", p)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h, nil
}

func printMsg(n int, msg *gonats.Msg) {
	fmt.Printf("[#%d] %s", n, msg.Subject)
	if msg.Reply != "" {
		fmt.Printf(" (reply: %s)", msg.Reply)
	}
	fmt.Println()
	if msg.Headers != nil {
		msg.Headers.Each(func(name, value string) {
			fmt.Printf("  %s: %s\n", name, value)
		})
	}
	if len(msg.Payload) > 0 {
		fmt.Printf("  %s\n", msg.Payload)
	}
}
