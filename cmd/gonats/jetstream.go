package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gftdcojp/gonats/jetstream"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Manage JetStream streams",
	}
	cmd.AddCommand(
		newStreamLsCmd(),
		newStreamAddCmd(),
		newStreamInfoCmd(),
		newStreamRmCmd(),
		newStreamPurgeCmd(),
	)
	return cmd
}

func newStreamLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, logger, err := connect(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer nc.Close()

			infos, err := jetstream.New(nc).ListStreams(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSUBJECTS\tMESSAGES\tBYTES\tCONSUMERS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%v\t%d\t%d\t%d\n",
					info.Config.Name, info.Config.Subjects,
					info.State.Msgs, info.State.Bytes, info.State.Consumers)
			}
			return w.Flush()
		},
	}
}

func newStreamAddCmd() *cobra.Command {
	var subjects []string
	var storage, retention string
	var replicas int
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a stream",
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

			info, err := jetstream.New(nc).CreateStream(ctx, jetstream.StreamConfig{
				Name:      args[0],
				Subjects:  subjects,
				Storage:   jetstream.StorageType(storage),
				Retention: jetstream.RetentionPolicy(retention),
				Replicas:  replicas,
				MaxAge:    maxAge,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created stream %s (subjects %v)\n", info.Config.Name, info.Config.Subjects)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&subjects, "subjects", nil, "subjects captured by the stream")
	cmd.Flags().StringVar(&storage, "storage", "file", "storage backend (file, memory)")
	cmd.Flags().StringVar(&retention, "retention", "limits", "retention policy (limits, interest, workqueue)")
	cmd.Flags().IntVar(&replicas, "replicas", 1, "replica count")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "maximum message age (0 = unlimited)")
	cmd.MarkFlagRequired("subjects")
	return cmd
}

func newStreamInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show stream state",
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

			info, err := jetstream.New(nc).StreamInfo(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("stream %s\n", info.Config.Name)
			fmt.Printf("  subjects:  %v\n", info.Config.Subjects)
			fmt.Printf("  storage:   %s, retention %s, replicas %d\n",
				info.Config.Storage, info.Config.Retention, info.Config.Replicas)
			fmt.Printf("  messages:  %d (%d bytes)\n", info.State.Msgs, info.State.Bytes)
			fmt.Printf("  sequences: %d .. %d\n", info.State.FirstSeq, info.State.LastSeq)
			fmt.Printf("  consumers: %d\n", info.State.Consumers)
			return nil
		},
	}
}

func newStreamRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stream",
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

			if err := jetstream.New(nc).DeleteStream(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted stream %s\n", args[0])
			return nil
		},
	}
}

func newStreamPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <name>",
		Short: "Purge a stream's messages",
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

			purged, err := jetstream.New(nc).PurgeStream(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("purged %d message(s) from %s\n", purged, args[0])
			return nil
		},
	}
}

func newConsumerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consumer",
		Short: "Manage JetStream consumers",
	}
	cmd.AddCommand(
		newConsumerAddCmd(),
		newConsumerRmCmd(),
		newConsumerFetchCmd(),
	)
	return cmd
}

func newConsumerAddCmd() *cobra.Command {
	var filter string
	var ackPolicy string

	cmd := &cobra.Command{
		Use:   "add <stream> <name>",
		Short: "Create a durable pull consumer",
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

			cons, err := jetstream.New(nc).CreateConsumer(ctx, args[0], jetstream.ConsumerConfig{
				Durable:       args[1],
				FilterSubject: filter,
				AckPolicy:     jetstream.AckPolicy(ackPolicy),
			})
			if err != nil {
				return err
			}
			fmt.Printf("created consumer %s on stream %s\n", cons.Name(), cons.Stream())
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter subject")
	cmd.Flags().StringVar(&ackPolicy, "ack", "explicit", "ack policy (explicit, none, all)")
	return cmd
}

func newConsumerRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <stream> <name>",
		Short: "Delete a consumer",
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

			if err := jetstream.New(nc).DeleteConsumer(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("deleted consumer %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func newConsumerFetchCmd() *cobra.Command {
	var batch int
	var wait time.Duration
	var ack bool

	cmd := &cobra.Command{
		Use:   "fetch <stream> <name>",
		Short: "Pull a batch of messages from a consumer",
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

			cons, err := jetstream.New(nc).Consumer(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			msgs, err := cons.Fetch(ctx, batch, wait)
			if err != nil {
				return err
			}
			for i, msg := range msgs {
				meta := msg.Metadata()
				fmt.Printf("[#%d] %s (seq %d, delivered %d)\n  %s\n",
					i+1, msg.Subject, meta.StreamSeq, meta.NumDelivered, msg.Payload)
				if ack {
					if err := msg.Ack(); err != nil {
						return err
					}
				}
			}
			fmt.Printf("fetched %d message(s)\n", len(msgs))
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 10, "batch size")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "maximum wait")
	cmd.Flags().BoolVar(&ack, "ack", true, "acknowledge fetched messages")
	return cmd
}
