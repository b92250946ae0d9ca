package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"delaybroker/config"
	"delaybroker/pkg/message"
	"delaybroker/pkg/queue"
	"delaybroker/storage"
)

func historyCmd() *cobra.Command {
	var (
		pending   bool
		delivered bool
		backend   string
		path      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending && delivered {
				return fmt.Errorf("--pending and --delivered are mutually exclusive")
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				cfg.Storage.Backend = backend
			}
			if cmd.Flags().Changed("path") {
				cfg.Storage.Path = path
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			so, err := cfg.StorageOptions()
			if err != nil {
				return err
			}
			store, err := storage.Open(ctx, so)
			if err != nil {
				return err
			}
			defer store.Close()

			h := queue.NewHistory(store)
			var messages []message.Message
			switch {
			case pending:
				messages, err = h.Pending(ctx)
			case delivered:
				messages, err = h.Delivered(ctx)
			default:
				messages, err = h.All(ctx)
			}
			if err != nil {
				return err
			}

			for _, m := range messages {
				printMessage(m)
			}
			fmt.Printf("%d message(s)\n", len(messages))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Only show messages that were never delivered")
	cmd.Flags().BoolVar(&delivered, "delivered", false, "Only show delivered messages")
	cmd.Flags().StringVar(&backend, "backend", "file", "Storage backend (file, badger, bolt, postgres)")
	cmd.Flags().StringVar(&path, "path", "./data/messages.json", "Storage path for file, badger and bolt backends")

	return cmd
}

func printMessage(m message.Message) {
	fmt.Printf("ID: %s\n", m.ID)
	fmt.Printf("From: %s  To: %s\n", m.Sender, m.Recipient)
	fmt.Printf("Content: %s\n", m.Content)
	fmt.Printf("Sent: %s\n", m.SentAt.Format(time.RFC3339Nano))
	if m.DeliveredAt != nil {
		fmt.Printf("Delivered: %s (after %s)\n", m.DeliveredAt.Format(time.RFC3339Nano), m.DeliveredAt.Sub(m.SentAt))
	} else {
		fmt.Println("Delivered: -")
	}
	fmt.Println()
}
