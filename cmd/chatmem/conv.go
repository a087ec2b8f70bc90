package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/pkg/app"
	"github.com/flemzord/chatmem/pkg/conversation"
	"github.com/spf13/cobra"
)

func convCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conv",
		Short: "Inspect and edit conversations in the configured store",
	}
	cmd.AddCommand(
		convCreateCmd(),
		convAddCmd(),
		convShowCmd(),
		convContextCmd(),
		convUsageCmd(),
		convListCmd(),
		convDeleteCmd(),
		convCompressCmd(),
	)
	return cmd
}

// withManager runs fn against a Manager over the configured store.
func withManager(cmd *cobra.Command, fn func(ctx context.Context, m *memory.Manager) error) error {
	return withRuntime(cmd, false, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, rt.Manager)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func convCreateCmd() *cobra.Command {
	var (
		userID, title string
		uc            conversation.UserContext
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a conversation and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				id, err := m.CreateConversation(ctx, userID, title, &uc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&userID, "user", "u", "", "Owner user id")
	f.StringVarP(&title, "title", "t", "", "Conversation title")
	f.StringVar(&uc.Name, "name", "", "User display name")
	f.StringVar(&uc.CompanyName, "company", "", "User company")
	f.StringVar(&uc.JobTitle, "job-title", "", "User job title")
	f.StringVar(&uc.Industry, "industry", "", "User industry")
	f.StringSliceVar(&uc.Goals, "goal", nil, "User goal (repeatable)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func convAddCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <conversation-id> <content>...",
		Short: "Append a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				msg, err := m.AddMessage(ctx, args[0], memory.MessageInput{
					Role:    conversation.Role(role),
					Content: strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), msg)
			})
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", string(conversation.RoleUser), "Message role: user, assistant or system")
	return cmd
}

func convShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				c, err := m.Conversation(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
}

func convContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <conversation-id>",
		Short: "Print the context block for the next model call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				text, err := m.ContextForNewMessage(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func convUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <conversation-id>",
		Short: "Print token usage against the budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				u, err := m.MemoryUsage(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func convListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's conversations, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative")
			}
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				convs, err := m.UserConversations(ctx, args[0], limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tTOKENS\tACTIVE\tUPDATED")
				for i := range convs {
					c := &convs[i]
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
						c.ID, c.Title, len(c.Messages), c.TokenCount, c.IsActive,
						c.LastUpdated.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of conversations (0 = configured default)")
	return cmd
}

func convDeleteCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				if err := m.DeleteConversation(ctx, args[0], userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func convCompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress <conversation-id>",
		Short: "Fold older messages into the summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *memory.Manager) error {
				compressed, err := m.CompressConversation(ctx, args[0])
				if err != nil {
					return err
				}
				if compressed {
					fmt.Fprintln(cmd.OutOrStdout(), "compressed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to compress")
				}
				return nil
			})
		},
	}
}
