package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/tui"
)

// NewChatCmd creates the 'chat' command, an interactive terminal client
// that queries the service in-process.
func NewChatCmd(root *rootOptions) *cobra.Command {
	var user string
	var docs []string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a user's documents in the terminal",
		Example: `  ragchat chat --user alice
  ragchat chat --user alice --doc report.pdf --doc notes.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			m := tui.New(a.Services.RAG, user, docs)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Username whose documents to search")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "Restrict answers to these document names")
	return cmd
}
