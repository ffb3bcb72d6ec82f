package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the 'ingest' command for indexing local files as a
// user's documents without going through the HTTP upload.
func NewIngestCmd(root *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:     "ingest FILE...",
		Short:   "Index local PDF or text files for a user",
		Args:    cobra.MinimumNArgs(1),
		Example: `  ragchat ingest --user alice ./report.pdf ./notes.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if a.Cfg.VectorStore.Type == "memory" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the memory vector store does not outlive this command; configure qdrant to keep the index")
			}
			for _, path := range args {
				res, err := a.Services.RAG.IngestDocument(cmd.Context(), user, filepath.Base(path), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: %d chunks\n", res.Document.Name, res.Chunks)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner of the ingested documents")
	return cmd
}
