package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func NewTranscriptsCmd(deps *Dependencies) *cobra.Command {
	var (
		sessionID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Show the transcripts logged for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := deps.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.GetSession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("session %s: %w", sessionID, err)
			}
			rows, err := st.ListTranscripts(ctx, sessionID, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s room=%d status=%s transcripts=%d logging=%t\n",
				sess.ID, sess.RoomID, sess.Status, sess.TranscriptCount, sess.LoggingEnabled)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcripts found.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Time", "Source", "Translation"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			for _, t := range rows {
				table.Append([]string{
					fmt.Sprintf("%d", t.ID),
					t.Timestamp.Format("2006-01-02 15:04:05"),
					t.SourceText,
					t.TranslatedText,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows, 0 for all")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
