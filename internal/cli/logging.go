package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func NewLoggingCmd(deps *Dependencies) *cobra.Command {
	var (
		roomID  int64
		enable  bool
		disable bool
	)
	cmd := &cobra.Command{
		Use:   "logging",
		Short: "Turn transcript logging on or off for a room's active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable == disable {
				return errors.New("pass exactly one of --enable or --disable")
			}
			ctx := cmd.Context()
			st, err := deps.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SetLoggingEnabled(ctx, roomID, enable); err != nil {
				return fmt.Errorf("room %d: %w", roomID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logging for room %d set to %t\n", roomID, enable)
			return nil
		},
	}
	cmd.Flags().Int64Var(&roomID, "room-id", 0, "numeric room id")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable transcript logging")
	cmd.Flags().BoolVar(&disable, "disable", false, "disable transcript logging")
	_ = cmd.MarkFlagRequired("room-id")
	return cmd
}
