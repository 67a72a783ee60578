package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/coachchat/pkg/chatclient"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's persisted history as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			api := chatclient.NewHTTPAPI(v.GetString("server"), nil)
			msgs, err := api.FetchHistory(cmd.Context(), v.GetString("user-id"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(msgs); err != nil {
				return errors.Wrap(err, "write history")
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}
