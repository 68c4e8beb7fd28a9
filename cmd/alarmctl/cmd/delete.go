package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mt-monitoring/alarmd/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <rule_id>",
	Short: "Delete an alarm rule and its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ruleID := args[0]

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteRule(ruleID); err == store.ErrNotFound {
			return argError("no such rule: %s", ruleID)
		} else if err != nil {
			return storeError(err)
		}

		fmt.Printf("Deleted rule %s\n", ruleID)
		return nil
	},
}
