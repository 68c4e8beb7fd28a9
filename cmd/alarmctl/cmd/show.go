package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mt-monitoring/alarmd/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <rule_id>",
	Short: "Show a single alarm rule and its current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ruleID := args[0]

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rule, err := st.Rules.Get(ruleID)
		if err == store.ErrNotFound {
			return argError("no such rule: %s", ruleID)
		}
		if err != nil {
			return storeError(err)
		}

		out := map[string]interface{}{"rule": rule}

		if state, err := st.States.Get(ruleID); err == nil {
			out["state"] = state
		} else if err != store.ErrNotFound {
			return storeError(err)
		}

		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	},
}
