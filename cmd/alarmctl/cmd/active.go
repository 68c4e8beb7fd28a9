package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mt-monitoring/alarmd/internal/models"
)

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List rules whose state is currently active or triggered",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		states, err := st.States.List()
		if err != nil {
			return storeError(err)
		}

		found := false
		for _, s := range states {
			if s.Status != models.StatusActive && s.Status != models.StatusTriggered {
				continue
			}
			found = true
			fmt.Printf("%s\t%s\t%s\tsince=%v\tcount=%d\n", s.RuleID, s.DeviceID, s.Status, s.ViolationStart, s.ViolationCount)
		}
		if !found {
			fmt.Println("No active or triggered episodes.")
		}
		return nil
	},
}
