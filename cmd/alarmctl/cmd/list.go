package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listDeviceFilter string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List alarm rules",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rules, err := st.Rules.List(listDeviceFilter, false)
		if err != nil {
			return storeError(err)
		}

		if len(rules) == 0 {
			fmt.Println("No rules configured.")
			return nil
		}

		for _, r := range rules {
			status := "enabled"
			if !r.Enabled {
				status = "disabled"
			}
			fmt.Printf("%s\t%s\t%s %s %s %v\t%s\t%dm\n",
				r.RuleID, r.DeviceID, r.SensorField, r.Operator, formatThreshold(r.ThresholdValue), r.Kind, status, r.DurationMinutes())
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listDeviceFilter, "device", "", "filter by device id")
}

func formatThreshold(v float64) string {
	return fmt.Sprintf("%g", v)
}
