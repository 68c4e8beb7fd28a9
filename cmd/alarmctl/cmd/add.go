package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mt-monitoring/alarmd/internal/models"
)

var addSimpleCmd = &cobra.Command{
	Use:   "add-simple <rule_id> <device_id> <field> <op> <threshold> <duration_minutes> <description>",
	Short: "Add a simple_threshold alarm rule",
	Args:  cobra.ExactArgs(7),
	RunE: func(c *cobra.Command, args []string) error {
		threshold, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return argError("invalid threshold %q: %w", args[4], err)
		}
		durationMinutes, err := strconv.Atoi(args[5])
		if err != nil {
			return argError("invalid duration_minutes %q: %w", args[5], err)
		}

		now := time.Now()
		rule := &models.AlarmRule{
			RuleID:          args[0],
			DeviceID:        args[1],
			Kind:            models.KindSimpleThreshold,
			SensorField:     args[2],
			Operator:        models.Operator(args[3]),
			ThresholdValue:  threshold,
			DurationSeconds: durationMinutes * 60,
			Description:     args[6],
			Enabled:         true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		return createRule(rule)
	},
}

var addConditionalCmd = &cobra.Command{
	Use:   "add-conditional <rule_id> <device_id> <field> <op> <threshold> <duration_minutes> <shunt_device> <shunt_field> <shunt_op> <shunt_threshold> <description>",
	Short: "Add a conditional_threshold alarm rule gated by a shunt predicate",
	Args:  cobra.ExactArgs(11),
	RunE: func(c *cobra.Command, args []string) error {
		threshold, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return argError("invalid threshold %q: %w", args[4], err)
		}
		durationMinutes, err := strconv.Atoi(args[5])
		if err != nil {
			return argError("invalid duration_minutes %q: %w", args[5], err)
		}
		shuntThreshold, err := strconv.ParseFloat(args[9], 64)
		if err != nil {
			return argError("invalid shunt_threshold %q: %w", args[9], err)
		}

		shuntDevice := args[6]
		shuntField := args[7]
		shuntOp := models.Operator(args[8])

		now := time.Now()
		rule := &models.AlarmRule{
			RuleID:          args[0],
			DeviceID:        args[1],
			Kind:            models.KindConditionalThreshold,
			SensorField:     args[2],
			Operator:        models.Operator(args[3]),
			ThresholdValue:  threshold,
			DurationSeconds: durationMinutes * 60,
			Description:     args[10],
			Enabled:         true,
			ShuntDeviceID:   &shuntDevice,
			ShuntField:      &shuntField,
			ShuntValue:      &shuntThreshold,
			ShuntOperator:   &shuntOp,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		return createRule(rule)
	},
}

func createRule(rule *models.AlarmRule) error {
	if err := rule.Validate(); err != nil {
		return validationError(err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Rules.Get(rule.RuleID); err == nil {
		return validationError(errRuleExists(rule.RuleID))
	}

	if err := st.Rules.Upsert(rule); err != nil {
		return storeError(err)
	}

	return nil
}
