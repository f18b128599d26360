package main

import (
	"github.com/spf13/cobra"

	"speechtune/internal/config"
)

func getString(cmd *cobra.Command, name string, dst *string) error {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}

func getPath(cmd *cobra.Command, name string, dst *string) error {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return err
	}
	*dst = expanded
	return nil
}

func getInt(cmd *cobra.Command, name string, dst *int) error {
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}

func getFloat64(cmd *cobra.Command, name string, dst *float64) error {
	value, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}
