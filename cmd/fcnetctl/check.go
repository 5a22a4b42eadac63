package main

import "github.com/spf13/cobra"

type cmdCheck struct {
	global *cmdGlobal
	flags  netFlags
}

func (c *cmdCheck) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the networking Add would have created still exists, without mutating anything",
	}
	c.flags.register(cmd)
	cmd.RunE = c.Run
	return cmd
}

func (c *cmdCheck) Run(cmd *cobra.Command, args []string) error {
	return c.global.run(&c.flags, opCheck)
}
