package main

import "github.com/spf13/cobra"

type cmdAdd struct {
	global *cmdGlobal
	flags  netFlags
}

func (c *cmdAdd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create the TAP device (and veth pair into an existing namespace, for --topology namespaced) and nftables rules",
	}
	c.flags.register(cmd)
	cmd.RunE = c.Run
	return cmd
}

func (c *cmdAdd) Run(cmd *cobra.Command, args []string) error {
	return c.global.run(&c.flags, opAdd)
}
