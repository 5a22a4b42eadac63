package main

import "github.com/spf13/cobra"

type cmdDelete struct {
	global *cmdGlobal
	flags  netFlags
}

func (c *cmdDelete) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Tear down the TAP device (and veth pair, for --topology namespaced; the namespace itself is kept) and nftables rules",
	}
	c.flags.register(cmd)
	cmd.RunE = c.Run
	return cmd
}

func (c *cmdDelete) Run(cmd *cobra.Command, args []string) error {
	return c.global.run(&c.flags, opDelete)
}
