package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/lsds/kungfu-shmem/srcs/go/collective"
	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/spf13/cobra"
	"github.com/unixpickle/essentials"
)

var listCmd = &cobra.Command{
	Use:   "list [operation...]",
	Short: "List the algorithms of each collective operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops := registry.Operations
		if len(args) > 0 {
			ops = nil
			for _, arg := range args {
				op, err := registry.ParseOperation(arg)
				if err != nil {
					return err
				}
				ops = append(ops, op)
			}
		}
		listAlgorithms(cmd.OutOrStdout(), ops)
		return nil
	},
}

func algorithmNames(op registry.Operation) []string {
	switch op {
	case registry.Barrier:
		return collective.BarrierAlgorithms.Names()
	case registry.Sync:
		return collective.SyncAlgorithms.Names()
	case registry.Broadcast:
		return collective.BroadcastAlgorithms.Names()
	case registry.Collect:
		return collective.CollectAlgorithms.Names()
	case registry.FCollect:
		return collective.FCollectAlgorithms.Names()
	case registry.AllToAll:
		return collective.AllToAllAlgorithms.Names()
	case registry.AllToAlls:
		return collective.AllToAllsAlgorithms.Names()
	case registry.Reduce:
		return collective.ReduceAlgorithms[int32]().Names()
	}
	return nil
}

func listAlgorithms(w io.Writer, ops []registry.Operation) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "OPERATION\tVARIABLE\tALGORITHMS\n")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", op, op.EnvKey(), strings.Join(algorithmNames(op), ` `))
	}
	essentials.Must(tw.Flush())
}
