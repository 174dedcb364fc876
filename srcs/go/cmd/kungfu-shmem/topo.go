package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/utils"
	"github.com/spf13/cobra"
)

var (
	topoKind  string
	topoArity int
	topoColor bool
)

var topoCmd = &cobra.Command{
	Use:   "topo <size>",
	Short: "Print the tree, or the pairwise exchange rounds, used on size PEs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var size int
		if _, err := fmt.Sscanf(args[0], "%d", &size); err != nil || size < 1 {
			return fmt.Errorf("invalid size %q", args[0])
		}
		w := cmd.OutOrStdout()
		if topoColor {
			for r := 0; r < plan.EdgeColorRounds(size); r++ {
				fmt.Fprintf(w, "round %d: %s\n", r, plan.EdgeColorGraph(r, size).DebugString())
			}
			return nil
		}
		kind, ok := plan.ParseTreeKind(topoKind)
		if !ok {
			return fmt.Errorf("invalid tree kind %q", topoKind)
		}
		arity := topoArity
		if arity < 1 {
			arity = treeArity(kind)
		}
		g := plan.TreeGraph(kind, size, arity)
		fmt.Fprintf(w, "%s tree, arity %d, height %d\n", kind, arity, g.Height(0))
		fmt.Fprintln(w, g.DebugString())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information and the configuration in effect",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		utils.WriteBuildInfo(w)
		utils.WriteEnvs(w, env.Getenv, config.ConfigEnvKeys, `config`)
		utils.WriteEnvs(w, env.Getenv, config.AlgoEnvKeys, `algo`)
	},
}

func init() {
	topoCmd.Flags().StringVar(&topoKind, "kind", plan.Binomial.String(), "complete, binomial or knomial")
	topoCmd.Flags().IntVar(&topoArity, "arity", 0, "degree or radix, from the configuration if unset")
	topoCmd.Flags().BoolVar(&topoColor, "edge-color", false, "print the rounds of the pairwise exchange instead")
}

func treeArity(kind plan.TreeKind) int {
	if kind == plan.Knomial {
		return config.KnomialRadix
	}
	return config.TreeDegree
}

func waitSignal() {
	done := make(chan os.Signal, 1)
	stop := utils.Trap(func(sig os.Signal) { done <- sig })
	defer stop()
	log.Infof("waiting for %s or %s", os.Interrupt, syscall.SIGTERM)
	log.Infof("stopped by %s", <-done)
}
