package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default, flags keep their values
// across Execute calls otherwise.
func resetFlags(t *testing.T) {
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetOut(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	listAlgorithms(&buf, registry.Operations)
	out := buf.String()
	for _, op := range registry.Operations {
		assert.Contains(t, out, op.EnvKey())
		for _, name := range algorithmNames(op) {
			assert.Contains(t, out, name)
		}
	}
	assert.Contains(t, out, `neighbor_exchange`)
	assert.Contains(t, out, `rabenseifner2`)
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, `list`, `reduce`)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `reduce`))

	_, err = execute(t, `list`, `gather`)
	assert.Error(t, err)
}

func TestTopoCommand(t *testing.T) {
	out, err := execute(t, `topo`, `4`, `--kind`, `binomial`)
	require.NoError(t, err)
	assert.Contains(t, out, `height 2`)
	assert.Contains(t, out, `(0->2)(0->1)(2->3)`)

	out, err = execute(t, `topo`, `3`, `--edge-color`)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, `round`))

	_, err = execute(t, `topo`, `4`, `--kind`, `ring`)
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	cases := [][]string{
		{`run`, `barrier`, `-n`, `3`, `--iters`, `2`},
		{`run`, `broadcast`, `-n`, `5`, `--root`, `2`, `--count`, `7`, `--algo`, `scatter_collect`},
		{`run`, `fcollect`, `-n`, `4`, `--count`, `3`, `--algo`, `neighbor_exchange`},
		{`run`, `alltoall`, `-n`, `4`, `--count`, `2`, `--type`, `f64`, `--profile`},
		{`run`, `reduce`, `-n`, `6`, `--count`, `9`, `--op`, `xor`, `--type`, `u16`, `--algo`, `rabenseifner`},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, ` `), func(t *testing.T) {
			out, err := execute(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, `per iteration`)
			assert.Contains(t, out, `egress`)
		})
	}
}

func TestRunPerPE(t *testing.T) {
	out, err := execute(t, `run`, `alltoall`, `-n`, `3`, `--count`, `4`, `--iters`, `1`, `--per-pe`)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^PE\s+EGRESS\s+INGRESS\s+ATOMICS$`, out)
	for pe := 0; pe < 3; pe++ {
		assert.Regexp(t, fmt.Sprintf(`(?m)^%d\s+[1-9]\d*\s+\d+\s+\d+$`, pe), out)
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	_, err := execute(t, `run`, `reduce`, `-n`, `2`, `--count`, `1`, `--op`, `and`, `--type`, `f32`, `--algo`, `linear`)
	assert.Error(t, err)

	_, err = execute(t, `run`, `broadcast`, `-n`, `2`, `--root`, `5`)
	assert.Error(t, err)

	_, err = execute(t, `run`, `barrier`, `-n`, `2`, `--root`, `0`, `--algo`, `butterfly`)
	assert.ErrorIs(t, err, registry.ErrUnknownAlgorithm)
}

func TestConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, `config.yaml`)
	require.NoError(t, os.WriteFile(file, []byte("TREE_DEGREE: 5\nBARRIER_ALGO: dissemination\n"), 0o644))
	defer func() {
		configFile, env = ``, config.Env{}
		config.Apply(&config.Default)
	}()

	out, err := execute(t, `--config`, file, `run`, `barrier`, `-n`, `4`, `--iters`, `1`)
	require.NoError(t, err)
	assert.Equal(t, 5, config.TreeDegree)
	assert.Contains(t, out, `dissemination`)
}

func TestVersionCommand(t *testing.T) {
	defer func() { env = config.Env{} }()
	env = config.Env{config.ReduceAlgoEnvKey: `ring`}
	out, err := execute(t, `version`)
	require.NoError(t, err)
	assert.Contains(t, out, "[algo]: REDUCE_ALGO=ring\n")
}
