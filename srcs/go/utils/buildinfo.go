package utils

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"time"
)

// -ldflags "-X github.com/lsds/kungfu-shmem/srcs/go/utils.buildtimeString=$(date +%s)"
var buildtimeString string

func WriteBuildInfo(w io.Writer) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, "%s %s %s\n", bi.Main.Path, bi.Main.Version, bi.GoVersion)
		for _, s := range bi.Settings {
			if s.Key == `vcs.revision` || s.Key == `vcs.time` {
				fmt.Fprintf(w, "%s %s\n", s.Key, s.Value)
			}
		}
	}
	if bt, err := strconv.ParseInt(buildtimeString, 10, 64); err == nil {
		fmt.Fprintf(w, "built %s ago\n", time.Since(time.Unix(bt, 0)).Round(time.Second))
	}
}
