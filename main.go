package main

import (
	"backy/cmd"
)

// Build information, set by -ldflags at release time.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(BuildTime, GitCommit)
	cmd.Execute()
}
