package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "talkless"}

	root.AddCommand(runCMD(), scheduleCMD(), migrateCMD(), searchCMD())
	_ = root.Execute()
}
