package main

import (
	"fmt"
	"os"

	"github.com/crucial707/coach-scheduler/cmd/cli/auth"
	"github.com/crucial707/coach-scheduler/cmd/cli/ops"
	"github.com/crucial707/coach-scheduler/cmd/cli/root"
	"github.com/crucial707/coach-scheduler/cmd/cli/schedules"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	schedules.InitSchedules(rootCmd)
	ops.InitOps(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
