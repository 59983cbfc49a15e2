package main

import "task-timer.com/task-timer/cmd"

func main() {
	cmd.Execute()
}
