package main

import (
	"github.com/diagnostic-updater/cmd/agent"
)

func main() {
	agent.Execute()
}
