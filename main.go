package main

import "github.com/CosmoTheDev/autodev-orchestrator/cmd"

var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
