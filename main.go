package main

import (
	"github.com/twobottle/fedcore/cmd"
)

func main() {
	cmd.Execute()
}
