package main

import (
	"workshopwatch/cmd/workshopwatch/cmd"
)

func main() {
	cmd.Execute()
}
