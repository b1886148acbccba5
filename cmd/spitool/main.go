package main

import "github.com/OpenTraceLab/OpenTraceSPI/cmd/spitool/cmd"

func main() {
	cmd.Execute()
}
