package main

import (
	"fmt"
	"os"

	"appgrowth-segmenter/cmd"
)

const VERSION = "0.1.0"

func main() {
	if err := cmd.Execute(VERSION); err != nil {
		fmt.Println("Command execution failed")
		os.Exit(1)
	}
}
