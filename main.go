package main

import (
	"ap-tools/cmd"
)

func main() {
	cmd.Execute()
}
