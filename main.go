package main

import (
	"github.com/tufeigunchu/captrace/pkg/cmd"
)

func main() {
	cmd.Execute()
}
