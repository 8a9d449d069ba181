package main

import (
	"github.com/tari-project/tari-core/cmd/localnet/cmd"
)

func main() {
	cmd.Execute()
}
