package main

import (
	"github.com/dmlat/STT-Telegram/cmd/sttd/cmd"
)

func main() {
	cmd.Execute()
}
