package main

import (
	"os"

	"bursar/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		os.Exit(1)
	}
}
