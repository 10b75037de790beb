package main

import (
	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal("application terminated", "error", err)
	}
}
