package main

import (
	"os"

	"horse.fit/movements/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
