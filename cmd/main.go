package main

import (
	"os"
	"time"
)

func main() {
	if runApp() != nil {
		// Pause before exiting so a supervisor restart loop does not
		// hammer a broken dependency.
		time.Sleep(10 * time.Second)
		os.Exit(1)
	}
}
