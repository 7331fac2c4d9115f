// Command cleancsv cleans, transforms and inspects CSV and XLSX files from
// the command line. Logs go to stderr; the dataset goes to stdout or -o.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal for CLI use.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
