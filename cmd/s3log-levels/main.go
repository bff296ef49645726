// Command s3log-levels counts log lines by severity across an S3 prefix.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/s3-log-levels/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
