// Command bookingctl runs operator tasks against the booking database.
package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/slotledger/libs/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
