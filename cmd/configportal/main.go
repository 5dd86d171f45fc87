package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/beeforce/configportal/internal/portalcli"
)

func main() {
	if err := portalcli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, portalcli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			portalcli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
