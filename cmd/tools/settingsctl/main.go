// Command settingsctl inspects and edits the store settings, applies
// migrations, seeds demo coupons and mints access tokens for local testing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultCLI(os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
