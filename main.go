// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/propanedb/propane/cmd"
	"github.com/propanedb/propane/pkg/backend"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var unknownBackend backend.UnknownBackendError
		if errors.As(err, &unknownBackend) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
