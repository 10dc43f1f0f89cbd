// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/nativedist/nativedist/cmd/nativedist"

func main() {
	cmd.Execute()
}
