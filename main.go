// SPDX-License-Identifier: MPL-2.0

package main

import cmd "fedkit/cmd/fedkit"

func main() {
	cmd.Execute()
}
