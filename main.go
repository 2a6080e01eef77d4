package main

import "gitlab.com/tng-miniapp/ledger_api/cmd"

func main() {
	cmd.Execute()
}
