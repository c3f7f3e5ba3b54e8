package main

import "baseQuestAPI/cmd/bqctl/root"

func main() {
	root.Execute()
}
