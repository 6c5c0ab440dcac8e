package main

import "mailrelay/internal/cli"

func main() {
	cli.Execute()
}
