package main

import "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/cli"

func main() {
	cli.Execute()
}
