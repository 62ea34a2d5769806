package main

import (
	"go.brendoncarroll.net/star"

	"myceliumweb.org/um/umcmd"
)

func main() {
	star.Main(umcmd.Root())
}
