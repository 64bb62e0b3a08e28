package main

import (
	"github.com/iotaledger/tangle-core/components/app"
)

func main() {
	app.App().Run()
}
