package main

import (
	"log"

	"github.com/multiseat/userlist/internal/client/cli"
	"github.com/multiseat/userlist/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	app.Run()

}
