package main

import (
	simpchat "github.com/putto11262002/simpchat/app"
)

func main() {
	app := simpchat.New(nil, nil)
	app.Start()
}
