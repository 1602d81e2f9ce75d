package main

import (
	"go.uber.org/dig"

	"github.com/rios0rios0/contentsync/infrastructure/controllers"
)

func injectControllers() *[]controllers.Controller {
	container := dig.New()

	if err := controllers.RegisterProviders(container); err != nil {
		panic(err)
	}

	var list *[]controllers.Controller
	if err := container.Invoke(func(c *[]controllers.Controller) {
		list = c
	}); err != nil {
		panic(err)
	}

	return list
}
