package main

import (
	"bookdigest/cmd/handlers"
	"bookdigest/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
