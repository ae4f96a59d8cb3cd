package main

//go:generate swag init -g cmd/alpacabot/main.go -o docs

// @title           Alpaca Bot API
// @version         0.1.0
// @description     Strategy configuration, run history, settings and the event stream of the trading-signal engine.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
