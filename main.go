package main

import "reviewsentiment/internal/app"

func main() {
	app.Main()
}
