package main

import "duo-checkin-backend/cmd"

func main() {
	cmd.Run()
}
