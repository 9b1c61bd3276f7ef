package main

import "github.com/phenix995/ai-instagram-organizer/cmd"

func main() {
	cmd.Execute()
}
