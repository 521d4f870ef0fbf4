package main

import "github.com/jfmyers9/lyricsync/cmd"

func main() {
	cmd.Execute()
}
