package main

import "github.com/camden-git/facealbums/cmd"

func main() {
	cmd.Execute()
}
