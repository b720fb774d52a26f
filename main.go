package main

import "github.com/ValentinKolb/dMesh/cmd"

func main() {
	cmd.Execute()
}
