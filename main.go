package main

import "github.com/ValentinKolb/orbitapi/cmd"

func main() {
	cmd.Execute()
}
