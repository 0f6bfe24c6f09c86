package main

import "github.com/ValentinKolb/dLDAP/cmd"

func main() {
	cmd.Execute()
}
