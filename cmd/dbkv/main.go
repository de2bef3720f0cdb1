package main

import "github.com/ValentinKolb/dbKV/cmd"

func main() {
	cmd.Execute()
}
