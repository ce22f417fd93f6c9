package main

import "github.com/researchapps/job-maker/cmd"

func main() {
	cmd.Execute()
}
