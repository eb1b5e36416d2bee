// leadharvest is a lead-harvesting pipeline for job listing sites.
package main

import "github.com/jgourd/leadharvest/cmd"

func main() {
	cmd.Execute()
}
