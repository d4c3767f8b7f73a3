package main

import "dltpays/services/merchantd"

func main() {
	merchantd.Main()
}
