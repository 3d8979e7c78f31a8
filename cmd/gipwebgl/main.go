package main

import "github.com/glistengine/gipwebgl/cmd/gipwebgl/internal"

func main() {
	internal.Execute()
}
