package main

import "github.com/nifforge/precomp/cmd/precomp/internal"

func main() {
	internal.Execute()
}
