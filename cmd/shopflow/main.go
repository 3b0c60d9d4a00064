// Command shopflow runs the shopping assistant workflows from a terminal
// or as an HTTP service.
package main

func main() {
	Execute()
}
