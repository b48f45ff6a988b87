// Command maoserver runs the Mao game server.
package main

func main() {
	Execute()
}
