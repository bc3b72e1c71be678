// Command heapctl creates, inspects and exercises fixed-capacity heap images.
package main

func main() {
	execute()
}
