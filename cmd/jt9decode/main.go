package main

import jt9decode "github.com/madpsy/jt9-decode/src"

func main() {
	jt9decode.DecodeMain()
}
