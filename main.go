package main

import "github.com/yanqingluo/dble/cmd"

func main() {
	cmd.Execute()
}
