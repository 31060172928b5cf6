package main

import (
	"fmt"

	"github.com/hirelink/realtime-gateway/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
