// Package main
package main

import (
	"github.com/Nyayurin/yutorix-satori/cmd/relay"
	_ "github.com/Nyayurin/yutorix-satori/modules/pprof" // pprof 性能分析
)

func main() {
	relay.Main()
}
