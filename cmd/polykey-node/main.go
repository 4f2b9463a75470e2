package main

import "github.com/MatrixAI/Polykey-sub016/internal/cmd"

func main() {
	cmd.Execute()
}
