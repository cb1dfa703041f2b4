package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maizdemicorazon/pos-connectivity/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		// check 子命令的失败结果已输出到 stdout，这里只补充错误信息
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
