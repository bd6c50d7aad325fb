package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harunnryd/tarjama/internal/cli"
	"github.com/harunnryd/tarjama/pkg/relay"
)

func main() {
	deps := &cli.Dependencies{
		Viper:    relay.NewViper(),
		Registry: relay.DefaultProviders(),
	}
	if err := cli.NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "tarjama:", err)
		os.Exit(1)
	}
}
