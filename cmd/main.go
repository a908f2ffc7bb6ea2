package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "dagledger",
		Short: "DAG ledger node: node pool, tip selection and epochs",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file")
	root.AddCommand(serveCmd(), keygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
