// Command waterbar はThe Water Barの予約・ウェルネスコンシェルジュサービスを起動する。
//
//	waterbar [serve|worker|migrate|healthcheck|create-staff|list-users]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/waterbar/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "waterbar: %v\n", err)
		os.Exit(1)
	}
}
