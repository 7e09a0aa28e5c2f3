package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/statica-io/statica/pkg/app"
)

func main() {
	a := app.New()
	if err := a.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
