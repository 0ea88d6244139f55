package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/cjcs"
	"github.com/ternarybob/cjcs/internal/common"
)

var (
	configFile = flag.String("config", "", "Configuration file path")
	getDBName  = flag.Bool("getDBName", false, "Print the computed database namespace and exit")
)

func main() {
	flag.Parse()

	cfg, err := common.LoadFromFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cjcs: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *getDBName {
		fmt.Println(cjcs.GetDBName(cfg))
		os.Exit(0)
	}

	flag.Usage()
	os.Exit(1)
}
