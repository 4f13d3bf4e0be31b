package main

import (
	"flag"
	"log"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
)

func main() {
	output := flag.String("output", "topology.toml", "output path for topology template")
	validate := flag.Bool("validate", false, "validate an existing topology file")
	input := flag.String("input", "", "topology path for validation (defaults to -output)")
	force := flag.Bool("force", false, "overwrite existing topology file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		if _, err := config.Load(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated topology at %s", path)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote topology template to %s", *output)
}
