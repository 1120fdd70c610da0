// av-hierarchy lints a hierarchy definition: it loads the file, runs the
// containment checks, and prints the token each probe value generalizes to
// at every level.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"AnonVitals/internal/hierarchy"
)

func main() {
	path := flag.String("file", "configs/hierarchy.yaml", "path to the hierarchy definition")
	probes := flag.String("probe", "", "comma-separated values to generalize through every level")
	flag.Parse()

	table, err := hierarchy.Load(*path)
	if err != nil {
		log.Printf("Hierarchy is invalid: %v", err)
		os.Exit(1)
	}

	fields := table.Fields()
	log.Printf("Hierarchy OK: fields=%v suppression_level=%d", fields, table.SuppressionLevel())

	if *probes == "" {
		return
	}

	for _, raw := range strings.Split(*probes, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			log.Printf("Skipping probe %q: %v", raw, err)
			continue
		}
		for _, field := range fields {
			tokens := make([]string, 0, table.SuppressionLevel()+1)
			for level := 0; level <= table.SuppressionLevel(); level++ {
				token, err := table.Generalize(field, value, level)
				if err != nil {
					log.Printf("Generalize failed for %s=%g at level %d: %v", field, value, level, err)
					os.Exit(1)
				}
				tokens = append(tokens, token)
			}
			log.Printf("%s=%g: %s", field, value, strings.Join(tokens, " -> "))
		}
	}
}
