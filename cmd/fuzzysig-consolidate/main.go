// Command fuzzysig-consolidate clusters a working catalog's signatures
// and writes one representative per cluster into a master catalog. It
// also exports and imports master catalogs as encrypted archive
// directories via internal/sigstore.
//
// Usage:
//
//	fuzzysig-consolidate DB_PATH MASTER_DB_PATH [-threshold T] [-auto] [-exist EXISTING_MASTER]
//	fuzzysig-consolidate -export DIR MASTER_DB_PATH [-passphrase P]
//	fuzzysig-consolidate -import DIR MASTER_DB_PATH [-passphrase P]
package main

import (
	"flag"
	"log"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/consolidate"
	"github.com/corvid-labs/fuzzysig/internal/sigstore"
)

func main() {
	threshold := flag.Float64("threshold", consolidate.DefaultThreshold, "similarity threshold for clustering")
	auto := flag.Bool("auto", false, "use auto-consolidation log phrasing")
	existPath := flag.String("exist", "", "path to an existing master catalog to filter duplicates against")
	exportDir := flag.String("export", "", "export MASTER_DB_PATH to this archive directory instead of consolidating")
	importDir := flag.String("import", "", "import this archive directory into MASTER_DB_PATH instead of consolidating")
	passphrase := flag.String("passphrase", "", "passphrase for -export/-import archive encryption")
	flag.Parse()

	// flag.Parse stops at the first positional argument; keep parsing
	// after each one so flags may also follow DB_PATH/MASTER_DB_PATH.
	var args []string
	for rest := flag.Args(); len(rest) > 0; rest = flag.Args() {
		args = append(args, rest[0])
		flag.CommandLine.Parse(rest[1:])
	}

	switch {
	case *exportDir != "":
		if len(args) < 1 {
			log.Fatal("usage: fuzzysig-consolidate -export DIR MASTER_DB_PATH")
		}
		master := openMaster(args[0])
		defer master.Close()
		if err := sigstore.Export(master, *exportDir, *passphrase); err != nil {
			log.Fatalf("export: %v", err)
		}
		log.Printf("Exported master catalog to %s", *exportDir)

	case *importDir != "":
		if len(args) < 1 {
			log.Fatal("usage: fuzzysig-consolidate -import DIR MASTER_DB_PATH")
		}
		master := openMaster(args[0])
		defer master.Close()
		entries, err := sigstore.Import(*importDir, *passphrase)
		if err != nil {
			log.Fatalf("import: %v", err)
		}
		for name, sig := range entries {
			if err := master.InsertOrReplace(name, sig); err != nil {
				log.Fatalf("insert imported entry %q: %v", name, err)
			}
		}
		log.Printf("Imported %d entries from %s", len(entries), *importDir)

	default:
		if len(args) < 2 {
			log.Fatal("usage: fuzzysig-consolidate DB_PATH MASTER_DB_PATH [flags]")
		}

		working := openWorking(args[0])
		defer working.Close()
		master := openMaster(args[1])
		defer master.Close()

		var existing catalog.Catalog
		if *existPath != "" {
			existingCat := openMaster(*existPath)
			defer existingCat.Close()
			existing = existingCat
		}

		report, err := consolidate.Run(working, master, existing, consolidate.Options{
			Threshold: *threshold,
			Auto:      *auto,
		}, log.Printf)
		if err != nil {
			log.Fatalf("consolidate: %v", err)
		}

		log.Printf("Run %s: %d clusters, %d entries removed, %d ignored against existing master",
			report.RunID, report.Clusters, report.TotalRemoved, report.Ignored)
	}
}

func openWorking(path string) *catalog.SQLiteCatalog {
	cat, err := catalog.OpenSQLiteWorking(path)
	if err != nil {
		log.Fatalf("open working catalog %s: %v", path, err)
	}
	return cat
}

func openMaster(path string) *catalog.SQLiteCatalog {
	cat, err := catalog.OpenSQLiteMaster(path)
	if err != nil {
		log.Fatalf("open master catalog %s: %v", path, err)
	}
	return cat
}
