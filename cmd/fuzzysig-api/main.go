// Command fuzzysig-api serves a read-only HTTP query API over a master
// catalog (sqlite by default, or postgres via -master-dsn).
package main

import (
	"log"
	"net/http"
	"os"

	"flag"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/queryapi"
)

func main() {
	addr := flag.String("addr", ":8090", "address to listen on")
	db := flag.String("db", "master.db", "sqlite master catalog path, used unless -master-dsn is set")
	masterDSN := flag.String("master-dsn", getEnv("DATABASE_URL", ""), "postgres connection string for a shared master catalog (falls back to DATABASE_URL)")
	flag.Parse()

	var master catalog.Catalog
	if *masterDSN != "" {
		cat, err := catalog.OpenPostgresMaster(*masterDSN)
		if err != nil {
			log.Fatalf("connect to postgres master catalog: %v", err)
		}
		defer cat.Close()
		master = cat
		log.Printf("Connected to PostgreSQL master catalog")
	} else {
		cat, err := catalog.OpenSQLiteMaster(*db)
		if err != nil {
			log.Fatalf("open sqlite master catalog %s: %v", *db, err)
		}
		defer cat.Close()
		master = cat
		log.Printf("Opened sqlite master catalog: %s", *db)
	}

	router := queryapi.NewRouter(&queryapi.Server{Master: master})

	log.Printf("fuzzysig query API starting on %s", *addr)
	if err := http.ListenAndServe(*addr, router); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
