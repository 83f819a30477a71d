package registry

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

func StartRegistryService(db *sql.DB) {
	router := mux.NewRouter()

	router.HandleFunc("/registry/clients", ListClients(db)).Methods("GET")
	router.HandleFunc("/registry/clients", UpsertClient(db)).Methods("POST")

	log.Println("Registry Service started on :6145")
	err := http.ListenAndServe(":6145", router)
	if err != nil {
		log.Fatalf("Registry Service failed: %v", err)
	}
}
